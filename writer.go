package caliper

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// AttributeEnumerator delivers every registered attribute to visit,
// in the traversal surface's enumeration order.
type AttributeEnumerator func(visit func(Attribute))

// NodeEnumerator delivers every node to visit, in id order.
type NodeEnumerator func(visit func(*Node))

// Writer is a pluggable metadata serializer: a writer service
// receives two enumeration callbacks and produces a serialized
// rendering of the attribute and node tables on w.
type Writer interface {
	Write(w io.Writer, attrs AttributeEnumerator, nodes NodeEnumerator) error
}

// WriterRegistry is the configuration-driven dispatch table write-
// metadata uses to select a writer service by name. It is a plain
// registry lookup with a "none" shortcut handled by the caller, not a
// plugin system.
type WriterRegistry struct {
	writers map[string]Writer
}

// NewWriterRegistry creates a registry pre-populated with the built-in
// csv and json writers.
func NewWriterRegistry() *WriterRegistry {
	return &WriterRegistry{
		writers: map[string]Writer{
			"csv":  csvWriter{},
			"json": jsonWriter{},
		},
	}
}

// Register installs a writer under name, overwriting any existing
// registration - this is how a host process plugs in a concrete
// sampler/export backend without the core knowing about it.
func (r *WriterRegistry) Register(name string, w Writer) {
	r.writers[name] = w
}

// Get looks up a writer by name.
func (r *WriterRegistry) Get(name string) (Writer, bool) {
	w, ok := r.writers[name]
	return w, ok
}

// csvWriter renders the attribute table followed by the node table as
// two CSV sections.
type csvWriter struct{}

func (csvWriter) Write(w io.Writer, attrs AttributeEnumerator, nodes NodeEnumerator) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"id", "name", "type", "store_as_value", "global"}); err != nil {
		return err
	}
	var writeErr error
	attrs(func(a Attribute) {
		if writeErr != nil {
			return
		}
		writeErr = cw.Write([]string{
			fmt.Sprint(uint64(a.ID())),
			a.Name(),
			a.Type().String(),
			fmt.Sprint(a.StoreAsValue()),
			fmt.Sprint(a.Global()),
		})
	})
	if writeErr != nil {
		return writeErr
	}

	if err := cw.Write([]string{"id", "attribute", "parent", "payload"}); err != nil {
		return err
	}
	nodes(func(n *Node) {
		if writeErr != nil {
			return
		}
		writeErr = cw.Write([]string{
			fmt.Sprint(uint64(n.ID())),
			fmt.Sprint(uint64(n.Attribute())),
			fmt.Sprint(uint64(n.ParentID())),
			string(n.Payload()),
		})
	})
	if writeErr != nil {
		return writeErr
	}

	cw.Flush()
	return cw.Error()
}

// jsonWriter renders the attribute and node tables as a single JSON
// document.
type jsonWriter struct{}

type jsonAttribute struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	StoreAsValue bool   `json:"store_as_value"`
	Global       bool   `json:"global"`
}

type jsonNode struct {
	ID        uint64 `json:"id"`
	Attribute uint64 `json:"attribute"`
	Parent    uint64 `json:"parent"`
	Payload   string `json:"payload"`
}

type jsonDocument struct {
	Attributes []jsonAttribute `json:"attributes"`
	Nodes      []jsonNode      `json:"nodes"`
}

func (jsonWriter) Write(w io.Writer, attrs AttributeEnumerator, nodes NodeEnumerator) error {
	doc := jsonDocument{}

	attrs(func(a Attribute) {
		doc.Attributes = append(doc.Attributes, jsonAttribute{
			ID:           uint64(a.ID()),
			Name:         a.Name(),
			Type:         a.Type().String(),
			StoreAsValue: a.StoreAsValue(),
			Global:       a.Global(),
		})
	})
	nodes(func(n *Node) {
		doc.Nodes = append(doc.Nodes, jsonNode{
			ID:        uint64(n.ID()),
			Attribute: uint64(n.Attribute()),
			Parent:    uint64(n.ParentID()),
			Payload:   string(n.Payload()),
		})
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
