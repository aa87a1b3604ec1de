package caliper

// Record is one decoded context entry: the attribute it belongs to,
// mapped to either the inline scalar (uint64) or, for a node
// reference, the full node-to-root payload chain as a []*Node ordered
// root-first.
type Record struct {
	Attribute Attribute
	Scalar    uint64
	IsInline  bool
	Chain     []*Node
}

// ForEachNode delivers every node in id order.
func (c *Coordinator) ForEachNode(visit func(*Node)) {
	c.nodes.ForEach(visit)
}

// ForEachAttribute delivers every registered attribute.
func (c *Coordinator) ForEachAttribute(visit func(Attribute)) {
	c.attrs.ForEach(visit)
}

// Unpack decodes a snapshot buffer (as produced by GetContext) into
// one Record per entry. For a node-reference entry, Chain holds the
// node's full payload chain from the root down to the referenced
// node; for an inline entry, Scalar holds the raw value.
func (c *Coordinator) Unpack(buf []uint64) []Record {
	entries := decodeSnapshot(buf)
	records := make([]Record, 0, len(entries))

	for _, e := range entries {
		rec := Record{Attribute: c.attrs.Get(e.Attr)}

		if e.Entry.kind == kindInline {
			rec.IsInline = true
			rec.Scalar = e.Entry.value
		} else {
			node := c.nodes.Get(ID(e.Entry.value))
			rec.Chain = c.chainToRoot(node)
		}

		records = append(records, rec)
	}

	return records
}

// chainToRoot walks node's parent links back to the root and returns
// the chain ordered root-first.
func (c *Coordinator) chainToRoot(node *Node) []*Node {
	var leafFirst []*Node
	for n := node; n != nil; n = c.nodes.Get(n.ParentID()) {
		leafFirst = append(leafFirst, n)
	}

	rootFirst := make([]*Node, len(leafFirst))
	for i, n := range leafFirst {
		rootFirst[len(leafFirst)-1-i] = n
	}
	return rootFirst
}
