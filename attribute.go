package caliper

// AttrType is the closed set of primitive value-type tags an attribute
// may carry.
type AttrType int

const (
	TypeUnsigned AttrType = iota
	TypeSigned
	TypeFloating
	TypeString
	TypeBlob
	TypeBoolean
	TypeTypeTag
)

// String names the type tag, mostly for logging and the CSV/JSON
// writers.
func (t AttrType) String() string {
	switch t {
	case TypeUnsigned:
		return "uint"
	case TypeSigned:
		return "int"
	case TypeFloating:
		return "double"
	case TypeString:
		return "string"
	case TypeBlob:
		return "blob"
	case TypeBoolean:
		return "bool"
	case TypeTypeTag:
		return "type"
	default:
		return "unknown"
	}
}

// AttrProp is a bitfield of attribute properties. It is a fixed set;
// new bits are not created at runtime.
type AttrProp uint32

const (
	// PropStoreAsValue: the attribute's current value is stored
	// inline in the context map rather than as a node id.
	PropStoreAsValue AttrProp = 1 << iota
	// PropGlobal: mutations propagate into the process-wide global
	// overlay of the context.
	PropGlobal
)

// Attribute is a descriptor: a dense id (stable for process lifetime),
// a unique name, a value-type tag, and a property bitfield.
type Attribute struct {
	id    ID
	name  string
	typ   AttrType
	props AttrProp
}

// InvalidAttribute is the sentinel attribute with the reserved invalid
// id. Get and GetByName return it whenever lookups fail.
var InvalidAttribute = Attribute{id: InvalidID}

// ID returns the attribute's dense id.
func (a Attribute) ID() ID { return a.id }

// Name returns the attribute's unique name.
func (a Attribute) Name() string { return a.name }

// Type returns the attribute's value-type tag.
func (a Attribute) Type() AttrType { return a.typ }

// StoreAsValue reports whether the attribute's current value is stored
// inline rather than as a node reference.
func (a Attribute) StoreAsValue() bool { return a.props&PropStoreAsValue != 0 }

// Global reports whether the attribute's mutations propagate into the
// process-wide global overlay.
func (a Attribute) Global() bool { return a.props&PropGlobal != 0 }

// IsInvalid reports whether this is the invalid sentinel attribute.
func (a Attribute) IsInvalid() bool { return a.id == InvalidID }

// AttributeRegistry interns attribute descriptors keyed by name and by
// id. It is guarded by its own lock, independent of the node tree's,
// so attribute creation never stalls tree traversal.
type AttributeRegistry struct {
	lock   SigSafeRWLock
	byName map[string]*Attribute
	byID   []*Attribute
}

// NewAttributeRegistry creates an empty registry.
func NewAttributeRegistry() *AttributeRegistry {
	return &AttributeRegistry{
		byName: make(map[string]*Attribute),
	}
}

// Create returns the attribute for name, creating it with the given
// type and properties if it does not already exist. Creation is
// idempotent by name: a second call with the same name returns the
// existing descriptor unchanged, even if type or properties differ.
// Properties of an existing attribute can never be mutated.
func (r *AttributeRegistry) Create(name string, typ AttrType, props AttrProp) Attribute {
	r.lock.RLock()
	if a, ok := r.byName[name]; ok {
		r.lock.RUnlock()
		return *a
	}
	r.lock.RUnlock()

	r.lock.Lock()
	defer r.lock.Unlock()

	// Re-check under the write lock: another writer may have created
	// this name between our read-locked lookup and here.
	if a, ok := r.byName[name]; ok {
		return *a
	}

	a := &Attribute{
		id:    ID(len(r.byID)),
		name:  name,
		typ:   typ,
		props: props,
	}
	r.byID = append(r.byID, a)
	r.byName[name] = a

	return *a
}

// Get looks up an attribute by id, returning the invalid sentinel if
// absent or out of range.
func (r *AttributeRegistry) Get(id ID) Attribute {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if !id.Valid() || uint64(id) >= uint64(len(r.byID)) {
		return InvalidAttribute
	}
	return *r.byID[id]
}

// GetByName looks up an attribute by name, returning the invalid
// sentinel if absent.
func (r *AttributeRegistry) GetByName(name string) Attribute {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if a, ok := r.byName[name]; ok {
		return *a
	}
	return InvalidAttribute
}

// Size returns the number of registered attributes.
func (r *AttributeRegistry) Size() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.byID)
}

// ForEach enumerates all attributes. Order is not observable and
// should not be relied on.
func (r *AttributeRegistry) ForEach(visit func(Attribute)) {
	r.lock.RLock()
	n := len(r.byID)
	snapshot := r.byID[:n:n]
	r.lock.RUnlock()

	for _, a := range snapshot {
		visit(*a)
	}
}
