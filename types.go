package caliper

// ID is the dense integer identifier space shared by attributes, nodes,
// and environments (cali_id_t in the original design).
type ID uint64

// InvalidID is the reserved sentinel identifier. It is equal to the
// original's CALI_INV_ID: the identifier no real attribute, node, or
// environment may hold.
const InvalidID ID = ^ID(0)

// Valid reports whether id is anything other than the invalid sentinel.
func (id ID) Valid() bool {
	return id != InvalidID
}
