package caliper

// Snapshot wire format (§6.2 of the design contract): each context
// entry occupies exactly two little-endian uint64 words.
//
//	word0: bits  0-31  attribute id (low 32 bits)
//	       bit   32    discriminator: 0 = node reference, 1 = inline scalar
//	       bits 33-63  reserved, always zero
//	word1: the full 64-bit value - a node id (zero-extended) for a
//	       reference entry, or the raw scalar for an inline entry.
//
// get-context/unpack are defined as exact inverses of each other for
// any well-formed buffer produced by packEntry/unpackEntry.
const (
	snapshotAttrMask  = 0xFFFFFFFF
	snapshotKindShift = 32
)

// packEntry encodes one context entry into its two-word wire form.
func packEntry(attr ID, entry contextEntry) (word0, word1 uint64) {
	var kindBit uint64
	if entry.kind == kindInline {
		kindBit = 1
	}
	word0 = (uint64(attr) & snapshotAttrMask) | (kindBit << snapshotKindShift)
	word1 = entry.value
	return word0, word1
}

// unpackEntry decodes one two-word wire entry back into an attribute
// id and context entry.
func unpackEntry(word0, word1 uint64) (ID, contextEntry) {
	attr := ID(word0 & snapshotAttrMask)
	kind := kindRef
	if (word0>>snapshotKindShift)&1 == 1 {
		kind = kindInline
	}
	return attr, contextEntry{kind: kind, value: word1}
}

// decodeSnapshot splits a raw snapshot buffer into its two-word
// entries. A trailing partial entry (fewer than two remaining words)
// is ignored, matching GetContext's truncate-at-entry-boundary
// contract.
func decodeSnapshot(buf []uint64) []struct {
	Attr  ID
	Entry contextEntry
} {
	n := len(buf) / 2
	out := make([]struct {
		Attr  ID
		Entry contextEntry
	}, 0, n)

	for i := 0; i < n; i++ {
		attr, entry := unpackEntry(buf[2*i], buf[2*i+1])
		out = append(out, struct {
			Attr  ID
			Entry contextEntry
		}{attr, entry})
	}
	return out
}
