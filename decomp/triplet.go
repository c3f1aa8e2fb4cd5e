package decomp

import "sort"

// Triplet is the unit of an exchange plan: a peer rank, a local slot, and
// the global element ID that ties them together. Which side of an exchange
// a Triplet describes depends on which table it lives in: in a CompList it
// is keyed by the I/O rank that owns Elem and Slot is this rank's position
// in its own compute buffer; in an IOList it is keyed by the compute rank
// supplying Elem and Slot is the position in the I/O-side buffer.
type Triplet struct {
	Peer int64
	Slot int64
	Elem int64
}

// Field selects one of a Triplet's three columns, standing in for the
// "which field" integer the sort/search contract is built around.
type Field int

const (
	FieldPeer Field = iota
	FieldSlot
	FieldElem
)

func (t Triplet) field(f Field) int64 {
	switch f {
	case FieldPeer:
		return t.Peer
	case FieldSlot:
		return t.Slot
	default:
		return t.Elem
	}
}

// TripletTable is an ordered sequence of triplets. The two orderings used
// by the exchange-plan builder are by Elem (for lookups during
// construction) and by Peer (the permanent, post-construction invariant
// consumed by the transfer engine).
type TripletTable []Triplet

// Sort orders table in place by field, breaking ties by the remaining two
// fields in the order tieBreakOrder gives (ascending field-index order,
// except that FieldPeer breaks ties by Elem before Slot) so that repeated
// sorts of the same data are deterministic and sort-then-search is well
// defined.
func Sort(table TripletTable, field Field) {
	order := tieBreakOrder(field)
	sort.SliceStable(table, func(i, j int) bool {
		for _, f := range order {
			vi, vj := table[i].field(f), table[j].field(f)
			if vi != vj {
				return vi < vj
			}
		}
		return false
	})
}

// tieBreakOrder returns [primary, then the other two fields]. For
// FieldPeer the secondary key is always Elem, never Slot: §4.4 requires
// the ordering within a peer group to be increasing element ID on both
// sides of a transfer, so that the sender's packing order and the
// receiver's unpacking order agree byte-for-byte regardless of what
// arbitrary Slot values the caller's own buffer layout happens to carry.
func tieBreakOrder(primary Field) [3]Field {
	switch primary {
	case FieldPeer:
		return [3]Field{FieldPeer, FieldElem, FieldSlot}
	case FieldSlot:
		return [3]Field{FieldSlot, FieldPeer, FieldElem}
	default:
		return [3]Field{FieldElem, FieldPeer, FieldSlot}
	}
}

// Search performs a binary search over a table already sorted by field,
// returning the index of some triplet whose field equals key and true, or
// (0, false) if none exists. When multiple triplets match, which index is
// returned is unspecified; callers must only rely on the found flag.
func Search(table TripletTable, key int64, field Field) (int, bool) {
	i := sort.Search(len(table), func(i int) bool {
		return table[i].field(field) >= key
	})
	if i < len(table) && table[i].field(field) == key {
		return i, true
	}
	return 0, false
}
