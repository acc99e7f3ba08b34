package xtree

// SplitHistory is the per-directory-entry record of which axes have
// already been used to split an ancestor of the entry's subtree. Leaf
// entries carry no split history.
type SplitHistory struct {
	bits bitset
}

// newSplitHistory returns an empty history over `dims` dimensions.
func newSplitHistory(dims int) SplitHistory {
	return SplitHistory{bits: newBitset(dims)}
}

// Has reports whether axis has already been used as a split axis on
// some ancestor.
func (h SplitHistory) Has(axis int) bool {
	return h.bits.test(axis)
}

// WithAxis returns a clone of h with axis additionally marked. Used on
// every split: the splitting dimension is additionally set in both
// children's histories.
func (h SplitHistory) WithAxis(axis int) SplitHistory {
	clone := h.Clone()
	clone.bits.set(axis)
	return clone
}

// Clone returns an independent copy, so the history of an entry can be
// cloned into both children on a split without aliasing.
func (h SplitHistory) Clone() SplitHistory {
	return SplitHistory{bits: h.bits.clone()}
}

// IsSubsetOf reports whether split_history(e) is a subset of the bits
// of any of e's children's histories — the invariant split propagation
// must preserve.
func (h SplitHistory) IsSubsetOf(other SplitHistory) bool {
	return h.bits.subsetOf(other.bits)
}

func (h SplitHistory) encode() []byte {
	return h.bits.bytes()
}

func decodeSplitHistory(data []byte, dims int) SplitHistory {
	return SplitHistory{bits: bitsetFromBytes(data, dims)}
}
