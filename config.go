package xtree

// OverlapType selects how sibling overlap is scored during a split.
type OverlapType uint8

const (
	// OverlapVolume scores overlap as intersection volume over the sum
	// of the two candidate volumes.
	OverlapVolume OverlapType = iota

	// OverlapData scores overlap as the fraction of contained data
	// points that fall in the intersection of the two candidates.
	OverlapData
)

// Config holds the tunables that determine node capacities and split
// behavior. It is validated once, at tree construction.
type Config struct {
	// Dimensionality of points stored in the tree. Fixed for the life
	// of the tree.
	Dimensions int

	// PageSize is the on-disk page size in bytes; it determines the
	// derived capacities below.
	PageSize uint32

	// OverlapType selects VOLUME or DATA overlap scoring.
	OverlapType OverlapType

	// MaxOverlap is the threshold in [0, 1] above which a topological
	// split is rejected in favor of the minimum-overlap fallback (and,
	// failing that, a supernode).
	MaxOverlap float64

	// RelMinEntries is the ratio used to derive leaf_min/dir_min from
	// leaf_cap/dir_cap.
	RelMinEntries float64

	// RelMinFanout is the ratio used to derive min_fanout from dir_cap.
	RelMinFanout float64

	// ReinsertFraction is the fraction of a node's capacity that is
	// forcibly reinserted on the first overflow per level per
	// insertion, R*-tree style.
	ReinsertFraction float64

	// OmitOverlapForSupernodes, when true, makes Choose-subtree skip
	// the overlap-increase term when descending into a supernode.
	OmitOverlapForSupernodes bool

	// leafEntrySize and dirEntrySize are the measured per-entry byte
	// sizes used to derive capacities; they depend on Dimensions and
	// are computed by DefaultConfig / deriveCapacities.
	leafEntrySize int
	dirEntrySize  int
}

// DefaultConfig returns a Config with the teacher's conventional
// defaults for the given dimensionality: a 4KiB page, VOLUME overlap,
// a 20% max-overlap threshold, R*-tree's canonical 40% min-fill and 30%
// reinsertion fraction, and the supernode optimization enabled.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions:       dimensions,
		PageSize:         4096,
		OverlapType:      OverlapVolume,
		MaxOverlap:       0.2,
		RelMinEntries:    0.4,
		RelMinFanout:     0.3,
		ReinsertFraction: 0.3,

		OmitOverlapForSupernodes: true,
	}
}

// capacities holds the fanout numbers derived from page size and
// per-entry size: leafCap, dirCap, leafMin, dirMin, and minFanout.
type capacities struct {
	leafCap   int
	dirCap    int
	leafMin   int
	dirMin    int
	minFanout int
}

// clampMin2 clamps a rounded value to be at least 2, as required for
// leaf_min, dir_min, and min_fanout.
func clampMin2(v int) int {
	if v < 2 {
		return 2
	}
	return v
}

func roundRatio(n int, ratio float64) int {
	return int(float64(n)*ratio + 0.5)
}

// deriveCapacities computes leaf_cap, dir_cap, leaf_min, dir_min, and
// min_fanout from the page size and measured per-entry sizes. A page
// size too small to fit at least 2 directory entries (dir_cap <= 1) is
// rejected as a ConfigInvalid construction error.
func (c Config) deriveCapacities() (capacities, error) {
	const prelude = 14 // node prelude: page_id, is_leaf, is_super, num_entries, capacity

	usable := int(c.PageSize) - prelude
	leafEntrySize := c.leafEntrySize
	if leafEntrySize <= 0 {
		// 8 bytes per coordinate, point is lo==hi so only one vector,
		// plus an 8-byte external point id.
		leafEntrySize = 8*c.Dimensions + 8
	}
	dirEntrySize := c.dirEntrySize
	if dirEntrySize <= 0 {
		// child_page_id (4) + mbr (2*8*d) + split history bitset
		// (ceil(d/8) bytes, rounded to a whole number of bytes) + a
		// leaf-count field used by DATA overlap (8 bytes).
		dirEntrySize = 4 + 16*c.Dimensions + (c.Dimensions+7)/8 + 8
	}
	if usable <= 0 || leafEntrySize <= 0 || dirEntrySize <= 0 {
		return capacities{}, WrapErrorf(ErrConfigInvalid, nil, "page_size %d too small for dimensionality %d", c.PageSize, c.Dimensions)
	}

	leafCap := usable / leafEntrySize
	dirCap := usable / dirEntrySize
	if dirCap <= 1 || leafCap <= 1 {
		return capacities{}, WrapErrorf(ErrConfigInvalid, nil, "page_size %d yields dir_cap=%d leaf_cap=%d (need > 1)", c.PageSize, dirCap, leafCap)
	}

	leafMin := clampMin2(roundRatio(leafCap-1, c.RelMinEntries))
	dirMin := clampMin2(roundRatio(dirCap-1, c.RelMinEntries))
	minFanout := clampMin2(roundRatio(dirCap-1, c.RelMinFanout))

	if leafMin > leafCap || dirMin > dirCap || minFanout > dirCap {
		return capacities{}, WrapErrorf(ErrConfigInvalid, nil, "derived minimums exceed capacities (leaf_min=%d leaf_cap=%d dir_min=%d dir_cap=%d min_fanout=%d)", leafMin, leafCap, dirMin, dirCap, minFanout)
	}

	return capacities{
		leafCap:   leafCap,
		dirCap:    dirCap,
		leafMin:   leafMin,
		dirMin:    dirMin,
		minFanout: minFanout,
	}, nil
}

// validate checks config invariants that don't depend on capacity
// derivation: dimensionality, overlap threshold range, ratios.
func (c Config) validate() error {
	if c.Dimensions <= 0 {
		return WrapErrorf(ErrConfigInvalid, nil, "dimensions must be positive, got %d", c.Dimensions)
	}
	if c.Dimensions > 256 {
		// Split history is a per-dimension bitset; this is a generous
		// but finite bound matching the on-disk header's dimensionality
		// field (4 bytes) without inviting pathological allocations.
		return WrapErrorf(ErrConfigInvalid, nil, "dimensions %d exceeds supported maximum", c.Dimensions)
	}
	if c.MaxOverlap < 0 || c.MaxOverlap > 1 {
		return WrapErrorf(ErrConfigInvalid, nil, "max_overlap %f must be in [0, 1]", c.MaxOverlap)
	}
	if c.RelMinEntries <= 0 || c.RelMinEntries >= 1 {
		return WrapErrorf(ErrConfigInvalid, nil, "rel_min_entries %f must be in (0, 1)", c.RelMinEntries)
	}
	if c.RelMinFanout <= 0 || c.RelMinFanout >= 1 {
		return WrapErrorf(ErrConfigInvalid, nil, "rel_min_fanout %f must be in (0, 1)", c.RelMinFanout)
	}
	if c.ReinsertFraction <= 0 || c.ReinsertFraction >= 1 {
		return WrapErrorf(ErrConfigInvalid, nil, "reinsert_fraction %f must be in (0, 1)", c.ReinsertFraction)
	}
	if c.PageSize == 0 {
		return WrapErrorf(ErrConfigInvalid, nil, "page_size must be positive")
	}
	return nil
}
