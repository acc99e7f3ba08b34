package xtree

import "sort"

// splitOutcome is the result of running the X-Splitter on an
// overflowing node.
type splitOutcome struct {
	// Supernode is true when no split candidate is acceptable and the
	// node must instead grow as a supernode.
	Supernode bool

	// Axis is the chosen split axis (meaningless when Supernode).
	Axis int

	// GroupA/GroupB are the indices (into the node's original entry
	// slice) assigned to each side of the split.
	GroupA, GroupB []int
}

// splitCandidate is one (axis, sort-order, split-point) combination
// considered during topological enumeration.
type splitCandidate struct {
	axis     int
	groupA   []int
	groupB   []int
	mbrA     MBR
	mbrB     MBR
	goodness float64 // sum of perimeters; smaller is better
	overlap  float64
	totalVol float64
}

// xsplit runs the full X-Splitter over an overflowing node: topological
// split, split-history constraint, minimum-overlap fallback, and the
// supernode escape hatch. Leaves are unconstrained by history and must
// always succeed; failure at a leaf is a fatal invariant violation,
// never a supernode.
func xsplit(node *Node, cfg Config, minFanout int) (splitOutcome, error) {
	mbrs := entryMBRs(node)
	n := len(mbrs)
	if n < 2*minFanout {
		return splitOutcome{}, WrapErrorf(ErrInvariantViolation, nil, "node %d has %d entries, too few to split at min_fanout=%d", node.PageID, n, minFanout)
	}

	if node.IsLeaf() {
		legal := legalAxesForLeaf(cfg.Dimensions)
		cand, err := bestTopologicalCandidate(node, cfg, mbrs, allAxes(cfg.Dimensions), legal, minFanout)
		if err != nil {
			return splitOutcome{}, err
		}
		if cand == nil {
			return splitOutcome{}, WrapErrorf(ErrInvariantViolation, nil, "leaf %d failed to find any split candidate", node.PageID)
		}
		return splitOutcome{Axis: cand.axis, GroupA: cand.groupA, GroupB: cand.groupB}, nil
	}

	legalAxes := legalAxesForDirectory(node, cfg.Dimensions)
	topCand, err := bestTopologicalCandidate(node, cfg, mbrs, allAxes(cfg.Dimensions), legalAxes, minFanout)
	if err != nil {
		return splitOutcome{}, err
	}
	if topCand != nil && topCand.overlap <= cfg.MaxOverlap {
		return splitOutcome{Axis: topCand.axis, GroupA: topCand.groupA, GroupB: topCand.groupB}, nil
	}

	// Minimum-overlap fallback: all axes, history constraint dropped,
	// max_overlap threshold ignored while searching (only checked once
	// against the winner).
	allowAll := make([]bool, cfg.Dimensions)
	for i := range allowAll {
		allowAll[i] = true
	}
	fallback, err := bestByOverlap(node, cfg, mbrs, allAxes(cfg.Dimensions), allowAll, minFanout)
	if err != nil {
		return splitOutcome{}, err
	}
	if fallback == nil || fallback.overlap > cfg.MaxOverlap {
		return splitOutcome{Supernode: true}, nil
	}
	return splitOutcome{Axis: fallback.axis, GroupA: fallback.groupA, GroupB: fallback.groupB}, nil
}

func allAxes(dims int) []int {
	axes := make([]int, dims)
	for i := range axes {
		axes[i] = i
	}
	return axes
}

func entryMBRs(node *Node) []MBR {
	if node.IsLeaf() {
		mbrs := make([]MBR, len(node.Leaves))
		for i, e := range node.Leaves {
			mbrs[i] = e.mbr()
		}
		return mbrs
	}
	mbrs := make([]MBR, len(node.Dirs))
	for i, e := range node.Dirs {
		mbrs[i] = e.MBR
	}
	return mbrs
}

// legalAxesForLeaf returns all axes, since leaf entries carry no split
// history and the constraint is vacuous.
func legalAxesForLeaf(dims int) []bool {
	legal := make([]bool, dims)
	for i := range legal {
		legal[i] = true
	}
	return legal
}

// legalAxesForDirectory implements the split-history constraint: axis a
// is a legal topological-split candidate only if every entry in the
// node agrees on whether a has already been used as a split axis on
// its subtree's path — either set in all of them, or set in none.
func legalAxesForDirectory(node *Node, dims int) []bool {
	legal := make([]bool, dims)
	for a := 0; a < dims; a++ {
		allSet, allUnset := true, true
		for _, e := range node.Dirs {
			if e.History.Has(a) {
				allUnset = false
			} else {
				allSet = false
			}
		}
		legal[a] = allSet || allUnset
	}
	return legal
}

// bestTopologicalCandidate picks the axis with the best (smallest) sum
// of perimeter-goodness across its candidates, restricted to legal
// axes, then within that axis the candidate minimizing overlap (ties
// broken by minimum total volume).
func bestTopologicalCandidate(node *Node, cfg Config, mbrs []MBR, axes []int, legal []bool, minFanout int) (*splitCandidate, error) {
	var bestAxis = -1
	var bestAxisScore float64
	axisCandidates := make(map[int][]splitCandidate)

	for _, a := range axes {
		if !legal[a] {
			continue
		}
		cands, err := candidatesForAxis(mbrs, a, minFanout)
		if err != nil {
			return nil, err
		}
		if len(cands) == 0 {
			continue
		}
		var score float64
		for _, c := range cands {
			score += c.goodness
		}
		axisCandidates[a] = cands
		if bestAxis == -1 || score < bestAxisScore {
			bestAxis = a
			bestAxisScore = score
		}
	}
	if bestAxis == -1 {
		return nil, nil
	}

	cands := axisCandidates[bestAxis]
	best := &cands[0]
	if err := scoreOverlap(node, cfg, best); err != nil {
		return nil, err
	}
	for i := 1; i < len(cands); i++ {
		c := &cands[i]
		if err := scoreOverlap(node, cfg, c); err != nil {
			return nil, err
		}
		if c.overlap < best.overlap || (c.overlap == best.overlap && c.totalVol < best.totalVol) {
			best = c
		}
	}
	return best, nil
}

// bestByOverlap enumerates candidates across the given axes (optionally
// filtered by legal) and returns the single global overlap-minimizing
// candidate, ignoring axis score entirely — used as the minimum-overlap
// fallback once the topological pass fails to clear max_overlap.
func bestByOverlap(node *Node, cfg Config, mbrs []MBR, axes []int, legal []bool, minFanout int) (*splitCandidate, error) {
	var best *splitCandidate
	for _, a := range axes {
		if !legal[a] {
			continue
		}
		cands, err := candidatesForAxis(mbrs, a, minFanout)
		if err != nil {
			return nil, err
		}
		for i := range cands {
			c := &cands[i]
			if err := scoreOverlap(node, cfg, c); err != nil {
				return nil, err
			}
			if best == nil || c.overlap < best.overlap || (c.overlap == best.overlap && c.totalVol < best.totalVol) {
				cpy := *c
				best = &cpy
			}
		}
	}
	return best, nil
}

// candidatesForAxis builds both sort orders (by lo[a], by hi[a]) and
// enumerates every split point k in [minFanout, n-minFanout] for each,
// computing the perimeter-sum goodness.
func candidatesForAxis(mbrs []MBR, axis, minFanout int) ([]splitCandidate, error) {
	n := len(mbrs)
	orderLo := sortedIndices(mbrs, axis, false)
	orderHi := sortedIndices(mbrs, axis, true)

	var out []splitCandidate
	for _, order := range [][]int{orderLo, orderHi} {
		for k := minFanout; k <= n-minFanout; k++ {
			groupA := append([]int(nil), order[:k]...)
			groupB := append([]int(nil), order[k:]...)

			mbrA := unionAllIdx(mbrs, groupA)
			mbrB := unionAllIdx(mbrs, groupB)

			pA := perimeter(mbrA)
			pB := perimeter(mbrB)
			if err := checkFinite(pA); err != nil {
				return nil, err
			}
			if err := checkFinite(pB); err != nil {
				return nil, err
			}

			out = append(out, splitCandidate{
				axis:     axis,
				groupA:   groupA,
				groupB:   groupB,
				mbrA:     mbrA,
				mbrB:     mbrB,
				goodness: pA + pB,
			})
		}
	}
	return out, nil
}

func sortedIndices(mbrs []MBR, axis int, byHi bool) []int {
	idx := make([]int, len(mbrs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		if byHi {
			return mbrs[idx[i]].Hi[axis] < mbrs[idx[j]].Hi[axis]
		}
		return mbrs[idx[i]].Lo[axis] < mbrs[idx[j]].Lo[axis]
	})
	return idx
}

func unionAllIdx(mbrs []MBR, idx []int) MBR {
	sel := make([]MBR, len(idx))
	for i, ix := range idx {
		sel[i] = mbrs[ix]
	}
	return unionAll(sel)
}

// scoreOverlap fills in c.overlap and c.totalVol per the configured
// overlap definition.
func scoreOverlap(node *Node, cfg Config, c *splitCandidate) error {
	volA, err := volume(c.mbrA)
	if err != nil {
		return err
	}
	volB, err := volume(c.mbrB)
	if err != nil {
		return err
	}
	c.totalVol = volA + volB

	switch cfg.OverlapType {
	case OverlapData:
		c.overlap = dataOverlap(node, c)
	default:
		denom := volA + volB
		if denom == 0 {
			c.overlap = 0
			return nil
		}
		c.overlap = intersectionVolume(c.mbrA, c.mbrB) / denom
	}
	return nil
}

// dataOverlap scores overlap as the fraction of contained data points
// that fall in the intersection of the two groups, among those
// contained in their union.
//
// For a leaf split the count is exact: every point is tested against
// the intersection rectangle directly. For a directory split the exact
// count is unavailable (only each child subtree's aggregate point count
// and MBR are known), so the contribution of a directory entry is
// approximated by the fraction of its own MBR's volume that falls
// inside the intersection region — a documented approximation (see
// DESIGN.md), not a literal point count.
func dataOverlap(node *Node, c *splitCandidate) float64 {
	overlapRegion, ok := intersectionMBR(c.mbrA, c.mbrB)
	if !ok {
		return 0
	}

	var inIntersection, total float64
	if node.IsLeaf() {
		for _, idx := range append(append([]int(nil), c.groupA...), c.groupB...) {
			p := node.Leaves[idx].mbr()
			total++
			if contains(overlapRegion, p) {
				inIntersection++
			}
		}
		if total == 0 {
			return 0
		}
		return inIntersection / total
	}

	for _, idx := range append(append([]int(nil), c.groupA...), c.groupB...) {
		e := node.Dirs[idx]
		total += float64(e.NumPoints)
		if !intersects(e.MBR, overlapRegion) {
			continue
		}
		evol, _ := volume(e.MBR)
		if evol <= 0 {
			inIntersection += float64(e.NumPoints)
			continue
		}
		ivol := intersectionVolume(e.MBR, overlapRegion)
		inIntersection += float64(e.NumPoints) * (ivol / evol)
	}
	if total == 0 {
		return 0
	}
	return inIntersection / total
}

// intersectionMBR returns the overlap rectangle of a and b, and false
// if they don't actually intersect on every axis.
func intersectionMBR(a, b MBR) (MBR, bool) {
	lo := make([]float64, len(a.Lo))
	hi := make([]float64, len(a.Hi))
	for i := range a.Lo {
		lo[i] = maxF(a.Lo[i], b.Lo[i])
		hi[i] = minF(a.Hi[i], b.Hi[i])
		if lo[i] > hi[i] {
			return MBR{}, false
		}
	}
	return MBR{Lo: lo, Hi: hi}, true
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
