package xtree

// pathStep records one step of a root-to-target descent: the page id
// visited and the index within its parent's entries that was followed
// to reach it (-1 for the root, which has no parent). Carrying a path
// of (page_id, index) pairs instead of parent pointers breaks the
// parent<->child cycle at the type level.
type pathStep struct {
	pageID uint32
	index  int
}

// chooseSubtreePath is the full root-to-target path produced by
// Choose-subtree: every pathStep visited, ending at the node satisfying
// the requested level.
type chooseSubtreePath struct {
	steps []pathStep
}

func (p *chooseSubtreePath) push(pageID uint32, index int) {
	p.steps = append(p.steps, pathStep{pageID: pageID, index: index})
}

func (p *chooseSubtreePath) leafPageID() uint32 {
	return p.steps[len(p.steps)-1].pageID
}

// chooseSubtree descends from the root to the node at `targetLevel`
// (1 = leaf level), choosing at each step the child that best
// accommodates r.
//
// currentHeight is the height of the root (leaves are height 1); the
// descent runs while currentHeight > targetLevel.
func chooseSubtree(ps *pageStore, cfg Config, currentHeight, targetLevel int, r MBR) (*chooseSubtreePath, error) {
	path := &chooseSubtreePath{}
	pageID := rootPageID
	path.push(pageID, -1)

	height := currentHeight
	for height > targetLevel {
		node, err := ps.read(pageID)
		if err != nil {
			return nil, err
		}
		if node.IsLeaf() {
			// Reached the bottom before satisfying targetLevel; this can
			// only happen if the caller passed a level above the actual
			// tree height, which the insertion driver never does.
			break
		}

		childrenAreLeaves := height-1 == 1
		includeOverlap := childrenAreLeaves && (!node.IsSuper() || !cfg.OmitOverlapForSupernodes)

		idx, err := chooseChild(node, r, includeOverlap, cfg)
		if err != nil {
			return nil, err
		}

		pageID = node.Dirs[idx].ChildPageID
		path.push(pageID, idx)
		height--
	}

	return path, nil
}

// chooseChild prefers a child whose MBR already contains r (minimum
// volume among those); otherwise it minimizes
// (overlap_increase, volume_increase, volume) lexicographically.
func chooseChild(node *Node, r MBR, includeOverlap bool, cfg Config) (int, error) {
	var containingBest = -1
	var containingBestVol float64

	for i, e := range node.Dirs {
		if contains(e.MBR, r) {
			vol, err := volume(e.MBR)
			if err != nil {
				return 0, err
			}
			if containingBest == -1 || vol < containingBestVol {
				containingBest = i
				containingBestVol = vol
			}
		}
	}
	if containingBest != -1 {
		return containingBest, nil
	}

	type candidate struct {
		idx          int
		overlapIncr  float64
		volIncr      float64
		vol          float64
	}

	var siblingMBRs []MBR
	if includeOverlap {
		siblingMBRs = make([]MBR, len(node.Dirs))
		for i, e := range node.Dirs {
			siblingMBRs[i] = e.MBR
		}
	}

	var best *candidate
	for i, e := range node.Dirs {
		testMBR := union(e.MBR, r)
		origVol, err := volume(e.MBR)
		if err != nil {
			return 0, err
		}
		testVol, err := volume(testMBR)
		if err != nil {
			return 0, err
		}

		var overlapIncr float64
		if includeOverlap {
			overlapIncr = overlapIncrease(e.MBR, testMBR, siblingMBRs, i)
			if err := checkFinite(overlapIncr); err != nil {
				return 0, err
			}
		}

		cand := candidate{
			idx:         i,
			overlapIncr: overlapIncr,
			volIncr:     testVol - origVol,
			vol:         origVol,
		}

		if best == nil || better(cand.overlapIncr, cand.volIncr, cand.vol, best.overlapIncr, best.volIncr, best.vol) {
			best = &cand
		}
	}
	if best == nil {
		return 0, WrapErrorf(ErrInvariantViolation, nil, "directory node %d has no entries", node.PageID)
	}
	return best.idx, nil
}

// better reports whether (o1, v1, vol1) lexicographically precedes
// (o2, v2, vol2). Strict less-than at each tier means earlier
// candidates (lower index, by insertion order) win ties.
func better(o1, v1, vol1, o2, v2, vol2 float64) bool {
	if o1 != o2 {
		return o1 < o2
	}
	if v1 != v2 {
		return v1 < v2
	}
	return vol1 < vol2
}

// overlapIncrease is the incremental change in the sum over siblings
// j != i of intersection_volume(child_i.mbr, child_j.mbr) when
// child_i.mbr is replaced by testMBR.
//
// If testMBR is identical to the child's current MBR, nothing can
// change and the increase is trivially zero without touching any
// sibling.
func overlapIncrease(childMBR, testMBR MBR, siblings []MBR, selfIdx int) float64 {
	if equalsMBR(childMBR, testMBR) {
		return 0
	}
	var sum float64
	for j, sib := range siblings {
		if j == selfIdx {
			continue
		}
		before := intersectionVolume(childMBR, sib)
		after := intersectionVolume(testMBR, sib)
		sum += after - before
	}
	return sum
}
