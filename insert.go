package xtree

// insertionState tracks, for a single top-level insertion, which tree
// levels have already gone through forced reinsertion — R*-tree style
// "first overflow per level per insertion". It is freshly allocated at
// the start of every Insert call and discarded afterward; it is never
// persisted.
type insertionState struct {
	overflowedLevels map[int]bool
}

// chooseSubtreeWithNodes runs chooseSubtree and additionally returns the
// Node read at every step of the path, so the insertion driver can
// mutate and rewrite them without a second disk read.
func chooseSubtreeWithNodes(ps *pageStore, cfg Config, currentHeight, targetLevel int, r MBR) (*chooseSubtreePath, []*Node, error) {
	path, err := chooseSubtree(ps, cfg, currentHeight, targetLevel, r)
	if err != nil {
		return nil, nil, err
	}
	nodes := make([]*Node, len(path.steps))
	for i, s := range path.steps {
		n, err := ps.read(s.pageID)
		if err != nil {
			return nil, nil, err
		}
		nodes[i] = n
	}
	return path, nodes, nil
}

// Insert adds a point to the tree.
func (t *Tree) Insert(p Point) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(p.Coords) != t.cfg.Dimensions {
		return WrapErrorf(ErrConfigInvalid, nil, "point has %d dimensions, tree has %d", len(p.Coords), t.cfg.Dimensions)
	}
	coords := make([]float64, len(p.Coords))
	copy(coords, p.Coords)
	for _, c := range coords {
		if err := checkFinite(c); err != nil {
			return err
		}
	}
	entry := LeafEntry{PointID: p.ID, Coords: coords}

	path, nodes, err := chooseSubtreeWithNodes(t.ps, t.cfg, t.height, 1, entry.mbr())
	if err != nil {
		return err
	}
	leaf := nodes[len(nodes)-1]
	containedBefore := leaf.NumEntries() > 0 && contains(leaf.MBR(), entry.mbr())

	leaf.AddLeafEntry(entry)
	if err := t.ps.write(leaf); err != nil {
		return err
	}
	t.ps.hdr.NumElements++

	bumpAncestorCounts(path, nodes, 1)

	overflowed := leaf.NumEntries() > leaf.Capacity
	isRoot := leaf.PageID == rootPageID
	if !overflowed && (isRoot || containedBefore) {
		return t.writeAncestorsFrom(path, nodes, len(nodes)-1)
	}

	state := &insertionState{overflowedLevels: make(map[int]bool)}
	return t.adjustTree(path, nodes, len(nodes)-1, state)
}

// bumpAncestorCounts increments NumPoints on every directory entry along
// the path that leads to the freshly-grown subtree (used by DATA
// overlap scoring). delta is the number of leaf points the change adds.
func bumpAncestorCounts(path *chooseSubtreePath, nodes []*Node, delta uint64) {
	for i := 0; i < len(path.steps)-1; i++ {
		idx := path.steps[i+1].index
		nodes[i].Dirs[idx].NumPoints += delta
	}
}

// writeAncestorsFrom persists every node above fromIdx, children first,
// used when only a leaf's point count changed and no MBR propagation
// or overflow handling was otherwise triggered.
func (t *Tree) writeAncestorsFrom(path *chooseSubtreePath, nodes []*Node, fromIdx int) error {
	for i := fromIdx - 1; i >= 0; i-- {
		if err := t.ps.write(nodes[i]); err != nil {
			return err
		}
	}
	return nil
}

// adjustTree walks from nodes[startIdx] up to the root, handling
// supernode growth, overflow treatment (forced reinsertion, then
// split; an overflowing root is split without reinsertion), root
// creation, and MBR propagation.
func (t *Tree) adjustTree(path *chooseSubtreePath, nodes []*Node, startIdx int, state *insertionState) error {
	i := startIdx
	for i >= 0 {
		node := nodes[i]
		level := t.height - i

		if node.IsSuper() {
			if node.NumEntries() > node.Capacity {
				node.growSuper(t.cap.dirCap)
				if err := t.ps.claimGrowthSlot(node.PageID); err != nil {
					return err
				}
			}
			if err := t.ps.write(node); err != nil {
				return err
			}
			if i == 0 {
				return nil
			}
			changed := t.propagateMBR(nodes, path, i)
			if !changed {
				return nil
			}
			i--
			continue
		}

		if node.NumEntries() > node.Capacity {
			if i > 0 && !state.overflowedLevels[level] {
				state.overflowedLevels[level] = true
				if err := t.forcedReinsert(node, level, state); err != nil {
					return err
				}
				if err := t.ps.write(node); err != nil {
					return err
				}
				if i == 0 {
					return nil
				}
				changed := t.propagateMBR(nodes, path, i)
				if !changed {
					return nil
				}
				i--
				continue
			}

			outcome, err := xsplit(node, t.cfg, t.cap.minFanout)
			if err != nil {
				return err
			}
			if outcome.Supernode {
				if node.IsLeaf() {
					return WrapErrorf(ErrInvariantViolation, nil, "leaf %d cannot become a supernode", node.PageID)
				}
				node.growSuper(t.cap.dirCap)
				if err := t.ps.registerSuper(node); err != nil {
					return err
				}
				if i == 0 {
					return nil
				}
				changed := t.propagateMBR(nodes, path, i)
				if !changed {
					return nil
				}
				i--
				continue
			}

			nodeA, nodeB := materializeSplit(node, outcome)
			if i == 0 {
				if err := t.splitRoot(nodeA, nodeB, outcome.Axis); err != nil {
					return err
				}
				return nil
			}

			nodeB.PageID = t.ps.alloc()
			if err := t.ps.write(nodeA); err != nil {
				return err
			}
			if err := t.ps.write(nodeB); err != nil {
				return err
			}

			parent := nodes[i-1]
			idx := path.steps[i].index
			origHistory := parent.Dirs[idx].History
			parent.Dirs[idx] = DirEntry{
				ChildPageID: nodeA.PageID,
				MBR:         nodeA.MBR(),
				History:     origHistory.WithAxis(outcome.Axis),
				NumPoints:   subtreePoints(nodeA),
			}
			parent.AddDirEntry(DirEntry{
				ChildPageID: nodeB.PageID,
				MBR:         nodeB.MBR(),
				History:     origHistory.WithAxis(outcome.Axis),
				NumPoints:   subtreePoints(nodeB),
			})

			i--
			continue
		}

		if err := t.ps.write(node); err != nil {
			return err
		}
		if i == 0 {
			return nil
		}
		changed := t.propagateMBR(nodes, path, i)
		if !changed {
			return nil
		}
		i--
	}
	return nil
}

// propagateMBR updates the parent's directory entry MBR to match
// nodes[i]'s current MBR, returning whether it actually changed, so
// the caller can stop walking upward once a level leaves the MBR
// unchanged.
func (t *Tree) propagateMBR(nodes []*Node, path *chooseSubtreePath, i int) bool {
	parent := nodes[i-1]
	idx := path.steps[i].index
	newMBR := nodes[i].MBR()
	if equalsMBR(parent.Dirs[idx].MBR, newMBR) {
		return false
	}
	parent.Dirs[idx].MBR = newMBR
	return true
}

// materializeSplit builds the two resulting nodes from a splitOutcome.
// nodeA keeps the original node's page id; nodeB's page id is assigned
// by the caller (a fresh alloc for a non-root split, or during
// new-root construction for a root split).
func materializeSplit(node *Node, outcome splitOutcome) (*Node, *Node) {
	nodeA := &Node{PageID: node.PageID, Kind: node.Kind, Capacity: node.Capacity, dims: node.dims}
	nodeB := &Node{PageID: node.PageID, Kind: node.Kind, Capacity: node.Capacity, dims: node.dims}

	if node.IsLeaf() {
		for _, idx := range outcome.GroupA {
			nodeA.Leaves = append(nodeA.Leaves, cloneLeafEntry(node.Leaves[idx]))
		}
		for _, idx := range outcome.GroupB {
			nodeB.Leaves = append(nodeB.Leaves, cloneLeafEntry(node.Leaves[idx]))
		}
		return nodeA, nodeB
	}

	for _, idx := range outcome.GroupA {
		nodeA.Dirs = append(nodeA.Dirs, cloneDirEntry(node.Dirs[idx]))
	}
	for _, idx := range outcome.GroupB {
		nodeB.Dirs = append(nodeB.Dirs, cloneDirEntry(node.Dirs[idx]))
	}
	return nodeA, nodeB
}

// subtreePoints returns the number of leaf points under n: its own
// entry count if n is a leaf, or the sum of its children's counts.
func subtreePoints(n *Node) uint64 {
	if n.IsLeaf() {
		return uint64(len(n.Leaves))
	}
	return n.TotalPoints()
}

// splitRoot handles the root-split case: the root's page id is fixed
// and well-known, so the two halves of the split root are relocated to
// fresh page ids and a brand new directory node — the new root — is
// written at rootPageID.
func (t *Tree) splitRoot(nodeA, nodeB *Node, axis int) error {
	nodeA.PageID = t.ps.alloc()
	nodeB.PageID = t.ps.alloc()
	if err := t.ps.write(nodeA); err != nil {
		return err
	}
	if err := t.ps.write(nodeB); err != nil {
		return err
	}

	newRoot := newDirNode(rootPageID, t.cfg.Dimensions, t.cap.dirCap)
	hist := newSplitHistory(t.cfg.Dimensions).WithAxis(axis)
	newRoot.AddDirEntry(DirEntry{ChildPageID: nodeA.PageID, MBR: nodeA.MBR(), History: hist.Clone(), NumPoints: subtreePoints(nodeA)})
	newRoot.AddDirEntry(DirEntry{ChildPageID: nodeB.PageID, MBR: nodeB.MBR(), History: hist.Clone(), NumPoints: subtreePoints(nodeB)})

	if err := t.ps.write(newRoot); err != nil {
		return err
	}
	t.height++
	return nil
}

// forcedReinsert implements the R*-tree style overflow mitigation:
// remove the farthest entries from the node's MBR center, shrink the
// node, and reinsert the removed entries from the root at the current
// level.
func (t *Tree) forcedReinsert(node *Node, level int, state *insertionState) error {
	count := reinsertCount(node.Capacity, t.cfg.ReinsertFraction)

	if node.IsLeaf() {
		idx := farthestEntries(node, count)
		removed, kept := splitRemovedLeaf(node, idx)
		node.Leaves = kept
		for _, e := range removed {
			if err := t.reinsertLeafAtLevel(e, level, state); err != nil {
				return err
			}
		}
		return nil
	}

	idx := farthestEntries(node, count)
	removed, kept := splitRemovedDir(node, idx)
	node.Dirs = kept
	for _, e := range removed {
		if err := t.reinsertDirAtLevel(e, level, state); err != nil {
			return err
		}
	}
	return nil
}

// reinsertLeafAtLevel re-descends from the root to `level` (Choose-
// subtree) and appends a previously-removed leaf entry there, then
// continues tree adjustment using the same per-insertion overflow
// state, so a second overflow at the same level goes straight to split.
func (t *Tree) reinsertLeafAtLevel(entry LeafEntry, level int, state *insertionState) error {
	path, nodes, err := chooseSubtreeWithNodes(t.ps, t.cfg, t.height, level, entry.mbr())
	if err != nil {
		return err
	}
	target := nodes[len(nodes)-1]
	target.AddLeafEntry(entry)
	bumpAncestorCounts(path, nodes, 1)
	return t.adjustTree(path, nodes, len(nodes)-1, state)
}

// reinsertDirAtLevel is reinsertLeafAtLevel's directory-entry
// counterpart, used when a directory node (not a leaf) overflows.
func (t *Tree) reinsertDirAtLevel(entry DirEntry, level int, state *insertionState) error {
	path, nodes, err := chooseSubtreeWithNodes(t.ps, t.cfg, t.height, level, entry.MBR)
	if err != nil {
		return err
	}
	target := nodes[len(nodes)-1]
	target.AddDirEntry(entry)
	bumpAncestorCounts(path, nodes, entry.NumPoints)
	return t.adjustTree(path, nodes, len(nodes)-1, state)
}
