package xtree

import (
	"math"
	"sort"
)

// reinsertCount returns ceil(cap * reinsertFraction), the number of
// entries forcibly reinserted on the first overflow per level per
// insertion.
func reinsertCount(cap int, fraction float64) int {
	return int(math.Ceil(float64(cap) * fraction))
}

// farthestEntries ranks the node's entries by L2 center-distance from
// the node's own MBR center, farthest first, and returns the indices of
// the farthest `count` entries to remove.
func farthestEntries(node *Node, count int) []int {
	mbrs := entryMBRs(node)
	nodeCenter := center(node.MBR())

	type ranked struct {
		idx  int
		dist float64
	}
	ranked_ := make([]ranked, len(mbrs))
	for i, m := range mbrs {
		ranked_[i] = ranked{idx: i, dist: centerDistance2(center(m), nodeCenter)}
	}
	sort.SliceStable(ranked_, func(i, j int) bool {
		return ranked_[i].dist > ranked_[j].dist
	})

	if count > len(ranked_) {
		count = len(ranked_)
	}
	out := make([]int, count)
	for i := 0; i < count; i++ {
		out[i] = ranked_[i].idx
	}
	return out
}

// splitRemovedLeaf partitions a leaf node's entries into the removed set
// (for reinsertion) and the kept set (left on the shrunk node), given
// the indices chosen by farthestEntries.
func splitRemovedLeaf(node *Node, removedIdx []int) (removed []LeafEntry, kept []LeafEntry) {
	removedSet := toSet(removedIdx)
	for i, e := range node.Leaves {
		if removedSet[i] {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	return
}

// splitRemovedDir is splitRemovedLeaf's directory-node counterpart.
func splitRemovedDir(node *Node, removedIdx []int) (removed []DirEntry, kept []DirEntry) {
	removedSet := toSet(removedIdx)
	for i, e := range node.Dirs {
		if removedSet[i] {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	return
}

func toSet(idx []int) map[int]bool {
	m := make(map[int]bool, len(idx))
	for _, i := range idx {
		m[i] = true
	}
	return m
}
