package xtree

import "testing"

func TestReinsertCountCeilsFraction(t *testing.T) {
	if got := reinsertCount(10, 0.3); got != 3 {
		t.Errorf("reinsertCount(10, 0.3) = %d, want 3", got)
	}
	if got := reinsertCount(4, 0.3); got != 2 {
		t.Errorf("reinsertCount(4, 0.3) = %d, want 2", got)
	}
}

func TestFarthestEntriesOrdersByCenterDistance(t *testing.T) {
	n := newLeafNode(0, 2, 8)
	// The MBR is [0,10]x[0,0], so its center is (5,0).
	n.AddLeafEntry(LeafEntry{PointID: 1, Coords: []float64{0, 0}})  // distance 5
	n.AddLeafEntry(LeafEntry{PointID: 2, Coords: []float64{10, 0}}) // distance 5
	n.AddLeafEntry(LeafEntry{PointID: 3, Coords: []float64{5, 0}})  // at the center

	// Indices 0 and 1 tie; the stable ranking keeps the earlier one first.
	idx := farthestEntries(n, 1)
	if len(idx) != 1 || idx[0] != 0 {
		t.Errorf("expected index 0 (first of the two farthest points) first, got %v", idx)
	}
}

func TestSplitRemovedLeafPartitions(t *testing.T) {
	n := newLeafNode(0, 2, 8)
	for i := 0; i < 5; i++ {
		n.AddLeafEntry(LeafEntry{PointID: uint64(i), Coords: []float64{float64(i), 0}})
	}
	removed, kept := splitRemovedLeaf(n, []int{1, 3})
	if len(removed) != 2 || len(kept) != 3 {
		t.Fatalf("got %d removed, %d kept; want 2, 3", len(removed), len(kept))
	}
	for _, e := range removed {
		if e.PointID != 1 && e.PointID != 3 {
			t.Errorf("unexpected removed entry %d", e.PointID)
		}
	}
}
