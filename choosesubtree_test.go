package xtree

import "testing"

func buildTwoLeafTree(t *testing.T, ps *pageStore, cfg Config) (child1, child2 *Node) {
	t.Helper()

	child1 = newLeafNode(ps.alloc(), cfg.Dimensions, ps.cap.leafCap)
	child1.AddLeafEntry(LeafEntry{PointID: 1, Coords: []float64{0, 0}})
	child1.AddLeafEntry(LeafEntry{PointID: 2, Coords: []float64{1, 1}})

	child2 = newLeafNode(ps.alloc(), cfg.Dimensions, ps.cap.leafCap)
	child2.AddLeafEntry(LeafEntry{PointID: 3, Coords: []float64{10, 10}})
	child2.AddLeafEntry(LeafEntry{PointID: 4, Coords: []float64{11, 11}})

	if err := ps.write(child1); err != nil {
		t.Fatalf("write child1: %v", err)
	}
	if err := ps.write(child2); err != nil {
		t.Fatalf("write child2: %v", err)
	}

	root := newDirNode(rootPageID, cfg.Dimensions, ps.cap.dirCap)
	root.AddDirEntry(DirEntry{ChildPageID: child1.PageID, MBR: child1.MBR(), History: newSplitHistory(cfg.Dimensions), NumPoints: uint64(len(child1.Leaves))})
	root.AddDirEntry(DirEntry{ChildPageID: child2.PageID, MBR: child2.MBR(), History: newSplitHistory(cfg.Dimensions), NumPoints: uint64(len(child2.Leaves))})
	if err := ps.write(root); err != nil {
		t.Fatalf("write root: %v", err)
	}
	return child1, child2
}

func TestChooseSubtreePicksContainingChild(t *testing.T) {
	cfg := testConfig2D()
	ps := newTestPageStore(t, cfg)
	child1, child2 := buildTwoLeafTree(t, ps, cfg)

	r := pointMBR(Point{Coords: []float64{0.5, 0.5}})
	path, err := chooseSubtree(ps, cfg, 2, 1, r)
	if err != nil {
		t.Fatalf("chooseSubtree: %v", err)
	}
	if path.leafPageID() != child1.PageID {
		t.Errorf("expected to choose child1 (page %d), got page %d", child1.PageID, path.leafPageID())
	}

	r2 := pointMBR(Point{Coords: []float64{10.5, 10.5}})
	path2, err := chooseSubtree(ps, cfg, 2, 1, r2)
	if err != nil {
		t.Fatalf("chooseSubtree: %v", err)
	}
	if path2.leafPageID() != child2.PageID {
		t.Errorf("expected to choose child2 (page %d), got page %d", child2.PageID, path2.leafPageID())
	}
}

func TestChooseChildPrefersLeastVolumeIncrease(t *testing.T) {
	node := &Node{Kind: nodeKindDirectory, dims: 2}
	node.AddDirEntry(DirEntry{ChildPageID: 1, MBR: MBR{Lo: []float64{0, 0}, Hi: []float64{1, 1}}})
	node.AddDirEntry(DirEntry{ChildPageID: 2, MBR: MBR{Lo: []float64{100, 100}, Hi: []float64{101, 101}}})

	r := MBR{Lo: []float64{1.1, 1.1}, Hi: []float64{1.2, 1.2}}
	idx, err := chooseChild(node, r, false, DefaultConfig(2))
	if err != nil {
		t.Fatalf("chooseChild: %v", err)
	}
	if idx != 0 {
		t.Errorf("expected entry 0 (smallest volume increase), got %d", idx)
	}
}
