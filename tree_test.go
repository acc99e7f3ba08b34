package xtree

import "testing"

// Inserting (0,0),(1,0),(0,1),(1,1),(0.5,0.5) into a tree with
// leaf_cap = dir_cap = 4, min_fanout = 2 overflows the root leaf on the
// fifth point. Expect one leaf split; the resulting root has 2
// directory entries, both children >= leaf_min.
func TestInsertCausesLeafSplit(t *testing.T) {
	cfg := testConfig2D()
	tr, _ := newTestTree(t, cfg)

	pts := [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0.5, 0.5}}
	for i, p := range pts {
		if err := tr.Insert(Point{ID: uint64(i), Coords: []float64{p[0], p[1]}}); err != nil {
			t.Fatalf("Insert %v: %v", p, err)
		}
	}

	if tr.height < 2 {
		t.Fatalf("expected the leaf to have split (height >= 2), got height=%d", tr.height)
	}
	root, err := tr.ps.read(rootPageID)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if root.IsLeaf() || len(root.Dirs) != 2 {
		t.Fatalf("expected root with 2 directory entries, got isLeaf=%v entries=%d", root.IsLeaf(), len(root.Dirs))
	}
	leafMin := tr.cap.leafMin
	for _, e := range root.Dirs {
		child, err := tr.ps.read(e.ChildPageID)
		if err != nil {
			t.Fatalf("read child %d: %v", e.ChildPageID, err)
		}
		if child.NumEntries() < leafMin {
			t.Errorf("child %d has %d entries, below leaf_min=%d", e.ChildPageID, child.NumEntries(), leafMin)
		}
	}
}

// Inserting a 4x4 grid of 16 points should keep height >= 2, produce no
// supernodes (a regular grid always has an acceptable low-overlap
// split), and bound every directory entry's split-history bit count by
// height-1 (an entry can gain at most one more history bit per level
// above it).
func TestInsertGridNoSupernodesAndHistoryBound(t *testing.T) {
	cfg := testConfig2D()
	tr, _ := newTestTree(t, cfg)

	id := uint64(0)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			if err := tr.Insert(Point{ID: id, Coords: []float64{float64(x), float64(y)}}); err != nil {
				t.Fatalf("Insert (%d,%d): %v", x, y, err)
			}
			id++
		}
	}

	if tr.height < 2 {
		t.Fatalf("expected height >= 2 after 16 points, got %d", tr.height)
	}
	if tr.ps.supers.len() != 0 {
		t.Errorf("expected no supernodes for this regular grid, got %d", tr.ps.supers.len())
	}

	maxBits := tr.height - 1
	walkDirectoryEntries(t, tr, rootPageID, func(e DirEntry) {
		if e.History.bits.count() > maxBits {
			t.Errorf("entry pointing at page %d has %d history bits, exceeds height-1=%d", e.ChildPageID, e.History.bits.count(), maxBits)
		}
	})
}

// For every directory entry e, split_history(e) must be a subset of
// the bits of any of e's children's histories: a split axis recorded
// on an ancestor can never disappear from a descendant's history.
func TestSplitHistorySubsetInvariant(t *testing.T) {
	cfg := testConfig2D()
	tr, _ := newTestTree(t, cfg)

	id := uint64(0)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			if err := tr.Insert(Point{ID: id, Coords: []float64{float64(x), float64(y)}}); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			id++
		}
	}

	walkDirectoryEntries(t, tr, rootPageID, func(e DirEntry) {
		child, err := tr.ps.read(e.ChildPageID)
		if err != nil {
			t.Fatalf("read child %d: %v", e.ChildPageID, err)
		}
		if child.IsLeaf() {
			return
		}
		for _, grandchild := range child.Dirs {
			if !e.History.IsSubsetOf(grandchild.History) {
				t.Errorf("entry for page %d has history not a subset of grandchild page %d's history", e.ChildPageID, grandchild.ChildPageID)
			}
		}
	})
}

func walkDirectoryEntries(t *testing.T, tr *Tree, pageID uint32, visit func(DirEntry)) {
	t.Helper()
	n, err := tr.ps.read(pageID)
	if err != nil {
		t.Fatalf("read page %d: %v", pageID, err)
	}
	if n.IsLeaf() {
		return
	}
	for _, e := range n.Dirs {
		visit(e)
		walkDirectoryEntries(t, tr, e.ChildPageID, visit)
	}
}

// A containment query for a box containing only an inserted point
// returns that point.
func TestWindowQueryReturnsInsertedPoint(t *testing.T) {
	cfg := testConfig2D()
	tr, _ := newTestTree(t, cfg)

	for i, p := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0.5, 0.5}} {
		if err := tr.Insert(Point{ID: uint64(i), Coords: []float64{p[0], p[1]}}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	box := MBR{Lo: []float64{0.4, 0.4}, Hi: []float64{0.6, 0.6}}
	got, err := tr.Window(box)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(got) != 1 || got[0].ID != 4 {
		t.Fatalf("Window(%v) = %v, want exactly point id 4", box, got)
	}
}

// A round-trip through commit()/load() must preserve num_elements, the
// set of leaf points, and the root MBR.
func TestCommitLoadRoundTrip(t *testing.T) {
	cfg := testConfig2D()
	tr, path := newTestTree(t, cfg)

	id := uint64(0)
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			if err := tr.Insert(Point{ID: id, Coords: []float64{float64(x), float64(y)}}); err != nil {
				t.Fatalf("Insert: %v", err)
			}
			id++
		}
	}
	wantElements := tr.NumElements()
	wantPoints := collectAllPoints(t, tr)

	root, err := tr.ps.read(rootPageID)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	wantRootMBR := root.MBR()

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	if reopened.NumElements() != wantElements {
		t.Errorf("num_elements = %d, want %d", reopened.NumElements(), wantElements)
	}

	gotPoints := collectAllPoints(t, reopened)
	if len(gotPoints) != len(wantPoints) {
		t.Fatalf("got %d points after reload, want %d", len(gotPoints), len(wantPoints))
	}
	for id, coords := range wantPoints {
		got, ok := gotPoints[id]
		if !ok {
			t.Errorf("point id %d missing after reload", id)
			continue
		}
		if got[0] != coords[0] || got[1] != coords[1] {
			t.Errorf("point id %d = %v after reload, want %v", id, got, coords)
		}
	}

	reopenedRoot, err := reopened.ps.read(rootPageID)
	if err != nil {
		t.Fatalf("read reopened root: %v", err)
	}
	if !equalsMBR(reopenedRoot.MBR(), wantRootMBR) {
		t.Errorf("root MBR after reload = %+v, want %+v", reopenedRoot.MBR(), wantRootMBR)
	}
}

func collectAllPoints(t *testing.T, tr *Tree) map[uint64][]float64 {
	t.Helper()
	out := make(map[uint64][]float64)
	var walk func(pageID uint32)
	walk = func(pageID uint32) {
		n, err := tr.ps.read(pageID)
		if err != nil {
			t.Fatalf("read page %d: %v", pageID, err)
		}
		if n.IsLeaf() {
			for _, e := range n.Leaves {
				out[e.PointID] = e.Coords
			}
			return
		}
		for _, e := range n.Dirs {
			walk(e.ChildPageID)
		}
	}
	walk(rootPageID)
	return out
}

// commit() followed by another commit() without intervening mutation
// must yield identical bytes from the supernode offset onward.
func TestIdempotentCommit(t *testing.T) {
	cfg := testConfig2D()
	tr, _ := newTestTree(t, cfg)

	for i := 0; i < 5; i++ {
		if err := tr.Insert(Point{ID: uint64(i), Coords: []float64{float64(i), 0}}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	if err := tr.ps.commit(); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	first := readTrailerBytes(t, tr)

	if err := tr.ps.commit(); err != nil {
		t.Fatalf("second commit: %v", err)
	}
	second := readTrailerBytes(t, tr)

	if len(first) != len(second) {
		t.Fatalf("trailer length changed across idempotent commits: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("trailer byte %d differs across idempotent commits", i)
		}
	}
}

func readTrailerBytes(t *testing.T, tr *Tree) []byte {
	t.Helper()
	off := tr.ps.pagesRegionStart() + int64(tr.ps.hdr.SupernodeOffset)
	fi, err := tr.ps.file.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	buf := make([]byte, fi.Size()-off)
	if _, err := tr.ps.file.ReadAt(buf, off); err != nil {
		t.Fatalf("read trailer: %v", err)
	}
	return buf
}

// Five identical directory-entry MBRs force an unsplittable node into
// a supernode of capacity 2*dir_cap; commit() produces a supernode
// region of exactly 2*page_size bytes beyond the header+reserved
// region.
func TestSupernodeEscapeAndCommitRegionSize(t *testing.T) {
	cfg := testConfig2D()
	cfg.MaxOverlap = 0.0
	ps := newTestPageStore(t, cfg)

	dirCap := ps.cap.dirCap
	n := newDirNode(rootPageID, 2, dirCap)
	for i := 0; i < dirCap+1; i++ {
		child := newLeafNode(ps.alloc(), 2, ps.cap.leafCap)
		child.AddLeafEntry(LeafEntry{PointID: uint64(i), Coords: []float64{0, 0}})
		if err := ps.write(child); err != nil {
			t.Fatalf("write child: %v", err)
		}
		n.AddDirEntry(DirEntry{
			ChildPageID: child.PageID,
			MBR:         MBR{Lo: []float64{0, 0}, Hi: []float64{1, 1}},
			History:     newSplitHistory(2),
			NumPoints:   1,
		})
	}

	outcome, err := xsplit(n, cfg, ps.cap.minFanout)
	if err != nil {
		t.Fatalf("xsplit: %v", err)
	}
	if !outcome.Supernode {
		t.Fatal("expected identical-MBR overflow to escape to a supernode")
	}
	n.growSuper(dirCap)
	if err := ps.registerSuper(n); err != nil {
		t.Fatalf("registerSuper: %v", err)
	}
	if n.Capacity != 2*dirCap {
		t.Fatalf("supernode capacity = %d, want %d", n.Capacity, 2*dirCap)
	}

	if err := ps.commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	fi, err := ps.file.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	trailerStart := ps.pagesRegionStart() + int64(ps.hdr.SupernodeOffset)
	gotRegion := fi.Size() - trailerStart
	wantRegion := int64(2) * int64(ps.hdr.PageSize)
	if gotRegion != wantRegion {
		t.Errorf("supernode region = %d bytes, want %d (2*page_size)", gotRegion, wantRegion)
	}
}
