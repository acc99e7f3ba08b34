package xtree

// LeafEntry is a leaf-level entry: an external point identifier plus
// its coordinates.
type LeafEntry struct {
	PointID uint64
	Coords  []float64
}

// mbr returns the degenerate MBR (Lo == Hi) covering this single point.
func (e LeafEntry) mbr() MBR {
	return MBR{Lo: e.Coords, Hi: e.Coords}
}

func cloneLeafEntry(e LeafEntry) LeafEntry {
	coords := make([]float64, len(e.Coords))
	copy(coords, e.Coords)
	return LeafEntry{PointID: e.PointID, Coords: coords}
}

// DirEntry is a directory-level entry: a pointer to a child page, the
// MBR covering that child's subtree, the split history accumulated
// along the path to that subtree, and a running count of the leaf
// points under it (used by DATA overlap scoring).
type DirEntry struct {
	ChildPageID uint32
	MBR         MBR
	History     SplitHistory
	NumPoints   uint64
}

func cloneDirEntry(e DirEntry) DirEntry {
	return DirEntry{
		ChildPageID: e.ChildPageID,
		MBR:         cloneMBR(e.MBR),
		History:     e.History.Clone(),
		NumPoints:   e.NumPoints,
	}
}
