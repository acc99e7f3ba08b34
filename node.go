package xtree

import (
	"encoding/binary"
	"math"
)

// nodeKind distinguishes the three page variants: leaf, (regular)
// directory, and supernode. Modeled as a tagged variant rather than any
// subclass relationship.
type nodeKind uint8

const (
	nodeKindLeaf nodeKind = iota
	nodeKindDirectory
	nodeKindSuper
)

// preludeSize is the fixed 14-byte node prelude:
// page_id(4) is_leaf(1) is_super(1) num_entries(4) capacity(4).
const preludeSize = 14

// nodePrelude holds the decoded prelude fields. As a Go struct it is
// padded to 16 bytes, so it is not overlaid on the page bytes;
// readPrelude and serialize convert it field by field to and from the
// packed 14-byte layout.
//
// On-disk layout (little-endian):
//
//	Offset  Size  Field
//	0       4     page_id
//	4       1     is_leaf
//	5       1     is_super
//	6       4     num_entries
//	10      4     capacity
type nodePrelude struct {
	PageID     uint32
	IsLeaf     uint8
	IsSuper    uint8
	NumEntries uint32
	Capacity   uint32
}

func readPrelude(data []byte) *nodePrelude {
	if len(data) < preludeSize {
		return nil
	}
	return &nodePrelude{
		PageID:     binary.LittleEndian.Uint32(data[0:]),
		IsLeaf:     data[4],
		IsSuper:    data[5],
		NumEntries: binary.LittleEndian.Uint32(data[6:]),
		Capacity:   binary.LittleEndian.Uint32(data[10:]),
	}
}

// Node is a single page's worth of entries: either all leaf entries or
// all directory entries. dims carries the dimensionality needed to
// (de)serialize MBRs and split histories.
type Node struct {
	PageID   uint32
	Kind     nodeKind
	Capacity int
	dims     int

	Leaves []LeafEntry // valid when Kind == nodeKindLeaf
	Dirs   []DirEntry  // valid when Kind == nodeKindDirectory or nodeKindSuper
}

// newLeafNode creates an empty leaf node with capacity leafCap.
func newLeafNode(pageID uint32, dims, leafCap int) *Node {
	return &Node{PageID: pageID, Kind: nodeKindLeaf, Capacity: leafCap, dims: dims}
}

// newDirNode creates an empty directory node with capacity dirCap.
func newDirNode(pageID uint32, dims, dirCap int) *Node {
	return &Node{PageID: pageID, Kind: nodeKindDirectory, Capacity: dirCap, dims: dims}
}

// NumEntries returns the node's current fill.
func (n *Node) NumEntries() int {
	if n.Kind == nodeKindLeaf {
		return len(n.Leaves)
	}
	return len(n.Dirs)
}

// IsLeaf reports whether this is a leaf node.
func (n *Node) IsLeaf() bool { return n.Kind == nodeKindLeaf }

// IsSuper reports whether this is a supernode.
func (n *Node) IsSuper() bool { return n.Kind == nodeKindSuper }

// AddLeafEntry appends a leaf entry. Caller is responsible for checking
// capacity (overflow is detected by the insertion driver, not refused
// here, since a node transiently exceeds capacity during overflow
// treatment before it is split or grown).
func (n *Node) AddLeafEntry(e LeafEntry) {
	n.Leaves = append(n.Leaves, e)
}

// AddDirEntry appends a directory entry.
func (n *Node) AddDirEntry(e DirEntry) {
	n.Dirs = append(n.Dirs, e)
}

// MBR computes the union of the node's entries' MBRs. Computed on
// demand rather than cached, so it can never go stale.
func (n *Node) MBR() MBR {
	if n.Kind == nodeKindLeaf {
		mbrs := make([]MBR, len(n.Leaves))
		for i, e := range n.Leaves {
			mbrs[i] = e.mbr()
		}
		return unionAll(mbrs)
	}
	mbrs := make([]MBR, len(n.Dirs))
	for i, e := range n.Dirs {
		mbrs[i] = e.MBR
	}
	return unionAll(mbrs)
}

// TotalPoints sums NumPoints across directory entries; used by DATA
// overlap scoring one level above a directory node.
func (n *Node) TotalPoints() uint64 {
	var total uint64
	for _, e := range n.Dirs {
		total += e.NumPoints
	}
	return total
}

// growSuper increments the supernode's capacity by dirCap and returns
// the new capacity. Converts a regular directory node into a supernode
// on first call.
func (n *Node) growSuper(dirCap int) int {
	n.Kind = nodeKindSuper
	n.Capacity += dirCap
	return n.Capacity
}

// shrinkSuper decrements capacity by `by` (defaulting to dirCap when 0)
// and reclassifies the node as a regular directory node once capacity
// recedes to exactly dirCap.
func (n *Node) shrinkSuper(by, dirCap int) int {
	if by <= 0 {
		by = dirCap
	}
	n.Capacity -= by
	if n.Capacity == dirCap {
		n.Kind = nodeKindDirectory
	}
	return n.Capacity
}

// cloneNode performs a deep copy of a node and all its entries.
func cloneNode(n *Node) *Node {
	c := &Node{PageID: n.PageID, Kind: n.Kind, Capacity: n.Capacity, dims: n.dims}
	for _, e := range n.Leaves {
		c.Leaves = append(c.Leaves, cloneLeafEntry(e))
	}
	for _, e := range n.Dirs {
		c.Dirs = append(c.Dirs, cloneDirEntry(e))
	}
	return c
}

// --- serialization ---

// leafEntrySize is the encoded size of one leaf entry: an 8-byte point
// id followed by dims float64 coordinates.
func leafEntrySize(dims int) int { return 8 + 8*dims }

// dirEntrySize is the encoded size of one directory entry: child page
// id, lo/hi vectors, the split-history bitset, and the leaf-count used
// by DATA overlap.
func dirEntrySize(dims int) int { return 4 + 16*dims + (dims+7)/8 + 8 }

// serializedSize returns the number of bytes serialize will produce for
// this node's current contents (prelude plus entries).
func (n *Node) serializedSize() int {
	if n.Kind == nodeKindLeaf {
		return preludeSize + len(n.Leaves)*leafEntrySize(n.dims)
	}
	return preludeSize + len(n.Dirs)*dirEntrySize(n.dims)
}

// serialize writes the node's prelude followed by its entries into buf,
// which must be at least n.serializedSize() bytes. Supernode on-disk
// size is ceil(capacity/dir_cap)*page_size (the caller is responsible
// for sizing and zero-padding that budget; serialize only writes the
// logical content).
func (n *Node) serialize(buf []byte) error {
	if len(buf) < n.serializedSize() {
		return WrapErrorf(ErrCapacityExceeded, nil, "buffer of %d bytes too small for node of %d bytes", len(buf), n.serializedSize())
	}

	p := &nodePrelude{}
	p.PageID = n.PageID
	if n.Kind == nodeKindLeaf {
		p.IsLeaf = 1
	} else {
		p.IsLeaf = 0
	}
	if n.Kind == nodeKindSuper {
		p.IsSuper = 1
	} else {
		p.IsSuper = 0
	}
	p.NumEntries = uint32(n.NumEntries())
	p.Capacity = uint32(n.Capacity)
	binary.LittleEndian.PutUint32(buf[0:], p.PageID)
	buf[4], buf[5] = p.IsLeaf, p.IsSuper
	binary.LittleEndian.PutUint32(buf[6:], p.NumEntries)
	binary.LittleEndian.PutUint32(buf[10:], p.Capacity)

	off := preludeSize
	if n.Kind == nodeKindLeaf {
		sz := leafEntrySize(n.dims)
		for _, e := range n.Leaves {
			binary.LittleEndian.PutUint64(buf[off:], e.PointID)
			off += 8
			for _, c := range e.Coords {
				binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(c))
				off += 8
			}
			_ = sz
		}
		return nil
	}

	hbytes := (n.dims + 7) / 8
	for _, e := range n.Dirs {
		binary.LittleEndian.PutUint32(buf[off:], e.ChildPageID)
		off += 4
		for _, c := range e.MBR.Lo {
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(c))
			off += 8
		}
		for _, c := range e.MBR.Hi {
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(c))
			off += 8
		}
		copy(buf[off:off+hbytes], e.History.encode())
		off += hbytes
		binary.LittleEndian.PutUint64(buf[off:], e.NumPoints)
		off += 8
	}
	return nil
}

// deserializeNode reads a node back from the bytes produced by
// serialize. dims must match the tree's configured dimensionality.
func deserializeNode(data []byte, dims int) (*Node, error) {
	p := readPrelude(data)
	if p == nil {
		return nil, WrapErrorf(ErrCorruptFile, nil, "short node buffer (%d bytes)", len(data))
	}
	n := &Node{PageID: p.PageID, Capacity: int(p.Capacity), dims: dims}
	switch {
	case p.IsSuper == 1:
		n.Kind = nodeKindSuper
	case p.IsLeaf == 1:
		n.Kind = nodeKindLeaf
	default:
		n.Kind = nodeKindDirectory
	}

	off := preludeSize
	count := int(p.NumEntries)
	if n.Kind == nodeKindLeaf {
		sz := leafEntrySize(dims)
		if len(data) < off+count*sz {
			return nil, WrapErrorf(ErrCorruptFile, nil, "truncated leaf node %d", p.PageID)
		}
		n.Leaves = make([]LeafEntry, count)
		for i := 0; i < count; i++ {
			id := binary.LittleEndian.Uint64(data[off:])
			off += 8
			coords := make([]float64, dims)
			for j := 0; j < dims; j++ {
				coords[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
				off += 8
			}
			n.Leaves[i] = LeafEntry{PointID: id, Coords: coords}
		}
		return n, nil
	}

	hbytes := (dims + 7) / 8
	sz := dirEntrySize(dims)
	if len(data) < off+count*sz {
		return nil, WrapErrorf(ErrCorruptFile, nil, "truncated directory node %d", p.PageID)
	}
	n.Dirs = make([]DirEntry, count)
	for i := 0; i < count; i++ {
		childID := binary.LittleEndian.Uint32(data[off:])
		off += 4
		lo := make([]float64, dims)
		for j := 0; j < dims; j++ {
			lo[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
			off += 8
		}
		hi := make([]float64, dims)
		for j := 0; j < dims; j++ {
			hi[j] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
			off += 8
		}
		hist := decodeSplitHistory(data[off:off+hbytes], dims)
		off += hbytes
		numPoints := binary.LittleEndian.Uint64(data[off:])
		off += 8
		n.Dirs[i] = DirEntry{ChildPageID: childID, MBR: MBR{Lo: lo, Hi: hi}, History: hist, NumPoints: numPoints}
	}
	return n, nil
}
