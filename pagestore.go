package xtree

import (
	"os"

	mmappkg "github.com/xtreedb/xtree/mmap"
	"github.com/xtreedb/xtree/spill"
)

// reservedPagesCount is the number of page_size-sized pages reserved
// between the header and the pages region, matching the single
// boot/reserved page convention the teacher's own meta page layout uses
// ahead of its rotating meta pages.
//
// The header is written at a fixed, page_size-independent offset of 0
// (rather than after the reserved region) so that Open can decode
// page_size, dimensionality, and capacities directly from byte 0
// without first knowing the page size the file was created with. The
// reserved region follows the header; the pages region follows the
// reserved region.
const reservedPagesCount = 1

// pageStore exposes the get/write/allocate interface: alloc() ->
// page_id, read(page_id) -> node, write(node), and header get/set. It
// owns the backing file, an mmap of the committed page region for fast
// reads, the in-memory supernode map, and a spill-buffer staging area
// used while supernodes are growing.
type pageStore struct {
	path string
	file *os.File
	mm   *mmappkg.Map

	hdr  header
	dims int
	cap  capacities

	nextPageID uint32
	supers     *supernodeMap

	// every regular page written through this pageStore, keyed by page
	// id; entries are never evicted, so read() serves these nodes
	// before consulting the mmap or the file.
	dirtyPages map[uint32]*Node

	// spillBuf stages supernode growth off the Go heap (adapted from
	// gdbx's spill.Buffer, originally used to keep MDBX's dirty page
	// list off-heap). Each dir_cap-sized growth step claims one slot.
	spillBuf    *spill.Buffer
	superSlots  map[uint32][]*spill.Slot // pageID -> slots claimed so far
}

func (ps *pageStore) pagesRegionStart() int64 {
	return int64(headerSize) + int64(reservedPagesCount)*int64(ps.hdr.PageSize)
}

func (ps *pageStore) pageOffset(id uint32) int64 {
	return ps.pagesRegionStart() + int64(id)*int64(ps.hdr.PageSize)
}

// createPageStore initializes a brand new file with an empty root leaf
// node at rootPageID.
func createPageStore(path string, cfg Config) (*pageStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	capv, err := cfg.deriveCapacities()
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, WrapError(ErrIoError, err)
	}

	hdr := buildHeader(cfg, capv)
	ps := &pageStore{
		path:       path,
		file:       f,
		hdr:        hdr,
		dims:       cfg.Dimensions,
		cap:        capv,
		nextPageID: 1,
		supers:     newSupernodeMap(),
		dirtyPages: make(map[uint32]*Node),
		superSlots: make(map[uint32][]*spill.Slot),
	}

	if err := ps.writeHeaderToFile(); err != nil {
		f.Close()
		return nil, err
	}
	reserved := make([]byte, reservedPagesCount*int(cfg.PageSize))
	if _, err := f.WriteAt(reserved, int64(headerSize)); err != nil {
		f.Close()
		return nil, WrapError(ErrIoError, err)
	}

	root := newLeafNode(rootPageID, cfg.Dimensions, capv.leafCap)
	if err := ps.write(root); err != nil {
		f.Close()
		return nil, err
	}

	mm, err := mmappkg.MapFile(path, true)
	if err != nil {
		f.Close()
		return nil, WrapError(ErrIoError, err)
	}
	ps.mm = mm

	sb, err := spill.New(path+".spill", cfg.PageSize, spill.DefaultInitialCap)
	if err != nil {
		mm.Close()
		f.Close()
		return nil, WrapError(ErrIoError, err)
	}
	ps.spillBuf = sb

	return ps, nil
}

// writeHeaderToFile persists the in-memory header to its fixed offset.
func (ps *pageStore) writeHeaderToFile() error {
	buf := encodeHeader(ps.hdr)
	if _, err := ps.file.WriteAt(buf, 0); err != nil {
		return WrapError(ErrIoError, err)
	}
	return nil
}

// loadPageStore reopens an existing page file, decoding the header from
// its fixed offset and reconstructing the in-memory pageStore needed to
// resume reads and inserts.
func loadPageStore(path string) (*pageStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, WrapError(ErrIoError, err)
	}

	hbuf := make([]byte, headerSize)
	if _, err := f.ReadAt(hbuf, 0); err != nil {
		f.Close()
		return nil, WrapErrorf(ErrIoError, err, "reading header")
	}
	hdr, err := decodeHeader(hbuf)
	if err != nil {
		f.Close()
		return nil, err
	}

	ps := &pageStore{
		path:       path,
		file:       f,
		hdr:        *hdr,
		dims:       int(hdr.Dimensionality),
		cap:        hdr.toCapacities(),
		nextPageID: hdr.NextPageID,
		supers:     newSupernodeMap(),
		dirtyPages: make(map[uint32]*Node),
		superSlots: make(map[uint32][]*spill.Slot),
	}

	if hdr.SupernodeOffset > 0 {
		if err := ps.loadSupernodes(); err != nil {
			f.Close()
			return nil, err
		}
	}

	mm, err := mmappkg.MapFile(path, true)
	if err != nil {
		f.Close()
		return nil, WrapError(ErrIoError, err)
	}
	ps.mm = mm

	sb, err := spill.New(path+".spill", hdr.PageSize, spill.DefaultInitialCap)
	if err != nil {
		mm.Close()
		f.Close()
		return nil, WrapError(ErrIoError, err)
	}
	ps.spillBuf = sb

	return ps, nil
}

// alloc returns a fresh, monotonically increasing page id.
func (ps *pageStore) alloc() uint32 {
	id := ps.nextPageID
	ps.nextPageID++
	return id
}

// read returns the node stored at pageID, consulting the in-memory
// supernode map first, then the dirty-page cache of every page written
// since the store was opened, then the mmap itself, and finally
// falling back to a direct ReadAt for any page beyond the mapped range
// (e.g. immediately after a commit's Truncate, before the next write
// triggers a Remap).
func (ps *pageStore) read(pageID uint32) (*Node, error) {
	if n, ok := ps.supers.get(pageID); ok {
		return n, nil
	}
	if n, ok := ps.dirtyPages[pageID]; ok {
		return n, nil
	}

	off := ps.pageOffset(pageID)
	var buf []byte
	if ps.mm != nil && off >= 0 && off+int64(ps.hdr.PageSize) <= ps.mm.Size() {
		buf = ps.mm.Data()[off : off+int64(ps.hdr.PageSize)]
	} else {
		buf = make([]byte, ps.hdr.PageSize)
		if _, err := ps.file.ReadAt(buf, off); err != nil {
			return nil, WrapErrorf(ErrIoError, err, "reading page %d", pageID)
		}
	}
	n, err := deserializeNode(buf, ps.dims)
	if err != nil {
		return nil, err
	}
	if n.Kind == nodeKindSuper {
		return nil, WrapErrorf(ErrCorruptFile, nil, "page %d marked super outside supernode map", pageID)
	}
	return n, nil
}

// write persists a node. For supernodes, only the in-memory map is
// updated until commit. Regular pages are written through to the file
// and, if the write extends the file past the current mapping, the
// mmap is grown to cover the new page so subsequent reads can be
// served from it.
func (ps *pageStore) write(n *Node) error {
	if n.Kind == nodeKindSuper {
		ps.supers.set(n)
		return nil
	}

	buf := make([]byte, ps.hdr.PageSize)
	if err := n.serialize(buf); err != nil {
		return err
	}
	off := ps.pageOffset(n.PageID)
	if _, err := ps.file.WriteAt(buf, off); err != nil {
		return WrapErrorf(ErrIoError, err, "writing page %d", n.PageID)
	}
	if ps.mm != nil {
		need := off + int64(len(buf))
		if need > ps.mm.Size() {
			if err := ps.mm.Remap(need); err != nil {
				return WrapErrorf(ErrIoError, err, "remapping after writing page %d", n.PageID)
			}
		}
	}
	ps.dirtyPages[n.PageID] = n
	return nil
}

// registerSuper marks a node as a supernode for the first time,
// claiming its first growth-step slot from the spill buffer.
func (ps *pageStore) registerSuper(n *Node) error {
	if err := ps.claimGrowthSlot(n.PageID); err != nil {
		return err
	}
	ps.supers.set(n)
	return nil
}

// claimGrowthSlot stages one more dir_cap-sized growth step for the
// given supernode in the off-heap spill buffer. The claimed
// bytes are never read back from directly — they exist so supernode
// growth does not grow the Go heap — actual content lives in the
// in-memory Node, and commit() serializes that Node directly into the
// file's supernode trailer without touching the slots.
func (ps *pageStore) claimGrowthSlot(pageID uint32) error {
	_, slot, err := ps.spillBuf.Allocate()
	if err != nil {
		return WrapError(ErrIoError, err)
	}
	ps.superSlots[pageID] = append(ps.superSlots[pageID], slot)
	return nil
}

// releaseGrowthSlots returns a supernode's staged slots to the spill
// buffer once it shrinks back to a regular directory node.
func (ps *pageStore) releaseGrowthSlots(pageID uint32) {
	slots := ps.superSlots[pageID]
	if len(slots) == 0 {
		return
	}
	ps.spillBuf.ReleaseBulk(slots)
	delete(ps.superSlots, pageID)
}

func (ps *pageStore) close() error {
	var firstErr error
	if ps.mm != nil {
		if err := ps.mm.Close(); err != nil {
			firstErr = err
		}
	}
	if ps.spillBuf != nil {
		if err := ps.spillBuf.Close(true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if ps.file != nil {
		if err := ps.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return WrapError(ErrIoError, firstErr)
	}
	return nil
}
