package xtree

import (
	"sort"
)

// supernodeBlockSize returns the fixed on-disk footprint of a supernode
// with the given capacity: ceil(capacity/dir_cap) page_size-sized pages.
func supernodeBlockSize(capacity, dirCap, pageSize int) int64 {
	pages := (capacity + dirCap - 1) / dirCap
	return int64(pages) * int64(pageSize)
}

// Commit flushes the header and every in-memory supernode to the
// backing file. Regular pages are already durable — pageStore.write
// issues a WriteAt per page — so commit's only remaining job is the
// supernode trailer and the header fields that summarize it.
func (t *Tree) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ps.commit()
}

func (ps *pageStore) commit() error {
	var pageIDs []uint32
	ps.supers.forEach(func(n *Node) { pageIDs = append(pageIDs, n.PageID) })
	sort.Slice(pageIDs, func(i, j int) bool { return pageIDs[i] < pageIDs[j] })

	offset := int64(ps.nextPageID) * int64(ps.hdr.PageSize)
	trailerStart := ps.pagesRegionStart() + offset

	cur := trailerStart
	for _, id := range pageIDs {
		n, ok := ps.supers.get(id)
		if !ok {
			continue
		}
		blockLen := supernodeBlockSize(n.Capacity, ps.cap.dirCap, int(ps.hdr.PageSize))
		if int64(n.serializedSize()) > blockLen {
			return WrapErrorf(ErrCapacityExceeded, nil, "supernode %d serialized size %d exceeds its %d-byte budget", n.PageID, n.serializedSize(), blockLen)
		}

		buf := make([]byte, blockLen)
		if err := n.serialize(buf); err != nil {
			return err
		}
		written, err := ps.file.WriteAt(buf, cur)
		if err != nil {
			return WrapErrorf(ErrIoError, err, "writing supernode %d trailer", n.PageID)
		}
		if written != len(buf) {
			return WrapErrorf(ErrIoError, nil, "short write for supernode %d trailer", n.PageID)
		}
		cur += blockLen
	}

	if err := ps.file.Truncate(cur); err != nil {
		return WrapError(ErrIoError, err)
	}
	if ps.mm != nil && cur > 0 && cur != ps.mm.Size() {
		if err := ps.mm.Remap(cur); err != nil {
			return WrapErrorf(ErrIoError, err, "remapping after truncating to %d bytes", cur)
		}
	}

	ps.hdr.NextPageID = ps.nextPageID
	ps.hdr.SupernodeOffset = uint64(offset)
	if err := ps.writeHeaderToFile(); err != nil {
		return err
	}
	if err := ps.file.Sync(); err != nil {
		return WrapError(ErrIoError, err)
	}
	return nil
}

// loadSupernodes re-reads the supernode trailer written by commit,
// walking it sequentially: each block's own prelude records its page id
// and capacity, so the block length (and the offset of the next block)
// is self-describing.
func (ps *pageStore) loadSupernodes() error {
	off := ps.pagesRegionStart() + int64(ps.hdr.SupernodeOffset)
	fi, err := ps.file.Stat()
	if err != nil {
		return WrapError(ErrIoError, err)
	}
	end := fi.Size()

	for off < end {
		head := make([]byte, preludeSize)
		if _, err := ps.file.ReadAt(head, off); err != nil {
			return WrapErrorf(ErrIoError, err, "reading supernode prelude at offset %d", off)
		}
		p := readPrelude(head)
		if p == nil || p.IsSuper != 1 {
			return WrapErrorf(ErrCorruptFile, nil, "expected supernode prelude at offset %d", off)
		}

		blockLen := supernodeBlockSize(int(p.Capacity), ps.cap.dirCap, int(ps.hdr.PageSize))
		if off+blockLen > end {
			return WrapErrorf(ErrCorruptFile, nil, "supernode %d trailer block truncated", p.PageID)
		}

		buf := make([]byte, blockLen)
		if _, err := ps.file.ReadAt(buf, off); err != nil {
			return WrapErrorf(ErrIoError, err, "reading supernode %d trailer", p.PageID)
		}
		n, err := deserializeNode(buf, ps.dims)
		if err != nil {
			return err
		}
		if n.PageID != p.PageID || n.Kind != nodeKindSuper {
			return WrapErrorf(ErrCorruptFile, nil, "supernode trailer mismatch at offset %d", off)
		}
		ps.supers.set(n)

		off += blockLen
	}
	return nil
}
