package xtree

import (
	"unsafe"

	"github.com/xtreedb/xtree/internal/fastmap"
)

// supernodeMap is the process-local, page-id-keyed table of supernodes
// retained entirely in memory at runtime. It is a typed wrapper over
// the teacher's fibonacci-hashed Uint32Map, which was originally used
// by gdbx for a different integer-keyed table; here it holds the
// variable-size supernodes that don't fit the fixed page grid.
type supernodeMap struct {
	m fastmap.Uint32Map
}

func newSupernodeMap() *supernodeMap {
	return &supernodeMap{}
}

func (s *supernodeMap) get(pageID uint32) (*Node, bool) {
	ptr := s.m.Get(pageID)
	if ptr == nil {
		return nil, false
	}
	return (*Node)(ptr), true
}

func (s *supernodeMap) set(n *Node) {
	s.m.Set(n.PageID, unsafe.Pointer(n))
}

func (s *supernodeMap) delete(pageID uint32) {
	// fastmap.Uint32Map has no tombstone delete; since supernode ids are
	// stable for the process lifetime once allocated and shrinking back
	// to a regular directory node is rare, we overwrite with a nil
	// sentinel value recognized by get as "absent".
	s.m.Set(pageID, nil)
}

func (s *supernodeMap) forEach(fn func(*Node)) {
	s.m.ForEach(func(_ uint32, ptr unsafe.Pointer) {
		if ptr == nil {
			return
		}
		fn((*Node)(ptr))
	})
}

func (s *supernodeMap) len() int {
	var n int
	s.forEach(func(*Node) { n++ })
	return n
}
