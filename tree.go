package xtree

import "sync"

// Tree is the top-level handle: a single-writer, paged, disk-resident
// X-tree index over fixed-dimensionality points. All mutation runs
// under mu, so concurrent callers are simply serialized rather than
// racing, the same posture the teacher's own env-level lock takes
// around its write transactions.
type Tree struct {
	mu sync.Mutex

	ps     *pageStore
	cfg    Config
	cap    capacities
	height int // height of the root; a lone leaf root has height 1
}

// Create initializes a brand new, empty tree at path.
func Create(path string, cfg Config) (*Tree, error) {
	ps, err := createPageStore(path, cfg)
	if err != nil {
		return nil, err
	}
	return &Tree{ps: ps, cfg: cfg, cap: ps.cap, height: 1}, nil
}

// Open reopens an existing tree file, restoring its configuration from
// the on-disk header and recomputing the current height by walking
// leftmost children from the root.
func Open(path string) (*Tree, error) {
	ps, err := loadPageStore(path)
	if err != nil {
		return nil, err
	}
	t := &Tree{ps: ps, cfg: ps.hdr.toConfig(), cap: ps.cap}
	height, err := t.computeHeight()
	if err != nil {
		ps.close()
		return nil, err
	}
	t.height = height
	return t, nil
}

// computeHeight walks leftmost children from the root until a leaf is
// reached, counting levels (leaf = 1).
func (t *Tree) computeHeight() (int, error) {
	height := 1
	pageID := uint32(rootPageID)
	for {
		n, err := t.ps.read(pageID)
		if err != nil {
			return 0, err
		}
		if n.IsLeaf() {
			return height, nil
		}
		if n.NumEntries() == 0 {
			return height, WrapErrorf(ErrInvariantViolation, nil, "empty directory node %d", pageID)
		}
		pageID = n.Dirs[0].ChildPageID
		height++
	}
}

// Close commits any pending supernode trailer and releases the backing
// file and mmap.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ps.commit(); err != nil {
		return err
	}
	return t.ps.close()
}

// Config returns the tree's effective configuration.
func (t *Tree) Config() Config { return t.cfg }

// Height returns the current height of the root (1 for a lone leaf).
func (t *Tree) Height() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.height
}

// NumElements returns the number of points currently indexed.
func (t *Tree) NumElements() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ps.hdr.NumElements
}
