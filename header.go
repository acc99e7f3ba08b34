package xtree

import (
	"unsafe"
)

// headerMagic identifies a valid xtree page file, in the same spirit as
// gdbx's meta.go magic/version check.
const headerMagic uint64 = 0x58545245450A11

// rootPageID is the fixed, well-known page id of the root. Root splits
// move the physical root content to a new page id and swap ids so the
// root id itself never changes.
const rootPageID uint32 = 0

// headerSize is the encoded size of the on-disk header below: the size
// of the header struct including Go's alignment padding (104 bytes).
const headerSize = int(unsafe.Sizeof(header{}))

// header holds the page file's persistent fields, extended with the
// bookkeeping this implementation needs to fully reconstruct a Config
// across a load() (page_size, overlap_type, reinsert_fraction,
// omit_overlap_for_supernodes) so a reloaded tree resumes inserting
// with the same behavior it was built with.
//
// Memory layout (little-endian), matching the unsafe-pointer-overlay
// style used throughout the teacher's meta.go/page.go:
//
//	Offset  Size  Field
//	0       8     magic
//	8       4     page_size
//	12      4     dimensionality
//	16      4     dir_capacity
//	20      4     leaf_capacity
//	24      4     dir_minimum
//	28      4     leaf_minimum
//	32      4     min_fanout
//	36      4     (alignment padding)
//	40      8     num_elements
//	48      4     max_overlap (f32)
//	52      1     overlap_type
//	53      1     omit_overlap_for_supernodes
//	54      6     reserved/padding
//	60      4     reinsert_fraction (f32)
//	64      4     rel_min_entries (f32)
//	68      4     rel_min_fanout (f32)
//	72      4     next_page_id
//	76      4     (alignment padding)
//	80      8     supernode_offset
//	88      16    reserved
type header struct {
	Magic                    uint64
	PageSize                 uint32
	Dimensionality           uint32
	DirCapacity              uint32
	LeafCapacity             uint32
	DirMinimum               uint32
	LeafMinimum              uint32
	MinFanout                uint32
	NumElements              uint64
	MaxOverlap               float32
	OverlapTypeByte          uint8
	OmitOverlapForSupernodes uint8
	_                        [6]byte
	ReinsertFraction         float32
	RelMinEntries            float32
	RelMinFanout             float32
	NextPageID               uint32
	SupernodeOffset          uint64
	_                        [16]byte
}

func (h *header) valid() bool {
	return h.Magic == headerMagic
}

// buildHeader assembles a header from a validated Config and its
// derived capacities.
func buildHeader(cfg Config, cap capacities) header {
	ot := uint8(0)
	if cfg.OverlapType == OverlapData {
		ot = 1
	}
	omit := uint8(0)
	if cfg.OmitOverlapForSupernodes {
		omit = 1
	}
	return header{
		Magic:                    headerMagic,
		PageSize:                 cfg.PageSize,
		Dimensionality:           uint32(cfg.Dimensions),
		DirCapacity:              uint32(cap.dirCap),
		LeafCapacity:             uint32(cap.leafCap),
		DirMinimum:               uint32(cap.dirMin),
		LeafMinimum:              uint32(cap.leafMin),
		MinFanout:                uint32(cap.minFanout),
		MaxOverlap:               float32(cfg.MaxOverlap),
		OverlapTypeByte:          ot,
		OmitOverlapForSupernodes: omit,
		ReinsertFraction:         float32(cfg.ReinsertFraction),
		RelMinEntries:            float32(cfg.RelMinEntries),
		RelMinFanout:             float32(cfg.RelMinFanout),
		NextPageID:               1, // page 0 is the root
	}
}

func (h *header) toConfig() Config {
	ot := OverlapVolume
	if h.OverlapTypeByte == 1 {
		ot = OverlapData
	}
	return Config{
		Dimensions:               int(h.Dimensionality),
		PageSize:                 h.PageSize,
		OverlapType:              ot,
		MaxOverlap:               float64(h.MaxOverlap),
		RelMinEntries:            float64(h.RelMinEntries),
		RelMinFanout:             float64(h.RelMinFanout),
		ReinsertFraction:         float64(h.ReinsertFraction),
		OmitOverlapForSupernodes: h.OmitOverlapForSupernodes == 1,
	}
}

func (h *header) toCapacities() capacities {
	return capacities{
		leafCap:   int(h.LeafCapacity),
		dirCap:    int(h.DirCapacity),
		leafMin:   int(h.LeafMinimum),
		dirMin:    int(h.DirMinimum),
		minFanout: int(h.MinFanout),
	}
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize)
	*(*header)(unsafe.Pointer(&buf[0])) = h
	return buf
}

func decodeHeader(data []byte) (*header, error) {
	if len(data) < headerSize {
		return nil, WrapErrorf(ErrCorruptFile, nil, "header truncated (%d bytes)", len(data))
	}
	h := (*header)(unsafe.Pointer(&data[0]))
	if !h.valid() {
		return nil, WrapErrorf(ErrCorruptFile, nil, "bad header magic 0x%x", h.Magic)
	}
	return h, nil
}
