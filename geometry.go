package xtree

import "math"

// Point is an immutable d-dimensional vector of finite floating-point
// values plus an external identifier.
type Point struct {
	Coords []float64
	ID     uint64
}

// MBR is a minimum bounding rectangle: a pair of d-length vectors Lo, Hi
// with Lo[i] <= Hi[i]. A point is an MBR with Lo == Hi.
type MBR struct {
	Lo []float64
	Hi []float64
}

// pointMBR builds the degenerate MBR (Lo == Hi) for a point.
func pointMBR(p Point) MBR {
	lo := make([]float64, len(p.Coords))
	hi := make([]float64, len(p.Coords))
	copy(lo, p.Coords)
	copy(hi, p.Coords)
	return MBR{Lo: lo, Hi: hi}
}

// cloneMBR returns a deep copy of m.
func cloneMBR(m MBR) MBR {
	lo := make([]float64, len(m.Lo))
	hi := make([]float64, len(m.Hi))
	copy(lo, m.Lo)
	copy(hi, m.Hi)
	return MBR{Lo: lo, Hi: hi}
}

// checkFinite returns ErrNumericOverflow if v is not finite.
func checkFinite(v float64) error {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return WrapErrorf(ErrNumericOverflow, nil, "non-finite value %v", v)
	}
	return nil
}

// volume computes the product of side lengths. Fails with
// ErrNumericOverflow if any intermediate or final value is not finite.
func volume(m MBR) (float64, error) {
	vol := 1.0
	for i := range m.Lo {
		side := m.Hi[i] - m.Lo[i]
		if err := checkFinite(side); err != nil {
			return 0, err
		}
		vol *= side
		if err := checkFinite(vol); err != nil {
			return 0, err
		}
	}
	return vol, nil
}

// mustVolume is volume without the error return, for call sites that
// have already validated the MBR (e.g. inside a hot comparison loop
// after the initial finiteness check at insertion time).
func mustVolume(m MBR) float64 {
	v, err := volume(m)
	if err != nil {
		return math.Inf(1)
	}
	return v
}

// union returns the componentwise min/max of a and b.
func union(a, b MBR) MBR {
	lo := make([]float64, len(a.Lo))
	hi := make([]float64, len(a.Hi))
	for i := range a.Lo {
		lo[i] = math.Min(a.Lo[i], b.Lo[i])
		hi[i] = math.Max(a.Hi[i], b.Hi[i])
	}
	return MBR{Lo: lo, Hi: hi}
}

// unionAll folds union over a non-empty slice of MBRs.
func unionAll(mbrs []MBR) MBR {
	result := cloneMBR(mbrs[0])
	for _, m := range mbrs[1:] {
		result = union(result, m)
	}
	return result
}

// intersectionVolume computes the volume of the overlap between a and b,
// per-dimension, short-circuiting to zero on the first non-overlapping
// axis (also avoids needless float multiplication once the product is
// already zero).
func intersectionVolume(a, b MBR) float64 {
	vol := 1.0
	for i := range a.Lo {
		lo := math.Max(a.Lo[i], b.Lo[i])
		hi := math.Min(a.Hi[i], b.Hi[i])
		side := math.Max(0, hi-lo)
		if side == 0 {
			return 0
		}
		vol *= side
	}
	return vol
}

// contains reports whether every dimension of inner lies within outer.
func contains(outer, inner MBR) bool {
	for i := range outer.Lo {
		if outer.Lo[i] > inner.Lo[i] || inner.Hi[i] > outer.Hi[i] {
			return false
		}
	}
	return true
}

// intersects reports whether a and b overlap on every dimension
// (non-empty intersection, including touching boundaries).
func intersects(a, b MBR) bool {
	for i := range a.Lo {
		if a.Lo[i] > b.Hi[i] || b.Lo[i] > a.Hi[i] {
			return false
		}
	}
	return true
}

// equalsMBR reports componentwise floating point equality (no tolerance).
func equalsMBR(a, b MBR) bool {
	for i := range a.Lo {
		if a.Lo[i] != b.Lo[i] || a.Hi[i] != b.Hi[i] {
			return false
		}
	}
	return true
}

// perimeter is the sum of the 2*d edge lengths, used as the topological
// split goodness measure.
func perimeter(m MBR) float64 {
	var p float64
	for i := range m.Lo {
		p += 2 * (m.Hi[i] - m.Lo[i])
	}
	return p
}

// center returns the midpoint of m along every axis.
func center(m MBR) []float64 {
	c := make([]float64, len(m.Lo))
	for i := range m.Lo {
		c[i] = (m.Lo[i] + m.Hi[i]) / 2
	}
	return c
}

// centerDistance2 is the squared L2 distance between the centers of a
// and b; used by forced reinsertion to rank entries by how far their
// center is from the node's MBR center.
func centerDistance2(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
