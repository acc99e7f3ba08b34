package xtree

import (
	"math"
	"testing"
)

func TestVolumeAndUnion(t *testing.T) {
	a := MBR{Lo: []float64{0, 0}, Hi: []float64{2, 3}}
	vol, err := volume(a)
	if err != nil {
		t.Fatalf("volume: %v", err)
	}
	if vol != 6 {
		t.Errorf("volume = %v, want 6", vol)
	}

	b := MBR{Lo: []float64{1, 1}, Hi: []float64{4, 4}}
	u := union(a, b)
	want := MBR{Lo: []float64{0, 0}, Hi: []float64{4, 4}}
	if !equalsMBR(u, want) {
		t.Errorf("union = %+v, want %+v", u, want)
	}
}

func TestIntersectionVolumeDisjoint(t *testing.T) {
	a := MBR{Lo: []float64{0, 0}, Hi: []float64{1, 1}}
	b := MBR{Lo: []float64{5, 5}, Hi: []float64{6, 6}}
	if v := intersectionVolume(a, b); v != 0 {
		t.Errorf("intersectionVolume = %v, want 0", v)
	}
}

func TestContainsAndIntersects(t *testing.T) {
	outer := MBR{Lo: []float64{0, 0}, Hi: []float64{10, 10}}
	inner := MBR{Lo: []float64{1, 1}, Hi: []float64{2, 2}}
	if !contains(outer, inner) {
		t.Error("expected outer to contain inner")
	}
	disjoint := MBR{Lo: []float64{20, 20}, Hi: []float64{21, 21}}
	if contains(outer, disjoint) {
		t.Error("did not expect outer to contain disjoint")
	}
	if !intersects(outer, inner) {
		t.Error("expected outer and inner to intersect")
	}
	if intersects(outer, disjoint) {
		t.Error("did not expect outer and disjoint to intersect")
	}
}

func TestCheckFiniteRejectsNaNAndInf(t *testing.T) {
	if err := checkFinite(math.NaN()); err == nil {
		t.Error("expected error for NaN")
	}
	if err := checkFinite(math.Inf(1)); err == nil {
		t.Error("expected error for +Inf")
	}
	if err := checkFinite(1.5); err != nil {
		t.Errorf("unexpected error for finite value: %v", err)
	}
}

func TestPerimeterAndCenter(t *testing.T) {
	m := MBR{Lo: []float64{0, 0}, Hi: []float64{2, 4}}
	if p := perimeter(m); p != 12 {
		t.Errorf("perimeter = %v, want 12", p)
	}
	c := center(m)
	if c[0] != 1 || c[1] != 2 {
		t.Errorf("center = %v, want [1 2]", c)
	}
}
