package model

import "testing"

func TestVec3fBlockFloorsNegatives(t *testing.T) {
	got := Vec3f{X: -0.5, Y: 2.99, Z: 3}.Block()
	if got != (Vec3i{X: -1, Y: 2, Z: 3}) {
		t.Fatalf("unexpected block: %+v", got)
	}
}

func TestDistSqAndManhattan(t *testing.T) {
	a := Vec3i{X: 1, Y: 2, Z: 3}
	b := Vec3i{X: -1, Y: 2, Z: 6}
	if got := DistSq(a, b); got != 13 {
		t.Fatalf("DistSq=%d want 13", got)
	}
	if got := Manhattan(a, b); got != 5 {
		t.Fatalf("Manhattan=%d want 5", got)
	}
}

func TestFacesAreUnitOffsets(t *testing.T) {
	c := Vec3i{X: 4, Y: 5, Z: 6}
	for _, f := range c.Faces() {
		if Manhattan(c, f) != 1 {
			t.Fatalf("face %+v is not adjacent to %+v", f, c)
		}
	}
}
