package model

import "math"

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(dx, dy, dz int) Vec3i { return Vec3i{X: v.X + dx, Y: v.Y + dy, Z: v.Z + dz} }

func (v Vec3i) Up() Vec3i   { return v.Add(0, 1, 0) }
func (v Vec3i) Down() Vec3i { return v.Add(0, -1, 0) }

// Faces returns the six face-adjacent neighbors (up, down, north, south, east, west).
func (v Vec3i) Faces() [6]Vec3i {
	return [6]Vec3i{
		v.Add(0, 1, 0),
		v.Add(0, -1, 0),
		v.Add(0, 0, -1),
		v.Add(0, 0, 1),
		v.Add(1, 0, 0),
		v.Add(-1, 0, 0),
	}
}

// Center is the middle of the cell.
func (v Vec3i) Center() Vec3f {
	return Vec3f{X: float64(v.X) + 0.5, Y: float64(v.Y) + 0.5, Z: float64(v.Z) + 0.5}
}

// Footing is the standing point on top of the cell's floor (x/z centered, y unchanged).
func (v Vec3i) Footing() Vec3f {
	return Vec3f{X: float64(v.X) + 0.5, Y: float64(v.Y), Z: float64(v.Z) + 0.5}
}

func DistSq(a, b Vec3i) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}

func Manhattan(a, b Vec3i) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y) + absInt(a.Z-b.Z)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Vec3f is a continuous position (agent bodies, item entities, look targets).
type Vec3f struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3f) Dist(o Vec3f) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Block returns the cell containing the point.
func (v Vec3f) Block() Vec3i {
	return Vec3i{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}
