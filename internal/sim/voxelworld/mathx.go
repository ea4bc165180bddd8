package voxelworld

func floorDiv(a, b int) int {
	q := a / b
	if r := a % b; r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9))
}

// scalePermille scales base by scale/1000, rounding to nearest; scale <= 0 means 1000.
func scalePermille(base uint64, scale int) uint64 {
	if scale <= 0 {
		scale = 1000
	}
	scaled := (base*uint64(scale) + 500) / 1000
	if scaled > 1000 {
		return 1000
	}
	return scaled
}

// gridFeature finds the feature of the grid cell family around (x, z) whose
// center lies within radius. Each grid cell hosts a feature with probability
// probPermille at a hash-derived center. It returns the center and its hash.
func gridFeature(seed int64, x, z, grid, radius int, probPermille uint64) (cx, cz int, h uint64, ok bool) {
	if grid <= 0 || radius < 0 || probPermille == 0 {
		return 0, 0, 0, false
	}
	gx := floorDiv(x, grid)
	gz := floorDiv(z, grid)
	r2 := radius * radius
	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx, cgz := gx+dx, gz+dz
			hh := hash2(seed, cgx, cgz)
			if hh%1000 >= probPermille {
				continue
			}
			ccx := cgx*grid + int((hh>>10)%uint64(grid))
			ccz := cgz*grid + int((hh>>20)%uint64(grid))
			ddx, ddz := x-ccx, z-ccz
			if ddx*ddx+ddz*ddz <= r2 {
				return ccx, ccz, hh, true
			}
		}
	}
	return 0, 0, 0, false
}

func withinRadius(x, z, radius int) bool {
	if radius <= 0 {
		return false
	}
	r := int64(radius)
	dx, dz := int64(x), int64(z)
	return dx*dx+dz*dz <= r*r
}
