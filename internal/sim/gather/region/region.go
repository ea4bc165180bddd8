package region

import (
	"sort"

	"voxelgather.ai/internal/sim/gather/policy"
	"voxelgather.ai/internal/sim/model"
)

const (
	MaxVeinCells = 64
	MaxTreeCells = 128

	trunkRadius  = 1
	canopyRadius = 2
)

// Reader is the read side of the world. Unloaded cells read as "AIR".
type Reader interface {
	BlockAt(pos model.Vec3i) string
}

// FindConnected collects up to maxCells cells reachable from start through the
// 26-neighborhood whose block is in start's family. Each coordinate is read at
// most once. Log-like starts come back top-down, everything else bottom-up.
func FindConnected(w Reader, pol *policy.Policy, start model.Vec3i, maxCells int) []model.Vec3i {
	startID := w.BlockAt(start)
	if pol.IsAir(startID) || maxCells <= 0 {
		return nil
	}

	visited := map[model.Vec3i]struct{}{start: {}}
	queue := []model.Vec3i{start}
	var out []model.Vec3i
	for len(queue) > 0 && len(out) < maxCells {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		forEachNeighbor(cur, 1, func(n model.Vec3i) {
			if _, seen := visited[n]; seen {
				return
			}
			visited[n] = struct{}{}
			if pol.SameFamily(startID, w.BlockAt(n)) {
				queue = append(queue, n)
			}
		})
	}

	if pol.IsLog(startID) {
		sortTopDown(out)
	} else {
		sortBottomUp(out)
	}
	return out
}

func FindVein(w Reader, pol *policy.Policy, start model.Vec3i) []model.Vec3i {
	return FindConnected(w, pol, start, MaxVeinCells)
}

// FindTree walks a whole tree from a log: trunk cells search radius 1, canopy
// cells radius 2, all restricted to the start's species (or generic blocks).
// Trunk cells come first, top-down, then canopy cells in discovery order.
func FindTree(w Reader, pol *policy.Policy, start model.Vec3i) []model.Vec3i {
	startID := w.BlockAt(start)
	if !pol.IsLog(startID) {
		return nil
	}
	species := pol.Species(startID)

	visited := map[model.Vec3i]struct{}{start: {}}
	queue := []model.Vec3i{start}
	var trunk, canopy []model.Vec3i
	for len(queue) > 0 && len(trunk)+len(canopy) < MaxTreeCells {
		cur := queue[0]
		queue = queue[1:]
		id := w.BlockAt(cur)
		if !pol.SameStructure(species, id) {
			continue
		}
		radius := canopyRadius
		if pol.IsLog(id) {
			trunk = append(trunk, cur)
			radius = trunkRadius
		} else {
			canopy = append(canopy, cur)
		}
		forEachNeighbor(cur, radius, func(n model.Vec3i) {
			if _, seen := visited[n]; seen {
				return
			}
			visited[n] = struct{}{}
			if pol.SameStructure(species, w.BlockAt(n)) {
				queue = append(queue, n)
			}
		})
	}

	sortTopDown(trunk)
	return append(trunk, canopy...)
}

// FindNearest scans cubic shells of growing Chebyshev radius around origin and
// returns the closest (squared Euclidean) matching cell of the first shell
// that has one. A cell qualifies only if one of its faces touches a non-solid
// cell, so fully enclosed blocks are never chosen. Ties keep scan order
// (x, then y, then z ascending).
func FindNearest(w Reader, origin model.Vec3i, match func(id string) bool, solid func(id string) bool, maxRadius int) (model.Vec3i, bool) {
	for r := 1; r <= maxRadius; r++ {
		var best model.Vec3i
		bestDist := -1
		forEachShellCell(origin, r, func(p model.Vec3i) {
			if !match(w.BlockAt(p)) {
				return
			}
			d := model.DistSq(origin, p)
			if bestDist >= 0 && d >= bestDist {
				return
			}
			if !Exposed(w, p, solid) {
				return
			}
			best, bestDist = p, d
		})
		if bestDist >= 0 {
			return best, true
		}
	}
	return model.Vec3i{}, false
}

// FindMatureCrops lists mature crop cells in the horizontal square of the given
// radius at center's height, x-major then z.
func FindMatureCrops(w Reader, pol *policy.Policy, center model.Vec3i, radius int) []model.Vec3i {
	var out []model.Vec3i
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			p := center.Add(dx, 0, dz)
			if pol.IsMatureCrop(w.BlockAt(p)) {
				out = append(out, p)
			}
		}
	}
	return out
}

// Exposed reports whether any face of p touches a non-solid cell.
func Exposed(w Reader, p model.Vec3i, solid func(id string) bool) bool {
	for _, n := range p.Faces() {
		if !solid(w.BlockAt(n)) {
			return true
		}
	}
	return false
}

func forEachNeighbor(c model.Vec3i, radius int, fn func(model.Vec3i)) {
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			for dz := -radius; dz <= radius; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				fn(c.Add(dx, dy, dz))
			}
		}
	}
}

// forEachShellCell visits cells at Chebyshev distance exactly r.
func forEachShellCell(c model.Vec3i, r int, fn func(model.Vec3i)) {
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			onFace := dx == -r || dx == r || dy == -r || dy == r
			if onFace {
				for dz := -r; dz <= r; dz++ {
					fn(c.Add(dx, dy, dz))
				}
				continue
			}
			fn(c.Add(dx, dy, -r))
			fn(c.Add(dx, dy, r))
		}
	}
}

func sortTopDown(ps []model.Vec3i) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Y > ps[j].Y })
}

func sortBottomUp(ps []model.Vec3i) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Y < ps[j].Y })
}
