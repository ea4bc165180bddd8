package voxelworld

import (
	"math"

	"voxelgather.ai/internal/sim/model"
)

const (
	DefaultBlocksPerTick = 0.2
	DefaultMaxStep       = 1
	maxDrop              = 4
)

// Walker is one agent body walking on a Store. MoveTo sets a goal that Step
// advances toward every tick; the body needs a solid floor and two free cells.
type Walker struct {
	w *Store

	BlocksPerTick float64 // at speed 1
	MaxStep       int

	pos    model.Vec3f
	goal   model.Vec3f
	speed  float64
	moving bool
	look   model.Vec3f
}

func NewWalker(w *Store, feet model.Vec3f) *Walker {
	return &Walker{w: w, pos: feet, BlocksPerTick: DefaultBlocksPerTick, MaxStep: DefaultMaxStep}
}

func (k *Walker) Position() model.Vec3f { return k.pos }
func (k *Walker) Looking() model.Vec3f  { return k.look }

func (k *Walker) MoveTo(target model.Vec3f, speed float64) {
	if speed <= 0 {
		speed = 1
	}
	k.goal, k.speed, k.moving = target, speed, true
}

func (k *Walker) NavIdle() bool        { return !k.moving }
func (k *Walker) StopNav()             { k.moving = false }
func (k *Walker) LookAt(p model.Vec3f) { k.look = p }

// Step applies gravity, then walks toward the goal. A blocked step ends the
// move; the caller decides whether to try again.
func (k *Walker) Step() {
	k.fall()
	if !k.moving {
		return
	}

	dx, dz := k.goal.X-k.pos.X, k.goal.Z-k.pos.Z
	dist := math.Hypot(dx, dz)
	if dist < 0.05 {
		k.moving = false
		return
	}
	step := math.Min(dist, k.BlocksPerTick*k.speed)
	nx, nz := k.pos.X+dx/dist*step, k.pos.Z+dz/dist*step

	if y, ok := k.standAt(nx, nz); ok {
		k.pos = model.Vec3f{X: nx, Y: y, Z: nz}
		return
	}
	// Blocked: slide along the dominant axis, then the other one.
	tries := [2][2]float64{{nx, k.pos.Z}, {k.pos.X, nz}}
	if math.Abs(dz) > math.Abs(dx) {
		tries[0], tries[1] = tries[1], tries[0]
	}
	for _, t := range tries {
		if t[0] == k.pos.X && t[1] == k.pos.Z {
			continue
		}
		if y, ok := k.standAt(t[0], t[1]); ok {
			k.pos = model.Vec3f{X: t[0], Y: y, Z: t[1]}
			return
		}
	}
	k.moving = false
}

func (k *Walker) fall() {
	feet := k.pos.Block()
	for i := 0; i < maxDrop && feet.Y > 0 && !k.w.Solid(feet.Down()); i++ {
		feet = feet.Down()
	}
	k.pos.Y = float64(feet.Y)
}

// standAt finds the feet height for point (x, z) closest to the current one:
// same level first, then up to MaxStep higher, then up to maxDrop lower.
func (k *Walker) standAt(x, z float64) (float64, bool) {
	cell := model.Vec3f{X: x, Y: k.pos.Y, Z: z}.Block()
	if cell.X == k.pos.Block().X && cell.Z == k.pos.Block().Z {
		return k.pos.Y, true
	}
	cur := cell.Y
	for dy := 0; dy <= k.MaxStep; dy++ {
		if k.canStand(cell.X, cur+dy, cell.Z) {
			return float64(cur + dy), true
		}
	}
	for dy := 1; dy <= maxDrop; dy++ {
		if k.canStand(cell.X, cur-dy, cell.Z) {
			return float64(cur - dy), true
		}
	}
	return 0, false
}

func (k *Walker) canStand(x, y, z int) bool {
	feet := model.Vec3i{X: x, Y: y, Z: z}
	return k.w.Solid(feet.Down()) && !k.w.Solid(feet) && !k.w.Solid(feet.Up())
}
