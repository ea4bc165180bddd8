package task

import (
	"voxelgather.ai/internal/protocol"
	"voxelgather.ai/internal/sim/gather/provision"
	"voxelgather.ai/internal/sim/model"
)

// World is the voxel grid as the task sees it. Cells are re-read every tick.
type World interface {
	BlockAt(pos model.Vec3i) string
	SetBlock(pos model.Vec3i, id string)
	// ClearBlock removes the block at pos and returns what it drops.
	ClearBlock(pos model.Vec3i) []model.ItemStack
	// ResistanceAt is negative for unbreakable blocks.
	ResistanceAt(pos model.Vec3i) float64
}

type Navigator interface {
	MoveTo(target model.Vec3f, speed float64)
	NavIdle() bool
	StopNav()
	LookAt(target model.Vec3f)
}

type Drops interface {
	SpawnItem(pos model.Vec3i, st model.ItemStack) string
	PickupNear(center model.Vec3f, radius float64, take func(model.ItemStack) model.ItemStack) int
}

// Env is everything one agent exposes to its task during a tick.
type Env interface {
	World() World
	Nav() Navigator
	Drops() Drops
	Inventory() provision.Inventory
	// Position is the agent's feet.
	Position() model.Vec3f
	// AccessPoint is the storage access point in reach, or nil.
	AccessPoint() *model.Vec3i
	// Swing plays the strike animation.
	Swing()
	AddEvent(e protocol.Event)
}
