package runner

import (
	"voxelgather.ai/internal/protocol"
	"voxelgather.ai/internal/sim/gather/inventory"
	"voxelgather.ai/internal/sim/gather/provision"
	"voxelgather.ai/internal/sim/gather/task"
	"voxelgather.ai/internal/sim/model"
	"voxelgather.ai/internal/sim/voxelworld"
)

// Agent is one gathering body. It is the task.Env its task ticks against.
type Agent struct {
	ID string

	r    *Runner
	inv  *inventory.Inventory
	body *voxelworld.Walker
	task *task.Task

	swings int
	events []protocol.Event
}

func (a *Agent) World() task.World              { return a.r.world }
func (a *Agent) Nav() task.Navigator            { return a.body }
func (a *Agent) Drops() task.Drops              { return a.r.drops }
func (a *Agent) Inventory() provision.Inventory { return a.inv }
func (a *Agent) Position() model.Vec3f          { return a.body.Position() }
func (a *Agent) Swing()                         { a.swings++ }

// AccessPoint is the best storage access point within reach, if any.
func (a *Agent) AccessPoint() *model.Vec3i {
	if a.r.locator == nil {
		return nil
	}
	pts := a.r.locator.AccessPointsNear(a.Position().Block(), a.r.accessRadius)
	if len(pts) == 0 {
		return nil
	}
	p := pts[0].Pos
	return &p
}

func (a *Agent) AddEvent(e protocol.Event) {
	a.events = append(a.events, e)
}

func (a *Agent) TakeEvents() []protocol.Event {
	ev := a.events
	a.events = nil
	return ev
}

func (a *Agent) Task() *task.Task            { return a.task }
func (a *Agent) Items() *inventory.Inventory { return a.inv }
func (a *Agent) Swings() int                 { return a.swings }
