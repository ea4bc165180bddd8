package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/google/uuid"

	"voxelgather.ai/internal/protocol"
	"voxelgather.ai/internal/sim/gather/metrics"
	"voxelgather.ai/internal/sim/gather/policy"
	"voxelgather.ai/internal/sim/gather/provision"
	"voxelgather.ai/internal/sim/gather/region"
	"voxelgather.ai/internal/sim/gather/resolve"
	"voxelgather.ai/internal/sim/model"
	"voxelgather.ai/internal/sim/tuning"
)

var (
	ErrUnresolvedGoal  = errors.New("unresolved goal")
	ErrNoTargetFound   = errors.New("no target found")
	ErrToolUnavailable = errors.New("tool unavailable")
	ErrCancelled       = errors.New("cancelled")
)

type State int

const (
	AcquiringTarget State = iota
	Approaching
	Extracting
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case AcquiringTarget:
		return "ACQUIRING_TARGET"
	case Approaching:
		return "APPROACHING"
	case Extracting:
		return "EXTRACTING"
	case Completed:
		return "COMPLETED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s State) Terminal() bool { return s == Completed || s == Failed }

// Goal is the immutable instruction: collect Count cells matching Descriptor
// within Radius blocks (0 = configured default).
type Goal struct {
	Descriptor string
	Count      int
	Radius     int
}

// Deps are shared by every task of a runner.
type Deps struct {
	Policy      *policy.Policy
	Resolver    *resolve.Resolver
	Provisioner *provision.Provisioner
	Tuning      tuning.Gather
	Metrics     *metrics.Metrics
	Log         *log.Logger
}

type Task struct {
	ID   string
	Goal Goal

	deps       Deps
	candidates resolve.CandidateSet
	radius     int

	state  State
	mined  int
	reason string
	err    error

	hasTarget          bool
	target             model.Vec3i
	progress           int
	ticksAtTarget      int
	ticksWithoutTarget int
	pending            []model.Vec3i

	started   bool
	startTick uint64
	endTick   uint64
}

// New creates a task and resolves its descriptor. A descriptor that matches
// no block type yields a task that is already Failed.
func New(id string, goal Goal, deps Deps) *Task {
	if id == "" {
		id = uuid.NewString()
	}
	if deps.Log == nil {
		deps.Log = log.New(io.Discard, "", 0)
	}
	t := &Task{ID: id, Goal: goal, deps: deps}

	t.radius = goal.Radius
	if t.radius <= 0 {
		t.radius = deps.Tuning.DefaultSearchRadius
	}
	if max := deps.Tuning.MaxSearchRadius; max > 0 && t.radius > max {
		t.radius = max
	}

	cs, err := deps.Resolver.Resolve(goal.Descriptor)
	if err != nil {
		t.state = Failed
		t.err = fmt.Errorf("%w: %v", ErrUnresolvedGoal, err)
		t.reason = fmt.Sprintf("I don't know what %q is.", goal.Descriptor)
		var ue *resolve.UnresolvedError
		if errors.As(err, &ue) && ue.Suggestion != "" {
			t.reason = fmt.Sprintf("I don't know what %q is. Did you mean %s?", goal.Descriptor, ue.Suggestion)
		}
		deps.Metrics.TaskSettled("failed", FailureCode(t.err))
		return t
	}
	t.candidates = cs
	return t
}

func (t *Task) State() State { return t.state }
func (t *Task) Mined() int   { return t.mined }
func (t *Task) Reason() string {
	return t.reason
}

// Err is nil unless the task failed; it wraps one of the Err* sentinels.
func (t *Task) Err() error { return t.err }

func (t *Task) Candidates() resolve.CandidateSet { return t.candidates }

// Target returns the current target cell, if any.
func (t *Task) Target() (model.Vec3i, bool) { return t.target, t.hasTarget }

type Report struct {
	TaskID     string `json:"task_id"`
	Descriptor string `json:"target"`
	State      string `json:"state"`
	Mined      int    `json:"mined"`
	Desired    int    `json:"desired"`
	Reason     string `json:"reason,omitempty"`
	StartTick  uint64 `json:"start_tick"`
	EndTick    uint64 `json:"end_tick,omitempty"`
}

func (t *Task) Report() Report {
	return Report{
		TaskID:     t.ID,
		Descriptor: t.Goal.Descriptor,
		State:      t.state.String(),
		Mined:      t.mined,
		Desired:    t.Goal.Count,
		Reason:     t.reason,
		StartTick:  t.startTick,
		EndTick:    t.endTick,
	}
}

// Tick advances the task by one simulation tick.
func (t *Task) Tick(env Env, nowTick uint64) {
	if t.state.Terminal() {
		return
	}
	if t.mined >= t.Goal.Count {
		t.complete(env, nowTick)
		return
	}
	if !t.started {
		t.start(env, nowTick)
	}

	t.collectDrops(env)

	w := env.World()
	if !t.hasTarget || !t.candidates.Contains(w.BlockAt(t.target)) {
		t.resetTarget()
		if !t.acquire(env) {
			t.ticksWithoutTarget++
			if t.ticksWithoutTarget > t.deps.Tuning.NoTargetFailTicks {
				t.fail(env, nowTick, ErrNoTargetFound, fmt.Sprintf("I can't find any more %s nearby.", t.Goal.Descriptor))
			}
			return
		}
		if !t.ensureTool(env, nowTick) {
			return
		}
	}
	t.ticksWithoutTarget = 0

	g := t.deps.Tuning
	nav := env.Nav()
	dist := env.Position().Dist(t.target.Center())
	switch {
	case dist > g.FarDistance:
		t.state = Approaching
		if nav.NavIdle() {
			nav.MoveTo(t.target.Footing(), g.MoveSpeed)
		}
		t.ticksAtTarget = 0
	case dist > g.NearDistance:
		t.state = Approaching
		nav.MoveTo(t.target.Footing(), g.ApproachSpeed)
		t.ticksAtTarget++
	default:
		t.state = Extracting
		nav.StopNav()
		t.ticksAtTarget++
		nav.LookAt(t.target.Center())
		if g.SwingEveryTicks > 0 && t.ticksAtTarget%g.SwingEveryTicks == 0 {
			env.Swing()
		}
		t.progress++
		if t.progress >= t.requiredProgress(env) {
			t.extract(env, nowTick)
			if t.mined >= t.Goal.Count {
				t.complete(env, nowTick)
			}
			return
		}
	}

	if t.ticksAtTarget > g.StuckTimeoutTicks {
		env.AddEvent(t.event(nowTick, protocol.EventTargetAbandoned, protocol.Event{
			"pos":   t.target.ToArray(),
			"ticks": t.ticksAtTarget,
		}))
		t.deps.Metrics.TargetAbandoned()
		t.deps.Log.Printf("task %s: abandoning target %v after %d ticks", t.ID, t.target.ToArray(), t.ticksAtTarget)
		t.resetTarget()
	}
}

func (t *Task) start(env Env, nowTick uint64) {
	t.started = true
	t.startTick = nowTick
	t.deps.Metrics.TaskStarted()
	env.AddEvent(t.event(nowTick, protocol.EventTaskStart, protocol.Event{
		"target":     t.Goal.Descriptor,
		"count":      t.Goal.Count,
		"radius":     t.radius,
		"candidates": t.candidates.IDs(),
	}))
}

func (t *Task) resetTarget() {
	t.hasTarget = false
	t.progress = 0
	t.ticksAtTarget = 0
	t.state = AcquiringTarget
}

// acquire picks the next target: the nearest reachable match, unless a queued
// cell from the last vein is reachable and no farther out. Queued cells that
// are still enclosed stay queued.
func (t *Task) acquire(env Env) bool {
	w := env.World()
	origin := env.Position().Block()
	solid := t.deps.Policy.IsSolid
	nearest, found := region.FindNearest(w, origin, t.candidates.Contains, solid, t.radius)

	picked := false
	kept := t.pending[:0]
	for _, c := range t.pending {
		d := chebyshev(origin, c)
		if !t.candidates.Contains(w.BlockAt(c)) || d > t.radius {
			continue
		}
		if !picked && region.Exposed(w, c, solid) && (!found || d <= chebyshev(origin, nearest)) {
			t.target, picked = c, true
			continue
		}
		kept = append(kept, c)
	}
	t.pending = kept
	if picked {
		t.hasTarget = true
		return true
	}
	if !found {
		return false
	}
	t.target, t.hasTarget = nearest, true
	return true
}

// ensureTool runs provisioning for a fresh target when the held item is not
// enough. It fails the task if no tool can be had.
func (t *Task) ensureTool(env Env, nowTick uint64) bool {
	pol := t.deps.Policy
	block := env.World().BlockAt(t.target)
	inv := env.Inventory()
	if pol.Satisfies(inv.MainHand().Item, pol.RequiredTool(block)) {
		return true
	}
	res := t.deps.Provisioner.EnsureTool(context.Background(), inv, block, env.AccessPoint())
	t.deps.Metrics.ToolProvisioned(res.Source.String(), res.Ready)
	for _, st := range res.Spill {
		env.Drops().SpawnItem(env.Position().Block(), st)
	}
	if !res.Ready {
		t.fail(env, nowTick, ErrToolUnavailable, res.Reason)
		return false
	}
	if res.Source != provision.SourceNotNeeded && res.Source != provision.SourceEquipped {
		env.AddEvent(t.event(nowTick, protocol.EventToolReady, protocol.Event{
			"tool":   res.Tool,
			"source": res.Source.String(),
		}))
	}
	return true
}

func (t *Task) requiredProgress(env Env) int {
	g := t.deps.Tuning
	res := env.World().ResistanceAt(t.target)
	if res < 0 {
		return g.UnbreakableTicks
	}
	ticks := float64(g.BaseExtractTicks) + res*g.ResistanceTicks
	if g.ApplyToolSpeed {
		held := env.Inventory().MainHand().Item
		if m := t.deps.Policy.SpeedMultiplier(held, env.World().BlockAt(t.target)); m > 1 {
			ticks /= m
		}
	}
	if ticks < 1 {
		return 1
	}
	return int(math.Floor(ticks))
}

func (t *Task) extract(env Env, nowTick uint64) {
	pos := t.target
	w := env.World()
	pol := t.deps.Policy
	block := w.BlockAt(pos)

	if !t.deps.Tuning.DisableVeinFollow && len(t.pending) == 0 {
		t.queueVein(w, block, pos)
	}

	drops := w.ClearBlock(pos)
	if pol.IsMatureCrop(block) {
		replanted := t.harvest(env, block, pos, drops)
		env.AddEvent(t.event(nowTick, protocol.EventCropHarvested, protocol.Event{
			"block":     block,
			"pos":       pos.ToArray(),
			"replanted": replanted,
		}))
	} else {
		for _, st := range drops {
			env.Drops().SpawnItem(pos, st)
		}
	}

	t.mined++
	t.deps.Metrics.BlockMined(block)
	env.AddEvent(t.event(nowTick, protocol.EventBlockMined, protocol.Event{
		"block":   block,
		"pos":     pos.ToArray(),
		"mined":   t.mined,
		"desired": t.Goal.Count,
	}))
	t.resetTarget()
}

// queueVein remembers the rest of an ore vein or tree as preferred next targets.
func (t *Task) queueVein(w World, block string, pos model.Vec3i) {
	pol := t.deps.Policy
	var cells []model.Vec3i
	switch {
	case pol.IsOre(block):
		cells = region.FindConnected(w, pol, pos, t.deps.Tuning.VeinMax)
	case pol.IsLog(block):
		cells = region.FindTree(w, pol, pos)
		if max := t.deps.Tuning.TreeMax; len(cells) > max {
			cells = cells[:max]
		}
	default:
		return
	}
	for _, c := range cells {
		if c != pos && t.candidates.Contains(w.BlockAt(c)) {
			t.pending = append(t.pending, c)
		}
	}
}

// harvest puts crop drops straight into the inventory and replants when a seed
// is at hand. Whatever does not fit is dropped.
func (t *Task) harvest(env Env, block string, pos model.Vec3i, drops []model.ItemStack) bool {
	inv := env.Inventory()
	for _, st := range drops {
		if rem := inv.Add(st); !rem.Empty() {
			env.Drops().SpawnItem(pos, rem)
		}
	}
	def, ok := t.deps.Policy.Blocks().Def(block)
	if !ok || def.Seed == "" || def.ReplantAs == "" {
		return false
	}
	if !inv.Remove(def.Seed, 1) {
		return false
	}
	env.World().SetBlock(pos, def.ReplantAs)
	return true
}

func (t *Task) collectDrops(env Env) {
	inv := env.Inventory()
	env.Drops().PickupNear(env.Position(), t.deps.Tuning.PickupRadius, inv.Add)
}

func (t *Task) complete(env Env, nowTick uint64) {
	t.state = Completed
	t.hasTarget = false
	t.endTick = nowTick
	if t.started {
		t.deps.Metrics.TaskFinished("completed", "", nowTick-t.startTick)
	} else {
		t.deps.Metrics.TaskSettled("completed", "")
	}
	env.AddEvent(t.event(nowTick, protocol.EventTaskDone, protocol.Event{
		"mined": t.mined,
	}))
	t.deps.Log.Printf("task %s: completed %d/%d %s", t.ID, t.mined, t.Goal.Count, t.Goal.Descriptor)
}

func (t *Task) fail(env Env, nowTick uint64, kind error, reason string) {
	t.state = Failed
	t.hasTarget = false
	t.endTick = nowTick
	t.reason = reason
	t.err = fmt.Errorf("%w: %s", kind, reason)
	if t.started {
		t.deps.Metrics.TaskFinished("failed", FailureCode(t.err), nowTick-t.startTick)
	} else {
		t.deps.Metrics.TaskSettled("failed", FailureCode(t.err))
	}
	env.AddEvent(t.event(nowTick, protocol.EventTaskFail, protocol.Event{
		"code":   FailureCode(t.err),
		"reason": reason,
		"mined":  t.mined,
	}))
	t.deps.Log.Printf("task %s: failed after %d/%d: %s", t.ID, t.mined, t.Goal.Count, reason)
}

// Cancel fails a running task. It is a no-op once the task is terminal.
func (t *Task) Cancel(env Env, nowTick uint64, reason string) {
	if t.state.Terminal() {
		return
	}
	t.fail(env, nowTick, ErrCancelled, reason)
}

// FailureCode is a short stable label for err ("" when err is nil).
func FailureCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnresolvedGoal):
		return "unresolved_goal"
	case errors.Is(err, ErrNoTargetFound):
		return "no_target"
	case errors.Is(err, ErrToolUnavailable):
		return "tool_unavailable"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "other"
	}
}

func (t *Task) event(nowTick uint64, typ string, fields protocol.Event) protocol.Event {
	e := protocol.NewEvent(nowTick, typ)
	e["task_id"] = t.ID
	for k, v := range fields {
		e[k] = v
	}
	return e
}

func chebyshev(a, b model.Vec3i) int {
	d := abs(a.X - b.X)
	if y := abs(a.Y - b.Y); y > d {
		d = y
	}
	if z := abs(a.Z - b.Z); z > d {
		d = z
	}
	return d
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
