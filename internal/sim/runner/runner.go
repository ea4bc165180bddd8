package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"voxelgather.ai/internal/persistence/indexdb"
	plog "voxelgather.ai/internal/persistence/log"
	"voxelgather.ai/internal/protocol"
	"voxelgather.ai/internal/sim/gather/drops"
	"voxelgather.ai/internal/sim/gather/inventory"
	"voxelgather.ai/internal/sim/gather/storage"
	"voxelgather.ai/internal/sim/gather/task"
	"voxelgather.ai/internal/sim/model"
	"voxelgather.ai/internal/sim/voxelworld"
)

var ErrUnknownAgent = errors.New("unknown agent")

// Locator finds storage access points near a cell.
type Locator interface {
	AccessPointsNear(pos model.Vec3i, radius int) []storage.AccessPoint
}

// Journal is the durable event log.
type Journal interface {
	WriteEvent(e plog.TaskEventEntry) error
}

type AuditJournal interface {
	WriteAudit(e plog.ItemAuditEntry) error
}

// Index is the queryable outcome store. Writes may be dropped.
type Index interface {
	WriteEvent(agentID string, e protocol.Event)
	RecordOutcome(o indexdb.TaskOutcome)
	WriteItemAudit(a indexdb.ItemAudit)
}

type Options struct {
	TickRateHz   int
	Locator      Locator
	AccessRadius int
	Journal      Journal
	Audit        AuditJournal
	Index        Index
	// OnEvent sees every drained event after it is persisted.
	OnEvent func(agentID string, e protocol.Event)
	Log     *log.Logger
}

// Runner owns the world, the dropped items and every agent, and advances them
// one tick at a time. Step is not safe for concurrent use; Run serializes
// requests from other goroutines onto the tick loop.
type Runner struct {
	world *voxelworld.Store
	drops *drops.Store
	deps  task.Deps
	opts  Options
	log   *log.Logger

	locator      Locator
	accessRadius int

	tick   uint64
	agents map[string]*Agent

	assign  chan assignReq
	reports chan reportReq
}

type assignReq struct {
	agentID string
	taskID  string
	goal    task.Goal
	resp    chan assignResp
}

type assignResp struct {
	report task.Report
	err    error
}

type reportReq struct {
	agentID string
	resp    chan AgentReport
}

// AgentReport is a read-only view of one agent for callers outside the loop.
type AgentReport struct {
	AgentID  string          `json:"agent_id"`
	Pos      [3]float64      `json:"pos"`
	MainHand model.ItemStack `json:"main_hand"`
	Items    map[string]int  `json:"items"`
	Task     *task.Report    `json:"task,omitempty"`
	Found    bool            `json:"-"`
}

func New(world *voxelworld.Store, deps task.Deps, opts Options) *Runner {
	logger := opts.Log
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if deps.Log == nil {
		deps.Log = logger
	}
	if opts.TickRateHz <= 0 {
		opts.TickRateHz = 20
	}
	r := &Runner{
		world:        world,
		drops:        drops.NewStore(),
		deps:         deps,
		opts:         opts,
		log:          logger,
		locator:      opts.Locator,
		accessRadius: opts.AccessRadius,
		agents:       map[string]*Agent{},
		assign:       make(chan assignReq, 64),
		reports:      make(chan reportReq, 64),
	}
	r.drops.Audit = r.auditItem
	return r
}

func (r *Runner) Tick() uint64             { return r.tick }
func (r *Runner) World() *voxelworld.Store { return r.world }
func (r *Runner) Drops() *drops.Store      { return r.drops }

// AddAgent places a body with feet at pos. An existing agent with the same id
// is replaced.
func (r *Runner) AddAgent(id string, feet model.Vec3f, slots int) *Agent {
	a := &Agent{
		ID:   id,
		r:    r,
		inv:  inventory.New(slots, r.deps.Policy.Items()),
		body: voxelworld.NewWalker(r.world, feet),
	}
	r.agents[id] = a
	return a
}

func (r *Runner) Agent(id string) *Agent { return r.agents[id] }

func (r *Runner) sortedAgents() []*Agent {
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Assign gives the agent a new gather task, discarding any current one.
// Must be called from the tick loop goroutine.
func (r *Runner) Assign(agentID, taskID string, goal task.Goal) (*task.Task, error) {
	a := r.agents[agentID]
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if prev := a.task; prev != nil && !prev.State().Terminal() {
		prev.Cancel(a, r.tick, "replaced by a new task")
		r.recordOutcome(a, prev)
	}
	t := task.New(taskID, goal, r.deps)
	a.task = t
	if t.State() == task.Failed {
		ev := protocol.NewEvent(r.tick, protocol.EventTaskFail)
		ev["task_id"] = t.ID
		ev["code"] = task.FailureCode(t.Err())
		ev["reason"] = t.Reason()
		ev["mined"] = 0
		a.AddEvent(ev)
		r.recordOutcome(a, t)
	}
	r.drain(a)
	return t, nil
}

// Step advances the world one tick: bodies move, tasks tick, events drain.
func (r *Runner) Step() uint64 {
	r.tick++
	r.drops.SetTick(r.tick)
	for _, a := range r.sortedAgents() {
		a.body.Step()
		if t := a.task; t != nil && !t.State().Terminal() {
			t.Tick(a, r.tick)
			if t.State().Terminal() {
				r.recordOutcome(a, t)
			}
		}
		r.drain(a)
	}
	return r.tick
}

func (r *Runner) drain(a *Agent) {
	for _, e := range a.TakeEvents() {
		if r.opts.Journal != nil {
			if err := r.opts.Journal.WriteEvent(plog.TaskEventEntry{Tick: r.tick, AgentID: a.ID, Event: e}); err != nil {
				r.log.Printf("event log: %v", err)
			}
		}
		if r.opts.Index != nil {
			r.opts.Index.WriteEvent(a.ID, e)
		}
		if r.opts.OnEvent != nil {
			r.opts.OnEvent(a.ID, e)
		}
	}
}

func (r *Runner) recordOutcome(a *Agent, t *task.Task) {
	if r.opts.Index == nil {
		return
	}
	rep := t.Report()
	r.opts.Index.RecordOutcome(indexdb.TaskOutcome{
		TaskID:    rep.TaskID,
		AgentID:   a.ID,
		Target:    rep.Descriptor,
		State:     rep.State,
		Code:      task.FailureCode(t.Err()),
		Reason:    rep.Reason,
		Mined:     rep.Mined,
		Desired:   rep.Desired,
		StartTick: rep.StartTick,
		EndTick:   rep.EndTick,
	})
}

func (r *Runner) auditItem(nowTick uint64, action string, pos model.Vec3i, details map[string]any) {
	id, _ := details["entity_id"].(string)
	item, _ := details["item"].(string)
	count, _ := details["count"].(int)
	if r.opts.Audit != nil {
		if err := r.opts.Audit.WriteAudit(plog.ItemAuditEntry{
			Tick: nowTick, Action: action, Pos: pos.ToArray(), EntityID: id, Item: item, Count: count,
		}); err != nil {
			r.log.Printf("audit log: %v", err)
		}
	}
	if r.opts.Index != nil {
		r.opts.Index.WriteItemAudit(indexdb.ItemAudit{
			Tick: nowTick, Action: action, Pos: pos.ToArray(), EntityID: id, Item: item, Count: count,
		})
	}
}

func (r *Runner) snapshot(agentID string) AgentReport {
	a := r.agents[agentID]
	if a == nil {
		return AgentReport{AgentID: agentID}
	}
	p := a.Position()
	out := AgentReport{
		AgentID:  agentID,
		Pos:      [3]float64{p.X, p.Y, p.Z},
		MainHand: a.inv.MainHand(),
		Items:    a.inv.Counts(),
		Found:    true,
	}
	if a.task != nil {
		rep := a.task.Report()
		out.Task = &rep
	}
	return out
}

// Run drives Step at the configured tick rate and serves Submit/Report until
// ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(r.opts.TickRateHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-r.assign:
			t, err := r.Assign(req.agentID, req.taskID, req.goal)
			resp := assignResp{err: err}
			if t != nil {
				resp.report = t.Report()
			}
			req.resp <- resp
		case req := <-r.reports:
			req.resp <- r.snapshot(req.agentID)
		case <-ticker.C:
			r.Step()
		}
	}
}

// Submit hands a gather goal to the loop started by Run.
func (r *Runner) Submit(ctx context.Context, agentID, taskID string, goal task.Goal) (task.Report, error) {
	req := assignReq{agentID: agentID, taskID: taskID, goal: goal, resp: make(chan assignResp, 1)}
	select {
	case r.assign <- req:
	case <-ctx.Done():
		return task.Report{}, ctx.Err()
	}
	select {
	case resp := <-req.resp:
		return resp.report, resp.err
	case <-ctx.Done():
		return task.Report{}, ctx.Err()
	}
}

// Report fetches an agent view from the loop started by Run.
func (r *Runner) Report(ctx context.Context, agentID string) (AgentReport, error) {
	req := reportReq{agentID: agentID, resp: make(chan AgentReport, 1)}
	select {
	case r.reports <- req:
	case <-ctx.Done():
		return AgentReport{}, ctx.Err()
	}
	select {
	case rep := <-req.resp:
		if !rep.Found {
			return rep, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
		}
		return rep, nil
	case <-ctx.Done():
		return AgentReport{}, ctx.Err()
	}
}
