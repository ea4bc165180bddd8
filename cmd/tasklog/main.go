package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "voxelgather.ai/internal/persistence/log"
	"voxelgather.ai/internal/protocol"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory (reads <data>/events/tasks-*.jsonl.zst)")
		taskID   = flag.String("task", "", "only this task id")
		agentID  = flag.String("agent", "", "only this agent id")
		fromTick = flag.Uint64("from_tick", 0, "first tick to include (optional)")
		toTick   = flag.Uint64("to_tick", 0, "last tick to include (optional)")
		raw      = flag.Bool("events", false, "print every event instead of per-task summaries")
	)
	flag.Parse()

	files, err := persistlog.ListHourly(filepath.Join(*dataDir, "events"), "tasks")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no task event files found under", *dataDir)
		os.Exit(1)
	}

	f := filter{task: strings.TrimSpace(*taskID), agent: strings.TrimSpace(*agentID), from: *fromTick, to: *toTick}
	sum := newSummary()
	for _, path := range files {
		err := persistlog.ReadTaskEvents(path, func(e persistlog.TaskEventEntry) error {
			if !f.keep(e) {
				return nil
			}
			if *raw {
				return printEvent(os.Stdout, e)
			}
			sum.add(e)
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
	}
	if !*raw {
		sum.print(os.Stdout)
	}
}

type filter struct {
	task, agent string
	from, to    uint64
}

func (f filter) keep(e persistlog.TaskEventEntry) bool {
	if f.agent != "" && e.AgentID != f.agent {
		return false
	}
	if f.task != "" && str(e.Event, "task_id") != f.task {
		return false
	}
	if e.Tick < f.from {
		return false
	}
	return f.to == 0 || e.Tick <= f.to
}

func printEvent(w io.Writer, e persistlog.TaskEventEntry) error {
	b, err := json.Marshal(e.Event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d %s %s\n", e.Tick, e.AgentID, b)
	return err
}

// taskLine is everything the event log says about one task.
type taskLine struct {
	id, agent, target string
	desired, mined    int
	first, last       uint64
	state, code       string
	reason            string
	abandoned         int
	tools             []string
	blocks            map[string]int
}

type summary struct {
	tasks map[string]*taskLine
	order []string
}

func newSummary() *summary { return &summary{tasks: map[string]*taskLine{}} }

func (s *summary) add(e persistlog.TaskEventEntry) {
	id := str(e.Event, "task_id")
	if id == "" {
		return
	}
	t := s.tasks[id]
	if t == nil {
		t = &taskLine{id: id, agent: e.AgentID, first: e.Tick, state: "RUNNING", blocks: map[string]int{}}
		s.tasks[id] = t
		s.order = append(s.order, id)
	}
	t.last = e.Tick
	ev := e.Event
	switch ev.Type() {
	case protocol.EventTaskStart:
		t.target = str(ev, "target")
		t.desired = num(ev, "count")
	case protocol.EventToolReady:
		t.tools = append(t.tools, str(ev, "tool")+"("+str(ev, "source")+")")
	case protocol.EventBlockMined, protocol.EventCropHarvested:
		t.blocks[str(ev, "block")]++
		if m := num(ev, "mined"); m > t.mined {
			t.mined = m
		}
	case protocol.EventTargetAbandoned:
		t.abandoned++
	case protocol.EventTaskDone:
		t.state = "COMPLETED"
		t.mined = num(ev, "mined")
	case protocol.EventTaskFail:
		t.state = "FAILED"
		t.code = str(ev, "code")
		t.reason = str(ev, "reason")
		t.mined = num(ev, "mined")
	}
}

func (s *summary) print(w io.Writer) {
	for _, id := range s.order {
		t := s.tasks[id]
		fmt.Fprintf(w, "task=%s agent=%s target=%q state=%s mined=%d/%d ticks=%d..%d", t.id, t.agent, t.target, t.state, t.mined, t.desired, t.first, t.last)
		if t.abandoned > 0 {
			fmt.Fprintf(w, " abandoned=%d", t.abandoned)
		}
		if len(t.tools) > 0 {
			fmt.Fprintf(w, " tools=%s", strings.Join(t.tools, ","))
		}
		if len(t.blocks) > 0 {
			ids := make([]string, 0, len(t.blocks))
			for b := range t.blocks {
				ids = append(ids, b)
			}
			sort.Strings(ids)
			parts := make([]string, 0, len(ids))
			for _, b := range ids {
				parts = append(parts, fmt.Sprintf("%s:%d", b, t.blocks[b]))
			}
			fmt.Fprintf(w, " blocks=%s", strings.Join(parts, ","))
		}
		if t.code != "" {
			fmt.Fprintf(w, " code=%s reason=%q", t.code, t.reason)
		}
		fmt.Fprintln(w)
	}
}

func str(e protocol.Event, k string) string {
	s, _ := e[k].(string)
	return s
}

// num reads an integer field; decoded JSON numbers are float64.
func num(e protocol.Event, k string) int {
	switch v := e[k].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
