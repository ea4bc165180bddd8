package main

import (
	"bytes"
	"strings"
	"testing"

	persistlog "voxelgather.ai/internal/persistence/log"
	"voxelgather.ai/internal/protocol"
)

func entry(tick uint64, agent, task, typ string, fields map[string]any) persistlog.TaskEventEntry {
	ev := protocol.NewEvent(tick, typ)
	ev["task_id"] = task
	for k, v := range fields {
		ev[k] = v
	}
	return persistlog.TaskEventEntry{Tick: tick, AgentID: agent, Event: ev}
}

func TestSummary_FoldsTaskLifecycle(t *testing.T) {
	s := newSummary()
	s.add(entry(10, "A1", "t1", protocol.EventTaskStart, map[string]any{"target": "iron", "count": float64(2)}))
	s.add(entry(10, "A1", "t1", protocol.EventToolReady, map[string]any{"tool": "STONE_PICKAXE", "source": "crafted"}))
	s.add(entry(80, "A1", "t1", protocol.EventBlockMined, map[string]any{"block": "IRON_ORE", "mined": float64(1)}))
	s.add(entry(90, "A2", "t2", protocol.EventTaskFail, map[string]any{"code": "unresolved_goal", "reason": "nope", "mined": float64(0)}))
	s.add(entry(400, "A1", "t1", protocol.EventTargetAbandoned, nil))
	s.add(entry(500, "A1", "t1", protocol.EventBlockMined, map[string]any{"block": "DEEPSLATE_IRON_ORE", "mined": float64(2)}))
	s.add(entry(500, "A1", "t1", protocol.EventTaskDone, map[string]any{"mined": float64(2)}))

	var buf bytes.Buffer
	s.print(&buf)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%q", lines)
	}
	want := `task=t1 agent=A1 target="iron" state=COMPLETED mined=2/2 ticks=10..500 abandoned=1 tools=STONE_PICKAXE(crafted) blocks=DEEPSLATE_IRON_ORE:1,IRON_ORE:1`
	if lines[0] != want {
		t.Fatalf("got  %s\nwant %s", lines[0], want)
	}
	if !strings.Contains(lines[1], "state=FAILED") || !strings.Contains(lines[1], "code=unresolved_goal") {
		t.Fatalf("unexpected failure line %s", lines[1])
	}
}

func TestFilter(t *testing.T) {
	e := entry(50, "A1", "t1", protocol.EventBlockMined, nil)
	cases := []struct {
		f    filter
		keep bool
	}{
		{filter{}, true},
		{filter{agent: "A2"}, false},
		{filter{task: "t1"}, true},
		{filter{task: "t2"}, false},
		{filter{from: 51}, false},
		{filter{to: 49}, false},
		{filter{from: 50, to: 50}, true},
	}
	for i, c := range cases {
		if got := c.f.keep(e); got != c.keep {
			t.Fatalf("case %d: keep=%v want %v", i, got, c.keep)
		}
	}
}
