package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelgather.ai/internal/protocol"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []map[string]any
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestHourlyWriter_RotatesPerHour(t *testing.T) {
	dir := t.TempDir()
	w := NewHourlyWriter(dir, "tasks")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write(map[string]int{"n": 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	first := readLines(t, w.Path("2026-03-01-10"))
	second := readLines(t, w.Path("2026-03-01-11"))
	if len(first) != 1 || len(second) != 2 {
		t.Fatalf("lines per hour: %d, %d", len(first), len(second))
	}
	if second[1]["n"].(float64) != 3 {
		t.Fatalf("unexpected order %v", second)
	}
}

func TestTaskLogger_WritesEvents(t *testing.T) {
	dir := t.TempDir()
	l := NewTaskLogger(dir)
	ev := protocol.NewEvent(42, protocol.EventBlockMined)
	ev["task_id"] = "t1"
	if err := l.WriteEvent(TaskEventEntry{Tick: 42, AgentID: "A1", Event: ev}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	hour := l.w.hour
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "events", "tasks-"+hour+".jsonl.zst"))
	if len(lines) != 1 || lines[0]["agent_id"] != "A1" {
		t.Fatalf("unexpected lines %v", lines)
	}
	inner := lines[0]["event"].(map[string]any)
	if inner["type"] != protocol.EventBlockMined || inner["task_id"] != "t1" {
		t.Fatalf("unexpected event %v", inner)
	}
}
