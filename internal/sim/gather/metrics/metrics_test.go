package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.TaskStarted()
	m.TaskStarted()
	m.BlockMined("IRON_ORE")
	m.BlockMined("IRON_ORE")
	m.TargetAbandoned()
	m.ToolProvisioned("crafted", true)
	m.TaskFinished("completed", "", 120)

	if got := testutil.ToFloat64(m.tasksActive); got != 1 {
		t.Fatalf("tasks_active=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.blocksMined.WithLabelValues("IRON_ORE")); got != 2 {
		t.Fatalf("blocks_mined=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.tasksFinished.WithLabelValues("completed", "")); got != 1 {
		t.Fatalf("tasks_finished=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.toolProvisions.WithLabelValues("crafted", "true")); got != 1 {
		t.Fatalf("tool_provisions=%v want 1", got)
	}
	if got := testutil.CollectAndCount(m.taskDuration); got != 1 {
		t.Fatalf("duration series=%d want 1", got)
	}
}

func TestMetrics_SettledSkipsDurationAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.TaskSettled("failed", "unresolved_goal")

	if got := testutil.ToFloat64(m.tasksFinished.WithLabelValues("failed", "unresolved_goal")); got != 1 {
		t.Fatalf("tasks_finished=%v want 1", got)
	}
	if got := testutil.ToFloat64(m.tasksActive); got != 0 {
		t.Fatalf("tasks_active=%v want 0", got)
	}
	if got := testutil.CollectAndCount(m.taskDuration); got != 1 {
		t.Fatalf("duration series=%d want 1", got)
	}
}

func TestMetrics_SharedRegistryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := MustNewMetrics(reg)
	b := MustNewMetrics(reg)
	a.TargetAbandoned()
	b.TargetAbandoned()
	if got := testutil.ToFloat64(b.targetsAbandoned); got != 2 {
		t.Fatalf("expected shared counter, got %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.TaskStarted()
	m.BlockMined("STONE")
	m.TaskFinished("failed", "no_target", 10)
	m.TaskSettled("failed", "unresolved_goal")
}
