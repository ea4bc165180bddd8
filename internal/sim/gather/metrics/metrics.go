package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics reports gathering activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	tasksActive      prometheus.Gauge
	tasksFinished    *prometheus.CounterVec
	taskDuration     prometheus.Histogram
	blocksMined      *prometheus.CounterVec
	targetsAbandoned prometheus.Counter
	toolProvisions   *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg (the default registerer if
// nil). Collectors already registered under the same name are reused, so
// several runners can share one registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		tasksActive: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "voxelgather",
			Subsystem: "gather",
			Name:      "tasks_active",
			Help:      "Extraction tasks that have not reached a terminal state.",
		})),
		tasksFinished: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelgather",
			Subsystem: "gather",
			Name:      "tasks_finished_total",
			Help:      "Extraction tasks that reached a terminal state.",
		}, []string{"outcome", "reason"})),
		taskDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voxelgather",
			Subsystem: "gather",
			Name:      "task_duration_ticks",
			Help:      "Ticks from task start to its terminal state.",
			Buckets:   prometheus.ExponentialBuckets(20, 2, 10),
		})),
		blocksMined: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelgather",
			Subsystem: "gather",
			Name:      "blocks_mined_total",
			Help:      "Cells extracted by gathering tasks.",
		}, []string{"block"})),
		targetsAbandoned: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voxelgather",
			Subsystem: "gather",
			Name:      "targets_abandoned_total",
			Help:      "Targets given up after the stuck timeout.",
		})),
		toolProvisions: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voxelgather",
			Subsystem: "gather",
			Name:      "tool_provisions_total",
			Help:      "Tool provisioning attempts by outcome source.",
		}, []string{"source", "ready"})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.tasksActive.Inc()
}

// TaskFinished records a terminal task. reason is a short failure class
// ("" for completed tasks).
func (m *Metrics) TaskFinished(outcome, reason string, ticks uint64) {
	if m == nil {
		return
	}
	m.tasksActive.Dec()
	m.tasksFinished.WithLabelValues(outcome, reason).Inc()
	m.taskDuration.Observe(float64(ticks))
}

// TaskSettled records a task that ended without ever starting, such as one
// whose goal did not resolve. Nothing is observed for duration.
func (m *Metrics) TaskSettled(outcome, reason string) {
	if m == nil {
		return
	}
	m.tasksFinished.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) BlockMined(block string) {
	if m == nil {
		return
	}
	m.blocksMined.WithLabelValues(block).Inc()
}

func (m *Metrics) TargetAbandoned() {
	if m == nil {
		return
	}
	m.targetsAbandoned.Inc()
}

func (m *Metrics) ToolProvisioned(source string, ready bool) {
	if m == nil {
		return
	}
	r := "false"
	if ready {
		r = "true"
	}
	m.toolProvisions.WithLabelValues(source, r).Inc()
}
