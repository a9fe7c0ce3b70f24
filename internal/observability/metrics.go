package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks the counters/gauges an operator would want from a
// running Engine: how many items have started/completed/errored, the
// current progress percentage, and how many items remain in the live
// timeline.
type EngineMetrics struct {
	itemsStarted   *prometheus.CounterVec
	itemsCompleted *prometheus.CounterVec
	itemsErrored   *prometheus.CounterVec
	progress       prometheus.Gauge
	timelineLength prometheus.Gauge
}

// NewEngineMetrics registers a fresh EngineMetrics against the default
// Prometheus registerer.
func NewEngineMetrics() *EngineMetrics {
	return NewEngineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewEngineMetricsWithRegisterer registers against reg, useful for tests
// that want an isolated prometheus.Registry.
func NewEngineMetricsWithRegisterer(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		itemsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_items_started_total",
			Help: "Number of timeline items the engine has started executing.",
		}, []string{"workflow_type"}),
		itemsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_items_completed_total",
			Help: "Number of timeline items that completed successfully.",
		}, []string{"workflow_type"}),
		itemsErrored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_items_errored_total",
			Help: "Number of timeline items that failed.",
		}, []string{"workflow_type"}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workflow_progress_percent",
			Help: "Current progress percentage of the active run.",
		}),
		timelineLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workflow_timeline_length",
			Help: "Current number of items in the live timeline.",
		}),
	}
	reg.MustRegister(m.itemsStarted, m.itemsCompleted, m.itemsErrored, m.progress, m.timelineLength)
	return m
}

func (m *EngineMetrics) RecordItemStarted(workflowType string) {
	if m == nil {
		return
	}
	m.itemsStarted.WithLabelValues(workflowType).Inc()
}

func (m *EngineMetrics) RecordItemCompleted(workflowType string) {
	if m == nil {
		return
	}
	m.itemsCompleted.WithLabelValues(workflowType).Inc()
}

func (m *EngineMetrics) RecordItemErrored(workflowType string) {
	if m == nil {
		return
	}
	m.itemsErrored.WithLabelValues(workflowType).Inc()
}

func (m *EngineMetrics) SetProgress(percent float64) {
	if m == nil {
		return
	}
	m.progress.Set(percent)
}

func (m *EngineMetrics) SetTimelineLength(n int) {
	if m == nil {
		return
	}
	m.timelineLength.Set(float64(n))
}
