package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for sync workflows and the remote
// gateway.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	paths    *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the sync metrics against the provided registerer. When
// the registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single workflow run.
type Tracker struct {
	metrics  *Metrics
	workflow string
	start    time.Time
}

// Track spawns a tracker for the given workflow name.
func (m *Metrics) Track(workflow string) *Tracker {
	if m == nil {
		return &Tracker{workflow: workflow, start: time.Now()}
	}
	return &Tracker{metrics: m, workflow: workflow, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.workflow == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.workflow).Inc()
	}
	t.metrics.runs.WithLabelValues(t.workflow, status).Inc()
	t.metrics.duration.WithLabelValues(t.workflow).Observe(time.Since(t.start).Seconds())
	return err
}

// AddOutcomes increments the per-record outcome counter (added, updated,
// duplicate, errored, ...) for a workflow.
func (m *Metrics) AddOutcomes(workflow, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.outcomes.WithLabelValues(workflow, outcome).Add(float64(count))
}

// ObservePath counts the outcome of one gateway transport path attempt.
func (m *Metrics) ObservePath(path, outcome string) {
	if m == nil {
		return
	}
	m.paths.WithLabelValues(path, outcome).Inc()
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksync_sync_runs_total",
		Help: "Total sync workflow executions partitioned by workflow and status.",
	}, []string{"workflow", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksync_sync_failures_total",
		Help: "Total failed sync workflow executions.",
	}, []string{"workflow"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stocksync_sync_duration_seconds",
		Help:    "Duration in seconds of sync workflow executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"workflow"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksync_sync_records_total",
		Help: "Records handled by sync workflows grouped by outcome.",
	}, []string{"workflow", "outcome"})
	paths := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksync_gateway_path_total",
		Help: "Remote gateway transport path attempts grouped by outcome.",
	}, []string{"path", "outcome"})
	registerer.MustRegister(runs, failures, duration, outcomes, paths)
	return &Metrics{runs: runs, failures: failures, duration: duration, outcomes: outcomes, paths: paths}
}
