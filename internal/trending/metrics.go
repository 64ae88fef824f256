package trending

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricTrendingRunsTotal     = "trending_runs_total"
	MetricTrendingRunsSkipped   = "trending_runs_skipped_total"
	MetricTrendingWindowErrors  = "trending_window_errors_total"
	MetricTrendingRunDuration   = "trending_run_duration_seconds"
	MetricTrendingLastRun       = "trending_last_run_timestamp"
	MetricTrendingSnapshotRows  = "trending_snapshot_rows"
)

// Metrics contains Prometheus metrics for trending recomputation.
// All operations are thread-safe.
type Metrics struct {
	runsTotal    prometheus.Counter
	runsSkipped  prometheus.Counter
	windowErrors *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
	snapshotRows *prometheus.GaugeVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricTrendingRunsTotal,
			Help: "Total number of trending recomputation runs",
		}),
		runsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricTrendingRunsSkipped,
			Help: "Total number of trending runs skipped because one was in flight",
		}),
		windowErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTrendingWindowErrors,
			Help: "Total number of per-window trending calculation errors",
		}, []string{"window"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricTrendingRunDuration,
			Help:    "Histogram of trending run duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricTrendingLastRun,
			Help: "Unix timestamp of the last completed trending run",
		}),
		snapshotRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: MetricTrendingSnapshotRows,
			Help: "Number of rows written in the last snapshot per window",
		}, []string{"window"}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncRuns increments the runs counter.
func (m *Metrics) IncRuns() {
	m.runsTotal.Inc()
}

// IncSkipped increments the skipped-runs counter.
func (m *Metrics) IncSkipped() {
	m.runsSkipped.Inc()
}

// IncWindowErrors increments the error counter for a window.
func (m *Metrics) IncWindowErrors(window string) {
	m.windowErrors.WithLabelValues(window).Inc()
}

// ObserveRunDuration records a run duration sample.
func (m *Metrics) ObserveRunDuration(seconds float64) {
	m.runDuration.Observe(seconds)
}

// SetLastRunTimestamp sets the last-run timestamp gauge.
func (m *Metrics) SetLastRunTimestamp(timestamp float64) {
	m.lastRun.Set(timestamp)
}

// SetSnapshotRows sets the snapshot row count gauge for a window.
func (m *Metrics) SetSnapshotRows(window string, count float64) {
	m.snapshotRows.WithLabelValues(window).Set(count)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.runsTotal,
		m.runsSkipped,
		m.windowErrors,
		m.runDuration,
		m.lastRun,
		m.snapshotRows,
	}
}
