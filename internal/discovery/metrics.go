package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricDiscoveryRequestsTotal  = "discovery_requests_total"
	MetricDiscoveryNoCandidates   = "discovery_no_candidates_total"
	MetricDiscoveryTelemetryDrops = "discovery_telemetry_drops_total"
	MetricDiscoveryDuration       = "discovery_duration_seconds"
	MetricDiscoveryScore          = "discovery_score"
)

// Metrics contains Prometheus metrics for the discovery ranking path.
// All operations are thread-safe.
type Metrics struct {
	requestsTotal  prometheus.Counter
	noCandidates   prometheus.Counter
	telemetryDrops prometheus.Counter
	duration       prometheus.Histogram
	score          prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDiscoveryRequestsTotal,
			Help: "Total number of discovery ranking requests",
		}),
		noCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDiscoveryNoCandidates,
			Help: "Total number of ranking requests that found no candidates",
		}),
		telemetryDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricDiscoveryTelemetryDrops,
			Help: "Total number of telemetry events dropped due to recording failures",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricDiscoveryDuration,
			Help:    "Histogram of discovery ranking duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		score: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricDiscoveryScore,
			Help:    "Distribution of final discovery scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
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

// IncRequests increments the requests counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncNoCandidates increments the no-candidates counter.
func (m *Metrics) IncNoCandidates() {
	m.noCandidates.Inc()
}

// IncTelemetryDrops increments the dropped-telemetry counter.
func (m *Metrics) IncTelemetryDrops() {
	m.telemetryDrops.Inc()
}

// ObserveDuration records a ranking duration sample.
func (m *Metrics) ObserveDuration(seconds float64) {
	m.duration.Observe(seconds)
}

// ObserveScore records a final score sample.
func (m *Metrics) ObserveScore(score float64) {
	m.score.Observe(score)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestsTotal,
		m.noCandidates,
		m.telemetryDrops,
		m.duration,
		m.score,
	}
}
