package discover

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRankDuration    = "discover_rank_duration_seconds"
	MetricResults         = "discover_results_total"
	MetricIndexCache      = "discover_index_cache_total"
	MetricFeedConnections = "discover_feed_connections"
	MetricFeedPushes      = "discover_feed_pushes_total"
)

// Operation label values.
const (
	OpRecommend = "recommend"
	OpSearch    = "search"
)

// Metrics contains Prometheus metrics for ranking calls and the live feed.
// All operations are thread-safe.
type Metrics struct {
	rankDuration    *prometheus.HistogramVec
	results         *prometheus.CounterVec
	indexCache      *prometheus.CounterVec
	feedConnections prometheus.Gauge
	feedPushes      *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rankDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRankDuration,
			Help:    "Time spent loading and ranking candidate events, in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricResults,
			Help: "Total number of ranked events returned",
		}, []string{"op"}),
		indexCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricIndexCache,
			Help: "Corpus index lookups by where the snapshot was found (memory, store, built)",
		}, []string{"result"}),
		feedConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricFeedConnections,
			Help: "Number of open recommendation feed WebSocket connections",
		}),
		feedPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricFeedPushes,
			Help: "Total number of feed messages sent, by outcome (ok, error)",
		}, []string{"outcome"}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.rankDuration,
		m.results,
		m.indexCache,
		m.feedConnections,
		m.feedPushes,
	}
}

// ObserveRank records one ranking call.
func (m *Metrics) ObserveRank(op string, seconds float64, results int) {
	if m == nil {
		return
	}
	m.rankDuration.WithLabelValues(op).Observe(seconds)
	m.results.WithLabelValues(op).Add(float64(results))
}

// IncIndexCache counts a corpus index lookup.
func (m *Metrics) IncIndexCache(result string) {
	if m == nil {
		return
	}
	m.indexCache.WithLabelValues(result).Inc()
}

// IncFeedConnections counts an opened feed connection.
func (m *Metrics) IncFeedConnections() {
	if m == nil {
		return
	}
	m.feedConnections.Inc()
}

// DecFeedConnections counts a closed feed connection.
func (m *Metrics) DecFeedConnections() {
	if m == nil {
		return
	}
	m.feedConnections.Dec()
}

// IncFeedPushes counts a feed message by outcome.
func (m *Metrics) IncFeedPushes(outcome string) {
	if m == nil {
		return
	}
	m.feedPushes.WithLabelValues(outcome).Inc()
}
