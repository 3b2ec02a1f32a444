package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricHTTPRequestDuration   = "http_request_duration_seconds"
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPResponseSizeBytes = "http_response_size_bytes"
	MetricHTTPInFlight          = "http_requests_in_flight"
	MetricAuthFailures          = "http_auth_failures_total"
	MetricRateLimited           = "http_rate_limited_total"
)

// Metrics contains Prometheus metrics for HTTP middleware.
// All operations are thread-safe.
type Metrics struct {
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpResponseSize    *prometheus.HistogramVec
	httpInFlight        prometheus.Gauge
	authFailures        *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	labels := []string{"method", "path", "status"}
	return &Metrics{
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
			},
			labels,
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests",
			},
			labels,
		),
		httpResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPResponseSizeBytes,
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 4, 8), // 100 B to ~1.6 MB
			},
			labels,
		),
		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricHTTPInFlight,
				Help: "Number of HTTP requests currently being served",
			},
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAuthFailures,
				Help: "Total number of rejected bearer tokens by reason (missing, invalid, expired)",
			},
			[]string{"reason"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRateLimited,
				Help: "Total number of requests rejected with 429 by route",
			},
			[]string{"path"},
		),
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

// ObserveHTTPRequest records one completed request.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, duration float64, responseSize int64) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": status,
	}
	m.httpRequestDuration.With(labels).Observe(duration)
	m.httpRequestsTotal.With(labels).Inc()
	m.httpResponseSize.With(labels).Observe(float64(responseSize))
}

// IncAuthFailures counts a rejected request.
func (m *Metrics) IncAuthFailures(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

// IncRateLimited counts a request rejected by the rate limiter.
func (m *Metrics) IncRateLimited(path string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(normalizePath(path)).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.httpRequestDuration,
		m.httpRequestsTotal,
		m.httpResponseSize,
		m.httpInFlight,
		m.authFailures,
		m.rateLimited,
	}
}
