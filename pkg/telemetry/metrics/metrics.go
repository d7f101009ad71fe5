// Package metrics exposes Prometheus metrics for the failover proxy.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ProxyMetrics tracks request, attempt, and failover counts.
//
// Metrics (with the configured namespace prefix):
//   - requests_total: completed client requests by served_by pool and status class
//   - attempts_total: backend attempts by backend and outcome
//   - failovers_total: requests that needed more than one attempt
//   - request_duration_seconds: end-to-end request duration histogram
//   - backend_suspended: per-backend suspension gauge (1 = suspended)
type ProxyMetrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	attemptsTotal    *prometheus.CounterVec
	failoversTotal   prometheus.Counter
	requestDuration  prometheus.Histogram
	backendSuspended *prometheus.GaugeVec
}

// New creates and registers the proxy metrics under the given namespace.
func New(namespace string) *ProxyMetrics {
	registry := prometheus.NewRegistry()

	m := &ProxyMetrics{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of completed client requests",
			},
			[]string{"served_by", "status"},
		),

		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of backend attempts",
			},
			[]string{"backend", "outcome"},
		),

		failoversTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failovers_total",
				Help:      "Total number of requests that required more than one attempt",
			},
		),

		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "End-to-end client request duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
		),

		backendSuspended: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "backend_suspended",
				Help:      "Whether a backend is currently suspended (1) or eligible (0)",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.attemptsTotal,
		m.failoversTotal,
		m.requestDuration,
		m.backendSuspended,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRequest records one completed client request.
func (m *ProxyMetrics) ObserveRequest(servedBy string, status int, attempts int, duration time.Duration) {
	if servedBy == "" {
		servedBy = "none"
	}
	m.requestsTotal.WithLabelValues(servedBy, strconv.Itoa(status)).Inc()
	m.requestDuration.Observe(duration.Seconds())
	if attempts > 1 {
		m.failoversTotal.Inc()
	}
}

// ObserveAttempt records one backend attempt.
func (m *ProxyMetrics) ObserveAttempt(backend, outcome string) {
	m.attemptsTotal.WithLabelValues(backend, outcome).Inc()
}

// SetSuspended updates the suspension gauge for a backend.
func (m *ProxyMetrics) SetSuspended(backend string, suspended bool) {
	v := 0.0
	if suspended {
		v = 1.0
	}
	m.backendSuspended.WithLabelValues(backend).Set(v)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *ProxyMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
