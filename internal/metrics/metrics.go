// Package metrics exposes Prometheus collectors for the relay. All methods
// are no-ops on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	vendorRequestsTotal *prometheus.CounterVec
	vendorDuration      *prometheus.HistogramVec
	indexFailures       *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		vendorRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vendor_requests_total",
				Help: "Total number of Breeze API calls",
			},
			[]string{"operation", "outcome"},
		),
		vendorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vendor_request_duration_seconds",
				Help:    "Breeze API call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"operation"},
		),
		indexFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_quote_failures_total",
				Help: "Index quotes omitted from a response",
			},
			[]string{"symbol"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.vendorRequestsTotal,
		m.vendorDuration,
		m.indexFailures,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{DisableCompression: true})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveVendor records one Breeze call. outcome is "ok", "empty" or "error".
func (m *Metrics) ObserveVendor(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.vendorRequestsTotal.WithLabelValues(operation, outcome).Inc()
	m.vendorDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// IndexFailed counts an index quote left out of a response.
func (m *Metrics) IndexFailed(symbol string) {
	if m == nil {
		return
	}
	m.indexFailures.WithLabelValues(symbol).Inc()
}
