// Package monitoring exposes Prometheus metrics for the signing backend.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Each Metrics owns its registry so
// tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Domain metrics
	SignaturesIssued prometheus.Counter
	OAuthRedirects   prometheus.Counter
	UpstreamErrors   *prometheus.CounterVec

	// Console mirror metrics
	ConsoleClients prometheus.Gauge
}

// NewMetrics creates a metrics collector backed by a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wecom_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wecom_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		SignaturesIssued: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wecom_signatures_issued_total",
				Help: "Total number of JS-SDK configuration signatures issued",
			},
		),
		OAuthRedirects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wecom_oauth_redirects_total",
				Help: "Total number of OAuth callback redirects served",
			},
		),
		UpstreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wecom_upstream_errors_total",
				Help: "Total number of upstream WeCom API failures",
			},
			[]string{"operation"},
		),

		ConsoleClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wecom_console_clients",
				Help: "Number of connected remote console clients",
			},
		),
	}
}

// Handler serves this collector's registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
