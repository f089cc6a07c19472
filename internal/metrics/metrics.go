// Package metrics holds the Prometheus collectors shared by the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors registered for one process
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	PriorityMoves *prometheus.CounterVec
	Scrapes       *prometheus.CounterVec
	Uploads       *prometheus.CounterVec
	Watchers      prometheus.Gauge
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftlist_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "giftlist_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		PriorityMoves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftlist_priority_moves_total",
			Help: "Priority move requests by direction and outcome.",
		}, []string{"direction", "outcome"}),
		Scrapes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftlist_product_scrapes_total",
			Help: "Product metadata lookups by backend and outcome.",
		}, []string{"backend", "outcome"}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "giftlist_image_uploads_total",
			Help: "Image uploads by outcome.",
		}, []string{"outcome"}),
		Watchers: f.NewGauge(prometheus.GaugeOpts{
			Name: "giftlist_live_watchers",
			Help: "Open live list subscriptions.",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished HTTP request
func (m *Metrics) ObserveRequest(route, code string, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
