package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeError   = "error"
)

// Collector holds the dashboard's Prometheus metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	Projections        *prometheus.CounterVec
	ProjectionDuration prometheus.Histogram
	Refreshes          *prometheus.CounterVec
	DatasetRows        prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewCollector creates and registers every metric under namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Projections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "projections_total",
				Help:      "Total number of view projections by outcome",
			},
			[]string{"outcome"},
		),
		ProjectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "projection_duration_seconds",
				Help:      "Time spent projecting a view",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
		),
		Refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_refresh_total",
				Help:      "Total number of dataset refreshes by outcome",
			},
			[]string{"outcome"},
		),
		DatasetRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dataset_rows",
				Help:      "Number of observations in the current dataset",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		c.Projections,
		c.ProjectionDuration,
		c.Refreshes,
		c.DatasetRows,
		c.HTTPRequests,
		c.HTTPDuration,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveProjection records one projection.
func (c *Collector) ObserveProjection(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Projections.WithLabelValues(outcome).Inc()
	c.ProjectionDuration.Observe(elapsed.Seconds())
}

// ObserveRefresh records one dataset refresh and, on success, its size.
func (c *Collector) ObserveRefresh(outcome string, rows int) {
	if c == nil {
		return
	}
	c.Refreshes.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		c.DatasetRows.Set(float64(rows))
	}
}

// ObserveHTTP records one HTTP request.
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
