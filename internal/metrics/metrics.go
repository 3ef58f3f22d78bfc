// Package metrics exposes Prometheus instrumentation. A nil *Collector is
// valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive prometheus.Gauge
	Expansions     *prometheus.CounterVec
	NodesAdded     prometheus.Counter
	Ticks          prometheus.Counter

	// Remote metrics
	RemoteRequests *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
	BreakerState   *prometheus.GaugeVec

	// Catalog metrics
	CatalogArticles prometheus.Gauge
	CatalogReloads  *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of running exploration sessions",
		}),
		Expansions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Resolved expansions by outcome",
		}, []string{"outcome"}),
		NodesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_added_total",
			Help:      "Nodes merged into session graphs",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_ticks_total",
			Help:      "Layout simulation steps across all sessions",
		}),
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Requests to the related-articles service",
		}, []string{"op", "outcome"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Related-articles service latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remote_breaker_open",
			Help:      "1 when the circuit breaker is open, 0.5 half-open, 0 closed",
		}, []string{"name"}),
		CatalogArticles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_articles",
			Help:      "Articles currently loaded in the catalog",
		}),
		CatalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog reloads by result",
		}, []string{"result"}),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.SessionsActive,
		c.Expansions,
		c.NodesAdded,
		c.Ticks,
		c.RemoteRequests,
		c.RemoteDuration,
		c.BreakerState,
		c.CatalogArticles,
		c.CatalogReloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SessionOpened increments the active session gauge
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.SessionsActive.Inc()
}

// SessionClosed decrements the active session gauge
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.SessionsActive.Dec()
}

// Expansion records a resolved expansion
func (c *Collector) Expansion(outcome string, added int) {
	if c == nil {
		return
	}
	c.Expansions.WithLabelValues(outcome).Inc()
	c.NodesAdded.Add(float64(added))
}

// Tick records one layout step
func (c *Collector) Tick() {
	if c == nil {
		return
	}
	c.Ticks.Inc()
}

// RemoteRequest records one call to the related-articles service
func (c *Collector) RemoteRequest(op, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RemoteRequests.WithLabelValues(op, outcome).Inc()
	c.RemoteDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// BreakerStateChanged records the new state of a circuit breaker
func (c *Collector) BreakerStateChanged(name, state string) {
	if c == nil {
		return
	}
	v := 0.0
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 0.5
	}
	c.BreakerState.WithLabelValues(name).Set(v)
}

// CatalogLoaded records a catalog (re)load
func (c *Collector) CatalogLoaded(articles int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.CatalogReloads.WithLabelValues("error").Inc()
		return
	}
	c.CatalogReloads.WithLabelValues("ok").Inc()
	c.CatalogArticles.Set(float64(articles))
}
