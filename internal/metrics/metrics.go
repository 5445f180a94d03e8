// Package metrics exposes Prometheus collectors for the settlement service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "settlement"

// Metrics holds every collector the service records to.
type Metrics struct {
	gatherer prometheus.Gatherer

	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	ConfigLoadFailures *prometheus.CounterVec
	Degradations       *prometheus.CounterVec
	TierFallbacks      *prometheus.CounterVec
	Calculations       *prometheus.CounterVec
	CalculationLatency *prometheus.HistogramVec
	Transfers          *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_cache_hits_total",
			Help:      "Pricing configuration cache hits.",
		}, []string{"cache"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_cache_misses_total",
			Help:      "Pricing configuration cache misses.",
		}, []string{"cache"}),
		CacheInvalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_cache_invalidations_total",
			Help:      "Explicit pricing configuration cache invalidations.",
		}, []string{"cache"}),
		ConfigLoadFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_load_failures_total",
			Help:      "Failed loads of pricing configuration from the backing store.",
		}, []string{"source"}),
		Degradations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fail_open_degradations_total",
			Help:      "Calculations that substituted zero amounts after a configuration load failure.",
		}, []string{"calculator"}),
		TierFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_fallback_total",
			Help:      "Tiered fee evaluations where no tier matched and the first tier was used.",
		}, []string{"fee_type"}),
		Calculations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Calculations by calculator and outcome.",
		}, []string{"calculator", "outcome"}),
		CalculationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_duration_seconds",
			Help:      "Calculation latency, including configuration loads.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"calculator"}),
		Transfers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfer instructions by payee type and status.",
		}, []string{"payee_type", "status"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// NewForTest returns metrics backed by a private registry.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry())
}

func (m *Metrics) CacheHit(name string)         { m.CacheHits.WithLabelValues(name).Inc() }
func (m *Metrics) CacheMiss(name string)        { m.CacheMisses.WithLabelValues(name).Inc() }
func (m *Metrics) CacheInvalidated(name string) { m.CacheInvalidations.WithLabelValues(name).Inc() }

// ObserveCalculation records one calculation outcome and its latency.
func (m *Metrics) ObserveCalculation(calculator string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Calculations.WithLabelValues(calculator, outcome).Inc()
	m.CalculationLatency.WithLabelValues(calculator).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency per route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
