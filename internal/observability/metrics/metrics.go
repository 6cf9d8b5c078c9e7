package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level prometheus instruments.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	refreshRuns      *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	externalCalls    *prometheus.CounterVec
	recordsExtracted prometheus.Counter
}

// New registers the instruments on the default registry.
func New() *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costlens_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "costlens_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		refreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costlens_refresh_runs_total",
			Help: "Reservation refresh runs by outcome.",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "costlens_refresh_duration_seconds",
			Help:    "Wall-clock duration of a full refresh.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		externalCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costlens_external_calls_total",
			Help: "External billing/reservation API calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		recordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "costlens_cost_records_extracted_total",
			Help: "Cost records extracted from billing export files.",
		}),
	}

	prometheus.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.refreshRuns,
		m.refreshDuration,
		m.externalCalls,
		m.recordsExtracted,
	)
	return m
}

func (m *Metrics) ObserveRefresh(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.refreshRuns.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncExternalCall(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.externalCalls.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) AddExtractedRecords(n int) {
	if m == nil {
		return
	}
	m.recordsExtracted.Add(float64(n))
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
