package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay gateway.
type Metrics struct {
	RequestTotal       *prometheus.CounterVec
	CacheLookupTotal   *prometheus.CounterVec
	CoalescedTotal     prometheus.Counter
	RateLimitedTotal   prometheus.Counter
	UpstreamDurationMs *prometheus.HistogramVec
	UpstreamErrorTotal *prometheus.CounterVec
	CacheEntries       prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics on the default
// registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_request_total",
			Help: "Chat requests processed, labeled by outcome code.",
		}, []string{"code"}),

		CacheLookupTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_cache_lookup_total",
			Help: "Result cache lookups by result.",
		}, []string{"result"}),

		CoalescedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_coalesced_total",
			Help: "Requests served by joining another caller's in-flight upstream call.",
		}),

		RateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Requests denied by the sliding-window rate limiter.",
		}),

		UpstreamDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_upstream_duration_ms",
			Help:    "Upstream completion call duration in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"model"}),

		UpstreamErrorTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_upstream_error_total",
			Help: "Upstream failures by classification.",
		}, []string{"kind"}),

		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "relay_cache_entries",
			Help: "Entries currently held by the result cache.",
		}),
	}
}

// RecordRequest counts one completed request by outcome code ("OK" or an
// error code such as "RATE_LIMITED").
func (m *Metrics) RecordRequest(code string) {
	m.RequestTotal.WithLabelValues(code).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheLookupTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookupTotal.WithLabelValues("miss").Inc()
}

// RecordUpstream records one upstream call's duration and, on failure, its
// error kind.
func (m *Metrics) RecordUpstream(model string, durationMs float64, errKind string) {
	m.UpstreamDurationMs.WithLabelValues(model).Observe(durationMs)
	if errKind != "" {
		m.UpstreamErrorTotal.WithLabelValues(errKind).Inc()
	}
}
