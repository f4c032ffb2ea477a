// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the dashboard service.
type Metrics struct {
	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	// Cache metrics
	CacheReads *prometheus.CounterVec

	// Aggregation metrics
	CyclesTotal     *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	LastCycleUnix   prometheus.Gauge
	SyntheticsTotal prometheus.Counter

	// Broadcast metrics
	WSClients prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all metrics registered on reg.
// A nil registerer uses the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "smartmoney"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total upstream provider requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_latency_seconds",
			Help:      "Upstream provider request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		CacheReads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "reads_total",
			Help:      "Cache reads by key and freshness outcome",
		}, []string{"key", "outcome"}),

		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "cycles_total",
			Help:      "Aggregation cycles by outcome (fresh, partial, cached, stale, synthetic)",
		}, []string{"outcome"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "cycle_duration_seconds",
			Help:      "Full aggregation cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		LastCycleUnix: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "last_cycle_timestamp",
			Help:      "Unix timestamp of the last completed aggregation cycle",
		}),
		SyntheticsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "synthetic_results_total",
			Help:      "Total synthetic placeholder results served",
		}),

		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "ws_clients",
			Help:      "Currently connected websocket clients",
		}),
	}
}

// RecordProviderRequest records one upstream call.
func (m *Metrics) RecordProviderRequest(provider, outcome string, seconds float64) {
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordCacheRead records one cache read outcome.
func (m *Metrics) RecordCacheRead(key, outcome string) {
	m.CacheReads.WithLabelValues(key, outcome).Inc()
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
