// Package metrics provides Prometheus metrics collection for subgate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for subgate.
type Collector struct {
	// Provider metrics
	ProviderRequests *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Gate metrics
	GateOutcomes *prometheus.CounterVec

	// Usage reporting metrics
	UsageReports        *prometheus.CounterVec
	UsageReportsDropped prometheus.Counter

	// Document metrics
	DocumentsPersisted prometheus.Counter
	DocumentsFailed    prometheus.Counter
}

// New creates a new metrics collector registered on the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ProviderRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "provider_requests_total",
				Help:      "Total number of billing provider API calls",
			},
			[]string{"endpoint", "status"},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "subscription_cache_hits_total",
				Help:      "Subscription cache hits",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "subscription_cache_misses_total",
				Help:      "Subscription cache misses (including expired entries)",
			},
		),
		GateOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "gate_outcomes_total",
				Help:      "Subscription gate resolutions by outcome kind",
			},
			[]string{"kind"},
		),
		UsageReports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "usage_reports_total",
				Help:      "Metered usage reports delivered to the provider",
			},
			[]string{"status"},
		),
		UsageReportsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "usage_reports_dropped_total",
				Help:      "Usage reports dropped because the queue was full",
			},
		),
		DocumentsPersisted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "documents_persisted_total",
				Help:      "Generated documents persisted after stream completion",
			},
		),
		DocumentsFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "subgate",
				Name:      "documents_failed_total",
				Help:      "Generated documents that failed to parse or persist",
			},
		),
	}
}
