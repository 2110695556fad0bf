package metrics_test

import (
	"testing"

	"github.com/meterly/subgate/adapters/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
	if m.ProviderRequests == nil || m.CacheHits == nil || m.GateOutcomes == nil {
		t.Fatal("expected all collectors to be initialised")
	}
}

func TestCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ProviderRequests.WithLabelValues("customers", "200").Inc()
	m.ProviderRequests.WithLabelValues("customers", "200").Inc()
	m.CacheHits.Inc()
	m.GateOutcomes.WithLabelValues("no_subscription").Inc()

	if got := testutil.ToFloat64(m.ProviderRequests.WithLabelValues("customers", "200")); got != 2 {
		t.Errorf("provider_requests_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheHits); got != 1 {
		t.Errorf("cache_hits_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.GateOutcomes.WithLabelValues("no_subscription")); got != 1 {
		t.Errorf("gate_outcomes_total = %v, want 1", got)
	}
}
