package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEstimate("ok")
	m.ObserveEstimate("ok")
	m.ObserveEstimate("no_liquidity")
	m.CacheHit()
	m.ObserveLookup("exists")
	m.TokenListFallback()
	m.ObserveTransaction("swap", "pending")

	if got := testutil.ToFloat64(m.Estimates.WithLabelValues("ok")); got != 2 {
		t.Fatalf("estimates{ok}: got %v want 2", got)
	}
	if got := testutil.ToFloat64(m.EstimateCacheHits); got != 1 {
		t.Fatalf("cache hits: got %v want 1", got)
	}
	if n := testutil.CollectAndCount(m.Lookups); n != 1 {
		t.Fatalf("lookup series: got %d want 1", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveEstimate("ok")
	m.CacheHit()
	m.ObserveLookup("error")
	m.TokenListFallback()
	m.ObserveTransaction("swap", "failed")
}
