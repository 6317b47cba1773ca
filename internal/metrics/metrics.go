// Package metrics provides the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the module's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Estimates counts swap estimates by result status
	Estimates *prometheus.CounterVec
	// EstimateCacheHits counts estimates served from the estimate cache
	EstimateCacheHits prometheus.Counter
	// Lookups counts pair resolutions by outcome (exists, not_exists, invalid, error)
	Lookups *prometheus.CounterVec
	// TokenListFallbacks counts token list requests answered with the built-in list
	TokenListFallbacks prometheus.Counter
	// Transactions counts journal status transitions by tx type and status
	Transactions *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Estimates: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dex_estimates_total",
				Help: "Swap estimates by result status",
			},
			[]string{"status"},
		),
		EstimateCacheHits: f.NewCounter(
			prometheus.CounterOpts{
				Name: "dex_estimate_cache_hits_total",
				Help: "Swap estimates served from cache",
			},
		),
		Lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dex_pair_lookups_total",
				Help: "Pair resolutions by outcome",
			},
			[]string{"outcome"},
		),
		TokenListFallbacks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "dex_token_list_fallbacks_total",
				Help: "Token list requests served from the built-in list",
			},
		),
		Transactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dex_journal_transactions_total",
				Help: "Journal entries by transaction type and status",
			},
			[]string{"type", "status"},
		),
	}
}

func (m *Metrics) ObserveEstimate(status string) {
	if m == nil {
		return
	}
	m.Estimates.WithLabelValues(status).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.EstimateCacheHits.Inc()
}

func (m *Metrics) ObserveLookup(outcome string) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) TokenListFallback() {
	if m == nil {
		return
	}
	m.TokenListFallbacks.Inc()
}

func (m *Metrics) ObserveTransaction(txType, status string) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(txType, status).Inc()
}
