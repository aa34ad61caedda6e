package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for identity lookups.
type Metrics struct {
	StrategyHits   *prometheus.CounterVec
	StrategyErrors *prometheus.CounterVec
	NotFound       prometheus.Counter
}

// New creates a Metrics instance with all lookup metrics registered.
func New() *Metrics {
	return &Metrics{
		StrategyHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_identity_strategy_hits_total",
			Help: "Lookups resolved per strategy",
		}, []string{"strategy"}), // "search_index", "by_email_endpoint", "listing_scan"

		StrategyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_identity_strategy_errors_total",
			Help: "Strategy executions that errored and were skipped",
		}, []string{"strategy"}),

		NotFound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_identity_not_found_total",
			Help: "Lookups that exhausted every strategy without a match",
		}),
	}
}

// IncStrategyHit records a lookup resolved by the named strategy.
func (m *Metrics) IncStrategyHit(strategy string) {
	if m != nil {
		m.StrategyHits.WithLabelValues(strategy).Inc()
	}
}

// IncStrategyError records a strategy execution failure.
func (m *Metrics) IncStrategyError(strategy string) {
	if m != nil {
		m.StrategyErrors.WithLabelValues(strategy).Inc()
	}
}

// IncNotFound records a fully exhausted lookup.
func (m *Metrics) IncNotFound() {
	if m != nil {
		m.NotFound.Inc()
	}
}
