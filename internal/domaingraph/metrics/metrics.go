package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for domain graph resolution.
type Metrics struct {
	SubFetchFailures *prometheus.CounterVec
	HeuristicMatches prometheus.Counter
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	ResolveLatency   *prometheus.HistogramVec
}

// New creates a Metrics instance with all resolver metrics registered.
func New() *Metrics {
	return &Metrics{
		SubFetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_domaingraph_subfetch_failures_total",
			Help: "Sub-fetches that failed and degraded to nil",
		}, []string{"piece"}), // "education", "institution", "program", "participations", "team", "cohort"

		HeuristicMatches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_domaingraph_institution_heuristic_total",
			Help: "Institutions suggested by email-domain heuristic",
		}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_domaingraph_institution_cache_hits_total",
			Help: "Institution-by-domain lookups served from redis",
		}),

		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_domaingraph_institution_cache_misses_total",
			Help: "Institution-by-domain lookups that fell through to the store",
		}),

		ResolveLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memberhub_domaingraph_resolve_duration_seconds",
			Help:    "Duration of graph resolution by mode",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"mode"}), // "minimal", "full"
	}
}

// IncSubFetchFailure records a degraded sub-fetch.
func (m *Metrics) IncSubFetchFailure(piece string) {
	if m != nil {
		m.SubFetchFailures.WithLabelValues(piece).Inc()
	}
}

// IncHeuristicMatch records an email-domain institution suggestion.
func (m *Metrics) IncHeuristicMatch() {
	if m != nil {
		m.HeuristicMatches.Inc()
	}
}

// IncCacheHit records a redis institution cache hit.
func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// IncCacheMiss records a redis institution cache miss.
func (m *Metrics) IncCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// ObserveResolveLatency records the total resolution duration.
func (m *Metrics) ObserveResolveLatency(mode string, d time.Duration) {
	if m != nil {
		m.ResolveLatency.WithLabelValues(mode).Observe(d.Seconds())
	}
}
