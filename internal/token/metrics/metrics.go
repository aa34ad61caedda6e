package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the token cache.
type Metrics struct {
	CacheHits       prometheus.Counter
	Refreshes       prometheus.Counter
	RefreshFailures prometheus.Counter
	RefreshShared   prometheus.Counter
}

// New creates a Metrics instance with all token cache metrics registered.
func New() *Metrics {
	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_token_cache_hits_total",
			Help: "Token requests served from the in-process cache",
		}),
		Refreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_token_refreshes_total",
			Help: "Client-credentials exchanges performed against the provider",
		}),
		RefreshFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_token_refresh_failures_total",
			Help: "Credential exchanges that exhausted their retries",
		}),
		RefreshShared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_token_refresh_shared_total",
			Help: "Token requests that joined an in-flight refresh instead of issuing their own",
		}),
	}
}

// IncCacheHit records a cache hit.
func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// IncRefresh records a credential exchange.
func (m *Metrics) IncRefresh() {
	if m != nil {
		m.Refreshes.Inc()
	}
}

// IncRefreshFailure records a failed refresh.
func (m *Metrics) IncRefreshFailure() {
	if m != nil {
		m.RefreshFailures.Inc()
	}
}

// IncRefreshShared records a request that awaited another caller's refresh.
func (m *Metrics) IncRefreshShared() {
	if m != nil {
		m.RefreshShared.Inc()
	}
}
