package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the metadata synchronizer.
type Metrics struct {
	Persists        prometheus.Counter
	PersistFailures prometheus.Counter
	FallbackReads   prometheus.Counter
	BreakerState    prometheus.Gauge
}

// New creates a Metrics instance with all synchronizer metrics registered.
func New() *Metrics {
	return &Metrics{
		Persists: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_metasync_persists_total",
			Help: "Metadata patches persisted to the identity provider",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_metasync_persist_failures_total",
			Help: "Metadata patches that exhausted their retries and fell back to the degraded cache",
		}),
		FallbackReads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_metasync_fallback_reads_total",
			Help: "Metadata reads served from the degraded cache instead of the provider",
		}),
		BreakerState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "memberhub_metasync_breaker_open",
			Help: "1 while the provider circuit breaker is open, 0 while closed",
		}),
	}
}

// IncPersist records a successful provider write.
func (m *Metrics) IncPersist() {
	if m != nil {
		m.Persists.Inc()
	}
}

// IncPersistFailure records a write that degraded to the fallback cache.
func (m *Metrics) IncPersistFailure() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

// IncFallbackRead records a read served from the degraded cache.
func (m *Metrics) IncFallbackRead() {
	if m != nil {
		m.FallbackReads.Inc()
	}
}

// SetBreakerOpen records the breaker state.
func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}
