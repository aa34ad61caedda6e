package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the engine facade.
type Metrics struct {
	ProfileRequests *prometheus.CounterVec
	ProfileTimeouts prometheus.Counter
	ClaimsOnly      prometheus.Counter
}

// New creates a Metrics instance with all engine metrics registered.
func New() *Metrics {
	return &Metrics{
		ProfileRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "memberhub_engine_profile_requests_total",
			Help: "Profile requests by aggregation mode",
		}, []string{"mode"}),
		ProfileTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_engine_profile_timeouts_total",
			Help: "Profile requests that hit their deadline and fell back to claims",
		}),
		ClaimsOnly: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_engine_claims_only_total",
			Help: "Profiles served from session claims alone",
		}),
	}
}

// IncProfileRequest records a profile request in the given mode.
func (m *Metrics) IncProfileRequest(mode string) {
	if m != nil {
		m.ProfileRequests.WithLabelValues(mode).Inc()
	}
}

// IncProfileTimeout records a deadline-expired profile request.
func (m *Metrics) IncProfileTimeout() {
	if m != nil {
		m.ProfileTimeouts.Inc()
	}
}

// IncClaimsOnly records a claims-only fallback.
func (m *Metrics) IncClaimsOnly() {
	if m != nil {
		m.ClaimsOnly.Inc()
	}
}
