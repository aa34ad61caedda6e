package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit publishing.
type Metrics struct {
	Published       prometheus.Counter
	Sampled         prometheus.Counter
	PublishFailures prometheus.Counter
}

// NewMetrics creates a Metrics instance with audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_audit_published_total",
			Help: "Audit events handed to the broker",
		}),
		Sampled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_audit_sampled_total",
			Help: "Audit events dropped by sampling",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "memberhub_audit_publish_failures_total",
			Help: "Audit events the broker rejected or timed out",
		}),
	}
}

// IncPublished records an event handed to the broker.
func (m *Metrics) IncPublished() {
	if m != nil {
		m.Published.Inc()
	}
}

// IncSampled records an event dropped by sampling.
func (m *Metrics) IncSampled() {
	if m != nil {
		m.Sampled.Inc()
	}
}

// IncPublishFailure records a failed publish.
func (m *Metrics) IncPublishFailure() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}
