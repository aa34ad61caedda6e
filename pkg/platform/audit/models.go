// Package audit emits operational audit events for engine operations. Events
// are fail-open: losing one must never fail the request that produced it.
package audit

import "time"

// Action names an auditable engine operation.
type Action string

const (
	ActionProfileViewed       Action = "profile_viewed"
	ActionProfileUpdated      Action = "profile_updated"
	ActionIdentityChecked     Action = "identity_checked"
	ActionOnboardingCompleted Action = "onboarding_completed"
	// ActionMetadataDegraded records a provider metadata write that landed in
	// the process-local cache instead of the provider.
	ActionMetadataDegraded Action = "metadata_degraded"
	// ActionIdentityScanFallback records an email lookup answered by the
	// bounded listing scan after both email endpoints came up empty.
	ActionIdentityScanFallback Action = "identity_scan_fallback"
)

// Event is one auditable occurrence. Keep it transport-agnostic so sinks can
// fan out without caring where it came from.
type Event struct {
	Action    Action         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	SubjectID string         `json:"subjectId,omitempty"`
	ContactID string         `json:"contactId,omitempty"`
	Email     string         `json:"email,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	Device    string         `json:"device,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}
