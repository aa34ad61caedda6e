// Package engine is the facade callers use: profile reads with bounded
// deadlines, profile writes fanned out to the record store and the provider,
// and identity existence checks. Handlers stay thin; all policy lives here.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"memberhub/internal/domaingraph"
	"memberhub/internal/engine/metrics"
	"memberhub/internal/identity"
	"memberhub/internal/metasync"
	"memberhub/internal/profile"
	"memberhub/internal/provider"
	"memberhub/internal/recordstore"
	"memberhub/pkg/email"
	"memberhub/pkg/platform/audit"
	"memberhub/pkg/platform/sentinel"
	"memberhub/pkg/requestcontext"
)

const (
	// DefaultMinimalTimeout bounds fast-path onboarding checks.
	DefaultMinimalTimeout = 3 * time.Second
	// DefaultFullTimeout bounds complete profile aggregation.
	DefaultFullTimeout = 9 * time.Second
)

// GetProfileOptions selects the aggregation depth for GetProfile.
type GetProfileOptions struct {
	Minimal bool
}

// UpdateResult reports a profile update. Persisted mirrors whether the
// provider metadata write landed or lives in the degraded cache for now.
type UpdateResult struct {
	Success   bool   `json:"success"`
	ContactID string `json:"contactId"`
	Persisted bool   `json:"persisted"`
}

// IdentityCheck reports where an email is known.
type IdentityCheck struct {
	ExistsInProvider    bool   `json:"existsInProvider"`
	ExistsInDomainStore bool   `json:"existsInDomainStore"`
	DomainRecordID      string `json:"domainRecordId,omitempty"`
}

// OnboardingResult reports an onboarding-completed write.
type OnboardingResult struct {
	Success   bool `json:"success"`
	Persisted bool `json:"persisted"`
}

// Engine wires the lookup, resolver, aggregator and synchronizer behind one
// surface. All shared mutable state lives in the injected collaborators.
type Engine struct {
	lookup     *identity.Lookup
	resolver   *domaingraph.Resolver
	aggregator *profile.Aggregator
	syncer     *metasync.Synchronizer
	store      recordstore.Store

	minimalTimeout time.Duration
	fullTimeout    time.Duration

	publisher audit.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the Engine.
type Option func(*Engine)

// WithLogger sets a logger for degraded operations.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithAuditPublisher sets the audit sink.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithTimeouts overrides the aggregation deadlines.
func WithTimeouts(minimal, full time.Duration) Option {
	return func(e *Engine) {
		if minimal > 0 {
			e.minimalTimeout = minimal
		}
		if full > 0 {
			e.fullTimeout = full
		}
	}
}

// New creates an Engine. Every collaborator is required.
func New(lookup *identity.Lookup, resolver *domaingraph.Resolver, aggregator *profile.Aggregator, syncer *metasync.Synchronizer, store recordstore.Store, opts ...Option) (*Engine, error) {
	if lookup == nil {
		return nil, fmt.Errorf("identity lookup is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("domain graph resolver is required")
	}
	if aggregator == nil {
		return nil, fmt.Errorf("profile aggregator is required")
	}
	if syncer == nil {
		return nil, fmt.Errorf("metadata synchronizer is required")
	}
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	e := &Engine{
		lookup:         lookup,
		resolver:       resolver,
		aggregator:     aggregator,
		syncer:         syncer,
		store:          store,
		minimalTimeout: DefaultMinimalTimeout,
		fullTimeout:    DefaultFullTimeout,
		publisher:      audit.NopPublisher{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// GetProfile aggregates the caller's profile. It never fails: resolution
// errors and deadline expiry both degrade to a claims-only profile. The
// deadline races the aggregation rather than cancelling it; a late result is
// simply discarded.
func (e *Engine) GetProfile(ctx context.Context, session provider.SessionIdentity, opts GetProfileOptions) profile.Profile {
	mode := profile.ModeFull
	deadline := e.fullTimeout
	if opts.Minimal {
		mode = profile.ModeMinimal
		deadline = e.minimalTimeout
	}
	e.metrics.IncProfileRequest(string(mode))

	// Pending metadata writes in this process must be visible to reads.
	session.Metadata = overlay(session.Metadata, e.syncer.CachedMetadata(session.SubjectID))

	done := make(chan profile.Profile, 1)
	go func() {
		done <- e.aggregate(ctx, session, mode)
	}()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case p := <-done:
		e.audit(ctx, audit.Event{
			Action:    audit.ActionProfileViewed,
			SubjectID: session.SubjectID,
			ContactID: p.ContactID,
			Outcome:   "aggregated",
		})
		return p
	case <-timer.C:
		e.metrics.IncProfileTimeout()
	case <-ctx.Done():
	}

	e.metrics.IncClaimsOnly()
	if e.logger != nil {
		e.logger.WarnContext(ctx, "profile aggregation degraded to claims",
			"subject_id", session.SubjectID,
			"mode", mode,
			"error", sentinel.ErrAggregateTimeout,
		)
	}
	e.audit(ctx, audit.Event{
		Action:    audit.ActionProfileViewed,
		SubjectID: session.SubjectID,
		Outcome:   "claims_only",
	})
	return e.aggregator.ClaimsOnly(session)
}

func (e *Engine) aggregate(ctx context.Context, session provider.SessionIdentity, mode profile.Mode) profile.Profile {
	query := domaingraph.Query{
		ContactID: provider.MetaString(session.Metadata, provider.MetaContactID),
		Email:     session.Email,
	}
	graph, err := e.resolver.Resolve(ctx, query, domaingraph.Options{Minimal: mode == profile.ModeMinimal})
	if err != nil {
		if !errors.Is(err, sentinel.ErrRecordNotFound) && e.logger != nil {
			e.logger.WarnContext(ctx, "domain graph unavailable, serving claims",
				"subject_id", session.SubjectID,
				"error", err,
			)
		}
		e.metrics.IncClaimsOnly()
		graph = nil
	}
	return e.aggregator.Aggregate(session, graph, mode)
}

// UpdateProfile patches the contact record and mirrors the fields into the
// provider's metadata. The record store write is authoritative; a metadata
// persist failure degrades to Persisted false without failing the update.
func (e *Engine) UpdateProfile(ctx context.Context, subjectID, contactID string, fields map[string]any) (UpdateResult, error) {
	if contactID == "" {
		return UpdateResult{}, fmt.Errorf("contact id is required")
	}

	record, err := e.store.Update(ctx, recordstore.EntityContact, contactID, fields)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update contact %s: %w", contactID, err)
	}

	metaPatch := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		metaPatch[k] = v
	}
	metaPatch[provider.MetaContactID] = record.ID

	persisted := false
	result, err := e.syncer.Sync(ctx, subjectID, metaPatch)
	switch {
	case err != nil:
		if e.logger != nil {
			e.logger.WarnContext(ctx, "metadata mirror skipped",
				"subject_id", subjectID,
				"error", err,
			)
		}
	default:
		persisted = result.Persisted
	}

	e.audit(ctx, audit.Event{
		Action:    audit.ActionProfileUpdated,
		SubjectID: subjectID,
		ContactID: record.ID,
		Outcome:   outcome(persisted),
	})
	if !persisted {
		e.auditMetadataDegraded(ctx, subjectID, record.ID)
	}
	return UpdateResult{Success: true, ContactID: record.ID, Persisted: persisted}, nil
}

// CheckIdentityExists reports whether the email is known to the provider and
// to the record store. Both checks degrade to false on failure; absence and
// unavailability are indistinguishable here by design.
func (e *Engine) CheckIdentityExists(ctx context.Context, address string) (IdentityCheck, error) {
	normalized := email.Normalize(address)
	if normalized == "" {
		return IdentityCheck{}, fmt.Errorf("email is required")
	}

	var check IdentityCheck

	found, err := e.lookup.Find(ctx, identity.Query{Email: normalized})
	switch {
	case err == nil && found != nil:
		check.ExistsInProvider = true
	case err != nil && !errors.Is(err, sentinel.ErrIdentityNotFound):
		if e.logger != nil {
			e.logger.WarnContext(ctx, "provider check degraded", "error", err)
		}
	}

	record, err := e.store.FindOne(ctx, recordstore.EntityContact, recordstore.Eq("email", normalized))
	if err != nil {
		if !errors.Is(err, sentinel.ErrRecordNotFound) && e.logger != nil {
			e.logger.WarnContext(ctx, "record store check degraded", "error", err)
		}
	} else if record != nil {
		check.ExistsInDomainStore = true
		check.DomainRecordID = record.ID
	}

	e.audit(ctx, audit.Event{
		Action:  audit.ActionIdentityChecked,
		Email:   normalized,
		Outcome: fmt.Sprintf("provider=%t store=%t", check.ExistsInProvider, check.ExistsInDomainStore),
	})
	return check, nil
}

// SetOnboardingCompleted marks the subject's onboarding done in provider
// metadata. A persist failure is a soft success; only token acquisition
// failure surfaces as an error.
func (e *Engine) SetOnboardingCompleted(ctx context.Context, subjectID string) (OnboardingResult, error) {
	result, err := e.syncer.Sync(ctx, subjectID, map[string]any{
		provider.MetaOnboardingCompleted: true,
	})
	if err != nil {
		return OnboardingResult{}, err
	}

	e.audit(ctx, audit.Event{
		Action:    audit.ActionOnboardingCompleted,
		SubjectID: subjectID,
		Outcome:   outcome(result.Persisted),
	})
	if !result.Persisted {
		e.auditMetadataDegraded(ctx, subjectID, "")
	}
	return OnboardingResult{Success: true, Persisted: result.Persisted}, nil
}

// auditMetadataDegraded records that a metadata write is pending in the
// process-local cache instead of the provider.
func (e *Engine) auditMetadataDegraded(ctx context.Context, subjectID, contactID string) {
	e.audit(ctx, audit.Event{
		Action:    audit.ActionMetadataDegraded,
		SubjectID: subjectID,
		ContactID: contactID,
		Outcome:   "cached",
	})
}

// audit enriches the event with everything the middleware chain attached to
// the request before handing it to the publisher.
func (e *Engine) audit(ctx context.Context, event audit.Event) {
	if e.publisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.Device = requestcontext.Device(ctx)
	event.Timestamp = requestcontext.Now(ctx).UTC()
	if event.SubjectID == "" {
		event.SubjectID = requestcontext.SubjectID(ctx)
	}
	e.publisher.Publish(ctx, event)
}

func outcome(persisted bool) string {
	if persisted {
		return "persisted"
	}
	return "degraded"
}

// overlay merges the degraded-cache view over the session metadata without
// mutating either map.
func overlay(base, cached map[string]any) map[string]any {
	if len(cached) == 0 {
		return base
	}
	merged := make(map[string]any, len(base)+len(cached))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range cached {
		merged[k] = v
	}
	return merged
}
