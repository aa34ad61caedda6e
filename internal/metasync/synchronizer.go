// Package metasync writes profile metadata back to the identity provider and
// keeps a process-local degraded-mode cache consistent with the caller's
// intent when the provider is unreachable.
package metasync

import (
	"context"
	"fmt"
	"log/slog"

	"memberhub/internal/metasync/metrics"
	"memberhub/internal/provider"
	"memberhub/pkg/platform/circuit"
	"memberhub/pkg/platform/retry"
	"memberhub/pkg/platform/sentinel"
)

// ProviderAPI is the slice of the provider surface the synchronizer needs.
type ProviderAPI interface {
	GetUserByID(ctx context.Context, token, subjectID string) (*provider.Identity, error)
	PatchUserMetadata(ctx context.Context, token, subjectID string, metadata map[string]any) (*provider.Identity, error)
}

// TokenSource supplies the administrative bearer token.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// Result is the outcome of one Sync call. Merged is always populated;
// Persisted reports whether the provider accepted the write or the merge
// lives only in the degraded cache for now.
type Result struct {
	Merged    map[string]any
	Persisted bool
}

// Synchronizer merges metadata patches and persists them to the provider,
// retrying transient failures and degrading to the injected FallbackCache.
type Synchronizer struct {
	api      ProviderAPI
	tokens   TokenSource
	fallback *FallbackCache
	breaker  *circuit.Breaker
	policy   retry.Policy
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures the Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets a logger for degraded operations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithRetryPolicy overrides the persistence retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Synchronizer) {
		s.policy = p
	}
}

// WithBreaker overrides the provider reachability breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Synchronizer) {
		s.breaker = b
	}
}

// New creates a Synchronizer. The fallback cache is required and injected so
// its lifetime is owned by the process wiring, not by this package.
func New(api ProviderAPI, tokens TokenSource, fallback *FallbackCache, opts ...Option) (*Synchronizer, error) {
	if api == nil {
		return nil, fmt.Errorf("provider API is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if fallback == nil {
		return nil, fmt.Errorf("fallback cache is required")
	}
	s := &Synchronizer{
		api:      api,
		tokens:   tokens,
		fallback: fallback,
		breaker:  circuit.New("provider-metadata"),
		policy:   retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sync shallow-merges patch over the subject's current metadata and persists
// the result to the provider. The merged map is written to the degraded cache
// regardless of persistence outcome, so reads in this process see the
// caller's intent. A persistence failure after retries is a soft result
// (Persisted false), not an error; only token acquisition failures propagate.
func (s *Synchronizer) Sync(ctx context.Context, subjectID string, patch map[string]any) (Result, error) {
	current := s.readCurrent(ctx, subjectID)

	merged := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = coerceValue(k, v)
	}

	token, err := s.tokens.GetToken(ctx)
	if err != nil {
		s.fallback.Put(subjectID, merged)
		return Result{Merged: merged}, fmt.Errorf("%w: %v", sentinel.ErrTokenAcquisition, err)
	}

	persistErr := s.policy.Do(ctx, func() (bool, error) {
		_, err := s.api.PatchUserMetadata(ctx, token, subjectID, merged)
		if err != nil {
			return provider.IsTransient(err), err
		}
		return false, nil
	})

	s.fallback.Put(subjectID, merged)

	if persistErr != nil {
		_, change := s.breaker.RecordFailure()
		s.noteBreaker(ctx, change)
		s.metrics.IncPersistFailure()
		if s.logger != nil {
			s.logger.WarnContext(ctx, "metadata persist degraded to fallback cache",
				"subject_id", subjectID,
				"error", persistErr,
			)
		}
		return Result{Merged: merged, Persisted: false}, nil
	}

	_, change := s.breaker.RecordSuccess()
	s.noteBreaker(ctx, change)
	s.metrics.IncPersist()
	return Result{Merged: merged, Persisted: true}, nil
}

// CachedMetadata returns the degraded-cache view for a subject, or nil when
// nothing has been synced in this process. Callers overlay it on top of the
// session's metadata so reads reflect pending writes.
func (s *Synchronizer) CachedMetadata(subjectID string) map[string]any {
	return s.fallback.Get(subjectID)
}

// readCurrent fetches the subject's metadata from the provider when the
// breaker allows it, else from the degraded cache. Either source failing is
// fine; the merge then starts from whatever the cache holds.
func (s *Synchronizer) readCurrent(ctx context.Context, subjectID string) map[string]any {
	if s.breaker.IsOpen() {
		s.metrics.IncFallbackRead()
		return s.fallback.Get(subjectID)
	}

	token, err := s.tokens.GetToken(ctx)
	if err == nil {
		identity, err := s.api.GetUserByID(ctx, token, subjectID)
		if err == nil {
			s.breaker.RecordSuccess()
			return identity.Metadata
		}
		_, change := s.breaker.RecordFailure()
		s.noteBreaker(ctx, change)
	}

	s.metrics.IncFallbackRead()
	return s.fallback.Get(subjectID)
}

func (s *Synchronizer) noteBreaker(ctx context.Context, change circuit.Change) {
	switch {
	case change.Opened:
		s.metrics.SetBreakerOpen(true)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "provider breaker opened", "breaker", s.breaker.Name())
		}
	case change.Closed:
		s.metrics.SetBreakerOpen(false)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "provider breaker closed", "breaker", s.breaker.Name())
		}
	}
}

// coerceValue normalizes boolean-typed fields before merge. The onboarding
// flag in particular must never store a truthy string: "false" becomes the
// boolean false, not true.
func coerceValue(key string, v any) any {
	if key != provider.MetaOnboardingCompleted {
		return v
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}
