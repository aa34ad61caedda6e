// Package identity resolves provider-side identity records by subject id or
// email. The provider's search index is eventually consistent, so by-email
// resolution walks an ordered list of strategies until one yields a match.
// Lookup failures never propagate: sign-in flows must degrade to
// sentinel.ErrIdentityNotFound rather than a hard error.
package identity

import (
	"context"
	"fmt"
	"log/slog"

	"memberhub/internal/identity/metrics"
	"memberhub/internal/provider"
	"memberhub/pkg/email"
	"memberhub/pkg/platform/audit"
	"memberhub/pkg/platform/sentinel"
)

// scanPageSize bounds the last-resort listing scan to a single page. This is
// deliberately not a paginated walk of the whole tenant.
const scanPageSize = 100

// strategyListingScan names the last-resort strategy; hits on it are audited
// because they mean both email endpoints missed a user the tenant has.
const strategyListingScan = "listing_scan"

// Query identifies the identity to resolve. SubjectID wins over Email when
// both are set.
type Query struct {
	SubjectID string
	Email     string
}

// Strategy is one way of finding identities by email. Strategies run in
// order until one returns a non-empty result; adding a new provider quirk
// means adding a strategy, not another copy of the lookup.
type Strategy interface {
	Name() string
	Find(ctx context.Context, token, normalizedEmail string) ([]provider.Identity, error)
}

// TokenSource supplies the management API bearer token.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// Lookup resolves identities against the provider.
type Lookup struct {
	api        provider.API
	tokens     TokenSource
	strategies []Strategy
	logger     *slog.Logger
	metrics    *metrics.Metrics
	publisher  audit.Publisher
}

// Option configures the Lookup.
type Option func(*Lookup)

// WithLogger sets a logger for degraded lookups.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lookup) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Lookup) {
		l.metrics = m
	}
}

// WithStrategies replaces the default by-email strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(l *Lookup) {
		l.strategies = strategies
	}
}

// WithAuditPublisher sets the sink for degraded-path events, currently just
// listing-scan hits.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(l *Lookup) {
		l.publisher = p
	}
}

// New creates a Lookup with the default strategy chain: search index, then
// the users-by-email endpoint, then a bounded listing scan.
func New(api provider.API, tokens TokenSource, opts ...Option) (*Lookup, error) {
	if api == nil {
		return nil, fmt.Errorf("provider API is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	l := &Lookup{
		api:       api,
		tokens:    tokens,
		publisher: audit.NopPublisher{},
		strategies: []Strategy{
			searchIndexStrategy{api: api},
			byEmailEndpointStrategy{api: api},
			listingScanStrategy{api: api, pageSize: scanPageSize},
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Find resolves an identity. Absence and degraded failure look identical to
// callers by design: both surface as sentinel.ErrIdentityNotFound, never as a
// hard error.
func (l *Lookup) Find(ctx context.Context, q Query) (*provider.Identity, error) {
	tok, err := l.tokens.GetToken(ctx)
	if err != nil {
		l.logDegraded(ctx, "token", err)
		return nil, sentinel.ErrIdentityNotFound
	}

	if q.SubjectID != "" {
		if identity := l.findByID(ctx, tok, q.SubjectID); identity != nil {
			return identity, nil
		}
		return nil, sentinel.ErrIdentityNotFound
	}

	normalized := email.Normalize(q.Email)
	if normalized == "" {
		return nil, sentinel.ErrIdentityNotFound
	}
	if identity := l.findByEmail(ctx, tok, normalized); identity != nil {
		return identity, nil
	}
	return nil, sentinel.ErrIdentityNotFound
}

func (l *Lookup) findByID(ctx context.Context, tok, subjectID string) *provider.Identity {
	identity, err := l.api.GetUserByID(ctx, tok, subjectID)
	if err != nil {
		if !provider.IsNotFound(err) {
			l.logDegraded(ctx, "by_id", err)
		}
		return nil
	}
	return identity
}

func (l *Lookup) findByEmail(ctx context.Context, tok, normalized string) *provider.Identity {
	for _, strategy := range l.strategies {
		results, err := strategy.Find(ctx, tok, normalized)
		if err != nil {
			l.metrics.IncStrategyError(strategy.Name())
			l.logDegraded(ctx, strategy.Name(), err)
			continue
		}
		if len(results) > 0 {
			l.metrics.IncStrategyHit(strategy.Name())
			if strategy.Name() == strategyListingScan {
				l.publisher.Publish(ctx, audit.Event{
					Action:    audit.ActionIdentityScanFallback,
					SubjectID: results[0].SubjectID,
					Email:     normalized,
					Outcome:   "hit",
				})
			}
			return &results[0]
		}
	}
	l.metrics.IncNotFound()
	return nil
}

func (l *Lookup) logDegraded(ctx context.Context, source string, err error) {
	if l.logger != nil {
		l.logger.WarnContext(ctx, "identity lookup degraded to not-found",
			"source", source,
			"error", err,
		)
	}
}

type searchIndexStrategy struct {
	api provider.API
}

func (s searchIndexStrategy) Name() string { return "search_index" }

func (s searchIndexStrategy) Find(ctx context.Context, token, normalizedEmail string) ([]provider.Identity, error) {
	return s.api.SearchUsersByEmail(ctx, token, normalizedEmail)
}

type byEmailEndpointStrategy struct {
	api provider.API
}

func (s byEmailEndpointStrategy) Name() string { return "by_email_endpoint" }

func (s byEmailEndpointStrategy) Find(ctx context.Context, token, normalizedEmail string) ([]provider.Identity, error) {
	return s.api.GetUsersByEmail(ctx, token, normalizedEmail)
}

// listingScanStrategy fetches a single page of users and compares emails
// client-side. It exists for tenants small enough that a fresh user missed
// by both email endpoints still shows up in the first page of the listing.
type listingScanStrategy struct {
	api      provider.API
	pageSize int
}

func (s listingScanStrategy) Name() string { return strategyListingScan }

func (s listingScanStrategy) Find(ctx context.Context, token, normalizedEmail string) ([]provider.Identity, error) {
	users, err := s.api.ListUsers(ctx, token, 0, s.pageSize)
	if err != nil {
		return nil, err
	}
	var matches []provider.Identity
	for _, u := range users {
		if email.Normalize(u.Email) == normalizedEmail {
			matches = append(matches, u)
		}
	}
	return matches, nil
}
