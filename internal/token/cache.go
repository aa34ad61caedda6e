// Package token caches the bearer credential for the identity provider's
// administrative API. One cache instance is shared per process; its refresh
// is single-flighted so a cold cache under concurrent load performs exactly
// one credential exchange.
package token

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"memberhub/internal/provider"
	"memberhub/internal/token/metrics"
	"memberhub/pkg/platform/retry"
	"memberhub/pkg/platform/sentinel"
)

// safetyMargin is subtracted from the provider-reported TTL so the cache
// never serves a token that expires mid-flight.
const safetyMargin = 5 * time.Minute

// Cache acquires and caches the management API bearer token.
type Cache struct {
	api    provider.API
	policy retry.Policy

	group singleflight.Group

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Cache.
type Option func(*Cache)

// WithLogger sets a logger for refresh failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithRetryPolicy overrides the default exchange retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Cache) {
		c.policy = p
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a token cache backed by the given provider API.
func New(api provider.API, opts ...Option) (*Cache, error) {
	if api == nil {
		return nil, fmt.Errorf("provider API is required")
	}
	c := &Cache{
		api:    api,
		policy: retry.DefaultPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetToken returns a valid bearer token, refreshing it when the cached one
// is missing or past its safety-margin-adjusted expiry. Concurrent callers
// during a miss share a single exchange.
func (c *Cache) GetToken(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		c.metrics.IncCacheHit()
		return tok, nil
	}

	result, err, shared := c.group.Do("token", func() (any, error) {
		// Another caller may have finished a refresh between our cache
		// check and acquiring the flight.
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		return c.refresh(ctx)
	})
	if shared {
		c.metrics.IncRefreshShared()
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate drops the cached token so the next call refreshes. Used when a
// provider call rejects the token before its computed expiry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}

func (c *Cache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *Cache) refresh(ctx context.Context) (string, error) {
	var creds provider.Credentials
	err := c.policy.Do(ctx, func() (bool, error) {
		c.metrics.IncRefresh()
		var exchangeErr error
		creds, exchangeErr = c.api.ExchangeClientCredentials(ctx)
		if exchangeErr != nil {
			return provider.IsTransient(exchangeErr), exchangeErr
		}
		return false, nil
	})
	if err != nil {
		c.metrics.IncRefreshFailure()
		if c.logger != nil {
			c.logger.ErrorContext(ctx, "credential exchange failed",
				"error", err,
			)
		}
		return "", fmt.Errorf("%w: %v", sentinel.ErrTokenAcquisition, err)
	}

	ttl := time.Duration(creds.ExpiresIn) * time.Second
	margin := safetyMargin
	if ttl <= margin {
		// Short-lived tokens keep half their TTL rather than expiring
		// immediately in the cache.
		margin = ttl / 2
	}

	c.mu.Lock()
	c.token = creds.AccessToken
	c.expiresAt = c.now().Add(ttl - margin)
	c.mu.Unlock()

	return creds.AccessToken, nil
}
