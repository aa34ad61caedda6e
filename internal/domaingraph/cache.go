package domaingraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "memberhub/internal/platform/redis"
)

// institutionCacheTTL bounds staleness of the email-domain lookup. Domain to
// institution mappings change rarely; five minutes keeps cold-start load off
// the record store without caching stale renames for long.
const institutionCacheTTL = 5 * time.Minute

// InstitutionCache is a redis read-through cache for institution-by-domain
// lookups, the one record store query that repeats across unrelated users.
type InstitutionCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

// NewInstitutionCache wraps a redis client. A nil client yields a nil cache,
// which the resolver treats as cache-disabled.
func NewInstitutionCache(client *platformredis.Client) *InstitutionCache {
	if client == nil {
		return nil
	}
	return &InstitutionCache{client: client, ttl: institutionCacheTTL}
}

func institutionKey(domain string) string {
	return "memberhub:institution:domain:" + domain
}

// Get returns the cached institution for an email domain, or (nil, nil) on
// miss.
func (c *InstitutionCache) Get(ctx context.Context, domain string) (*Institution, error) {
	if c == nil {
		return nil, nil
	}
	payload, err := c.client.Get(ctx, institutionKey(domain)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("institution cache get: %w", err)
	}
	var inst Institution
	if err := json.Unmarshal(payload, &inst); err != nil {
		return nil, fmt.Errorf("institution cache decode: %w", err)
	}
	return &inst, nil
}

// Put stores an institution under its matched domain.
func (c *InstitutionCache) Put(ctx context.Context, domain string, inst *Institution) error {
	if c == nil || inst == nil {
		return nil
	}
	payload, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("institution cache encode: %w", err)
	}
	if err := c.client.Set(ctx, institutionKey(domain), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("institution cache set: %w", err)
	}
	return nil
}
