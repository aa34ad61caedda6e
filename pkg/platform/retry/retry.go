// Package retry provides a small reusable retry policy with exponential
// backoff. Token acquisition and metadata persistence apply the same policy
// so backoff behavior stays uniform instead of living in per-call closures.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultPolicy matches the provider clients' needs: 3 attempts, delay
// doubling from 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
	}
}

// Delay returns the backoff delay before the given attempt (1-based).
// Attempt 1 has no delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 2; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	return d
}

// Do runs fn up to MaxAttempts times, sleeping the policy delay between
// attempts. A fn returning (false, err) marks the error permanent and stops
// retrying. The last error is returned after exhaustion. Context cancellation
// interrupts the backoff sleep.
func (p Policy) Do(ctx context.Context, fn func() (retryable bool, err error)) error {
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}
