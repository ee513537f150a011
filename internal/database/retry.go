package database

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RetryPolicy bounds retries on transient sink failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches the sink defaults: 3 attempts, 100ms base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	return p
}

// WithRetry runs fn, retrying only transient failures with exponential
// backoff (base × 2^attempt). Structural errors propagate immediately.
// After exhausting attempts the last error is wrapped as retries-exhausted.
func WithRetry(ctx context.Context, policy RetryPolicy, label string, fn func(ctx context.Context) error) error {
	policy = policy.normalized()

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := policy.BaseDelay * time.Duration(1<<uint(attempt-1))
			log.Printf("[retry] %s: attempt %d/%d after %v: %v", label, attempt+1, policy.MaxAttempts, backoff, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err
	}

	return wrapError(CodeRetriesExhausted, false, fmt.Errorf("%s: %d attempts: %w", label, policy.MaxAttempts, lastErr))
}
