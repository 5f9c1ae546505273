// Package retry provides an explicit retry policy invoked by callers, in
// place of decorator-style wrapping.
package retry

import (
	"context"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	MaxAttempts int
	// Delay returns the pause before the next attempt, given the 1-based
	// attempt number that just failed.
	Delay func(attempt int) time.Duration
	// RetryIf reports whether the error is worth another attempt. A nil
	// predicate retries every error.
	RetryIf func(err error) bool
}

// FixedDelay builds a policy that waits the same delay between attempts.
func FixedDelay(maxAttempts int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay:       func(int) time.Duration { return delay },
	}
}

// ExponentialBackoff builds a policy that doubles the delay per attempt,
// starting at base and capped at max. No jitter is applied.
func ExponentialBackoff(maxAttempts int, base, max time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Delay: func(attempt int) time.Duration {
			delay := base
			for i := 1; i < attempt; i++ {
				delay *= 2
				if delay >= max {
					return max
				}
			}
			if delay > max {
				return max
			}
			return delay
		},
	}
}

// Do runs fn until it succeeds, the policy is exhausted, a non-retryable
// error occurs, or ctx is cancelled. It returns the last error and the number
// of attempts made.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if p.RetryIf != nil && !p.RetryIf(err) {
			return attempt, err
		}
		if attempt == attempts {
			break
		}
		if waitErr := sleep(ctx, p.delay(attempt)); waitErr != nil {
			return attempt, waitErr
		}
	}
	return attempts, err
}

func (p Policy) delay(attempt int) time.Duration {
	if p.Delay == nil {
		return 0
	}
	return p.Delay(attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
