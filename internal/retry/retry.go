// Package retry provides the single retry-with-backoff helper used by the
// chain client and the sync store, parameterized by attempt count and delay
// schedule.
package retry

import (
	"context"
	"errors"
	"time"
)

// DelayFunc computes the wait before the given attempt (1-based, i.e. the
// delay applied after attempt n failed).
type DelayFunc func(attempt int) time.Duration

// Fixed waits the same duration between every attempt.
func Fixed(d time.Duration) DelayFunc {
	return func(int) time.Duration { return d }
}

// Linear waits step, 2*step, 3*step, ...
func Linear(step time.Duration) DelayFunc {
	return func(attempt int) time.Duration { return time.Duration(attempt) * step }
}

// Policy describes how many attempts to make and how long to wait between
// them.
type Policy struct {
	MaxAttempts int
	Delay       DelayFunc
}

// permanent wraps an error that must not be retried.
type permanent struct {
	err error
}

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as non-retryable: Do returns it immediately without
// consuming further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err: err}
}

// Do invokes fn until it succeeds, returns a permanent error, the attempts
// are exhausted, or the context is cancelled. The last error is returned on
// exhaustion.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm permanent
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		var wait time.Duration
		if p.Delay != nil {
			wait = p.Delay(attempt)
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}
