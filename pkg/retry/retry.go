// Package retry provides an explicit retry/backoff policy applied by
// wrapping a call site; there is no hidden control flow.
package retry

import (
	"context"
	"time"
)

// Default policy parameters: four attempts with delays of 5s, 10s and 20s
// between them.
const (
	DefaultMaxAttempts = 4
	DefaultDelay       = 5 * time.Second
	DefaultBackoff     = 2.0
)

// Policy describes how a fallible operation is retried: how often, how long
// to wait between attempts, how the wait grows, and which errors are worth
// retrying at all.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// Delay is the wait before the second attempt.
	Delay time.Duration

	// Backoff multiplies the delay after each failed attempt.
	Backoff float64

	// Retryable classifies errors. A nil predicate retries everything.
	Retryable func(error) bool

	// Sleep is swapped out in tests; nil means a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns a policy with the recommended parameters and the
// given error classifier.
func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		Backoff:     DefaultBackoff,
		Retryable:   retryable,
	}
}

// Do runs op, retrying retryable failures with exponentially growing delays
// until an attempt succeeds or attempts run out. A non-retryable failure is
// propagated immediately; otherwise the most recent failure is returned
// unchanged.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay = time.Duration(float64(delay) * p.Backoff)
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
