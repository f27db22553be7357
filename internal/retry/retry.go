// Package retry re-runs idempotent operations with exponential backoff and jitter.
package retry

import (
	"context"
	"math/rand"
	"time"
)

const (
	// DefaultAttempts is the default number of tries, including the first.
	DefaultAttempts = 3

	// DefaultBaseDelay is the wait before the second attempt. It doubles after each failure.
	DefaultBaseDelay = 50 * time.Millisecond

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2 // ±20%
)

// Policy configures Do.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration

	// Sleep waits between attempts. Nil uses a timer that honours ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the policy used for store reads.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: DefaultBaseDelay}
}

// Delay returns the jittered wait after the given failed attempt.
// attempt is 0-indexed (after the first failure, attempt = 0).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 16 {
		attempt = 16
	}

	base := p.BaseDelay << attempt

	// ±20% jitter so concurrent retries spread out
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}

// Do calls fn until it succeeds, returns an error retryable rejects,
// the attempts run out, or ctx is done. The last error is returned.
func Do[T any](ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var (
		result T
		err    error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil || !retryable(err) || attempt == attempts-1 {
			return result, err
		}
		if serr := sleep(ctx, p.Delay(attempt)); serr != nil {
			return result, err
		}
	}
	return result, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
