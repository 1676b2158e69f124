// Package retry implements a bounded exponential-backoff policy for
// remote calls.
package retry

import (
	"context"
	"time"
)

// Policy controls retry behavior. Attempts is the total number of tries;
// after the i-th failure the caller waits Base*2^i before trying again.
type Policy struct {
	Attempts int
	Base     time.Duration
}

// DefaultPolicy mirrors the service-wide retry contract.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Base: time.Second}
}

// Do runs op until it succeeds or the policy is exhausted. The last
// error is returned unwrapped so callers can classify it. Waiting is
// interrupted by context cancellation.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		if waitErr := wait(ctx, policy.Base<<uint(i)); waitErr != nil {
			return zero, waitErr
		}
	}
	return zero, lastErr
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
