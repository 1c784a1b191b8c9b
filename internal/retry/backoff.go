package retry

import (
	"context"
	"fmt"
	"time"
)

// MaxDelay caps a single backoff wait.
const MaxDelay = 30 * time.Second

// ExponentialBackoff returns base * 2^attempt, capped at MaxDelay.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return MaxDelay
	}
	d := base * (1 << attempt)
	if d <= 0 || d > MaxDelay {
		return MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, attempts run out or ctx is done. onRetry,
// when set, is told about each failure that will be retried.
func Do(ctx context.Context, attempts int, base time.Duration, fn func() error, onRetry func(attempt int, wait time.Duration, err error)) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		wait := ExponentialBackoff(attempt, base)
		if onRetry != nil {
			onRetry(attempt+1, wait, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
}
