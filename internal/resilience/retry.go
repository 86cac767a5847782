package resilience

import (
	"context"
	"time"
)

// RetryOnce runs fn and, if it fails, retries exactly once after backoff.
// Used for external provider calls whose contract is "one retry, then
// degrade". Returns the last error. Respects context cancellation while
// backing off.
func RetryOnce(ctx context.Context, backoff time.Duration, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
		return err
	}

	return fn(ctx)
}
