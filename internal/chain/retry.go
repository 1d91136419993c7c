package chain

import (
	"context"
	"time"
)

const (
	defaultBackoff = 100 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// withRetry runs fn until it succeeds, maxRetries is exhausted or ctx is done.
// The delay doubles after each failed attempt, capped at maxBackoff.
func withRetry(ctx context.Context, maxRetries int, backoff time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
