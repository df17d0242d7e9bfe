package llm

import (
	"context"
	"log/slog"
	"time"
)

// Policy is a bounded retry with a fixed delay between attempts.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Retry calls fn until it succeeds, the attempts are used up, or retryable
// reports the error as final. A nil retryable retries every error.
// Cancellation of ctx is never retried and aborts the wait between attempts.
// The returned count is the number of times fn ran.
func Retry(ctx context.Context, p Policy, fn func(ctx context.Context) error, retryable func(error) bool) (int, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			slog.Warn("llm: retrying request",
				"attempt", attempt,
				"delay", p.Delay,
				"error", lastErr,
			)
			select {
			case <-time.After(p.Delay):
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if retryable != nil && !retryable(lastErr) {
			return attempt, lastErr
		}
	}
	return attempts, lastErr
}
