// internal/common/retry/retry.go
package retry

import (
	"context"
	"time"
)

// Do runs fn up to maxAttempts times with exponential backoff between
// attempts (100ms, 200ms, 400ms, ...). It stops early when ctx is done
// and returns the last error observed.
func Do(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
