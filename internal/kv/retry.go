package kv

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/time/rate"
)

// retryOnConflict retries operation, rate-limited to one attempt per
// baseDelay, when Badger reports a serialization conflict between
// concurrent transactions. This mirrors retryOnBusy's treatment of
// SQLITE_BUSY write contention, adapted to Badger's optimistic-concurrency
// conflict error instead of a lock-file busy error.
func retryOnConflict(ctx context.Context, operation func() error) error {
	const maxRetries = 5
	baseDelay := 50 * time.Millisecond
	limiter := rate.NewLimiter(rate.Every(baseDelay), 1)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == maxRetries-1 {
			break
		}
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			return waitErr
		}
	}
	return lastErr
}
