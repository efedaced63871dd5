package ftlerr

import (
	"context"
	log "log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry runs task, retrying it with Fibonacci backoff up to maxRetries
// times while it fails with a transient error (see ShouldRetry); any other
// error is returned at once. It is used at the FTL core's two suspension
// points (§5): admitting a request slot and admitting a temp data buffer.
// Both behave as bounded queues the caller yields against rather than
// blocks on indefinitely.
//
// If task still fails, gaveUp (when non-nil) runs and the final error is
// returned.
func Retry(ctx context.Context, maxRetries uint64, task func(ctx context.Context) error, gaveUp func(ctx context.Context)) error {
	b := retry.NewFibonacci(10 * time.Millisecond)
	if err := retry.Do(ctx, retry.WithMaxRetries(maxRetries, b), func(ctx context.Context) error {
		err := task(ctx)
		if ShouldRetry(err) {
			return retry.RetryableError(err)
		}
		return err
	}); err != nil {
		log.Warn("retry exhausted, gave up", "error", err)
		if gaveUp != nil {
			gaveUp(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether err represents a transient condition (NoFreeSlot)
// that a caller should yield-and-retry against, as opposed to a fatal
// (NoVictim) or permanent (ctx cancellation) condition.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, NoFreeSlot)
}
