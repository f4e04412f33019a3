package harvest

import (
	"context"
	"time"
)

// Backoff computes retry delays: Base * 2^attempt, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number attempt (0-based). A positive
// retryAfter raises the delay to at least that value, even above Max.
func (b Backoff) Delay(attempt int, retryAfter time.Duration) time.Duration {
	delay := b.Max
	if attempt < 32 {
		if d := b.Base << attempt; d >= 0 && d < b.Max {
			delay = d
		}
	}
	return max(delay, retryAfter)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
