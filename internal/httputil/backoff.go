package httputil

import (
	"context"
	"time"
)

// JitteredBackoff describes a fixed-interval retry with symmetric jitter,
// distinct from RetryConfig's exponential backoff: leader-lock acquisition
// retries on a steady cadence rather than backing off further on each
// failure.
type JitteredBackoff struct {
	Interval time.Duration
	JitterFrac float64
}

// Wait blocks for one jittered interval or until ctx is done, whichever
// comes first. Returns ctx.Err() if the context was the reason for waking.
func (b JitteredBackoff) Wait(ctx context.Context) error {
	d := applyJitter(b.Interval, b.JitterFrac)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
