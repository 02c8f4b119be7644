package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// Backoff computes exponential retry delays with optional jitter and
// waits context-aware. A zero Jitter makes delays deterministic.
type Backoff struct {
	Base   time.Duration // delay for attempt 0
	Max    time.Duration // hard cap; 0 means uncapped
	Jitter float64       // additive jitter as a fraction of the delay, [0, 1)
}

// Delay returns the backoff for a zero-based attempt index:
// Base doubled per attempt, jittered, capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	// Clamp the shift; beyond this the cap decides anyway.
	if attempt > 30 {
		attempt = 30
	}
	d := b.Base << uint(attempt)
	if b.Max > 0 && (d <= 0 || d > b.Max) {
		d = b.Max
	}
	if b.Jitter > 0 {
		d += time.Duration(rand.Float64() * b.Jitter * float64(d))
		if b.Max > 0 && d > b.Max {
			d = b.Max
		}
	}
	return d
}

// Wait blocks for the attempt's delay or until ctx is done, whichever
// comes first. Only the calling goroutine is suspended.
func (b Backoff) Wait(ctx context.Context, attempt int) error {
	d := b.Delay(attempt)
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
