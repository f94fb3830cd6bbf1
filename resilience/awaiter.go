package resilience

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Awaiter blocks until a point in time.
//
// Contract:
//   - WaitUntil returns nil once t is reached, at once if t is in the past.
//   - WaitUntil returns ctx.Err() when ctx ends first.
type Awaiter interface {
	WaitUntil(ctx context.Context, t time.Time) error
}

// ClockAwaiter waits on a clockwork.Clock. Tests pass a fake clock to
// control time without sleeping.
type ClockAwaiter struct {
	Clock clockwork.Clock
}

// NewClockAwaiter returns an Awaiter on clock, or on the real clock when
// clock is nil.
func NewClockAwaiter(clock clockwork.Clock) *ClockAwaiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ClockAwaiter{Clock: clock}
}

// WaitUntil implements Awaiter.
func (a *ClockAwaiter) WaitUntil(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := t.Sub(a.Clock.Now())
	if d <= 0 {
		return nil
	}

	timer := a.Clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
