package scheduler

import (
	"context"
	"time"
)

// WallClock implements Clock against real time using a timer per sleeper.
type WallClock struct{}

func (WallClock) Now() time.Time {
	return time.Now()
}

func (WallClock) SleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
