package job

import (
	"context"
	"time"
)

// GreenWaiter is anything that can block until a light turns green.
type GreenWaiter interface {
	WaitForGreen(ctx context.Context) error
}

// CrossWhenGreen returns a runnable that waits for the light to turn green,
// spends crossTime crossing, calls onCross, and then waits again. It runs
// until ctx is done.
func CrossWhenGreen(light GreenWaiter, crossTime time.Duration, onCross func()) func(context.Context) error {
	return func(ctx context.Context) error {
		for {
			if err := light.WaitForGreen(ctx); err != nil {
				return err
			}
			if err := Dwell(ctx, crossTime); err != nil {
				return err
			}
			if onCross != nil {
				onCross()
			}
		}
	}
}

// Dwell blocks for d, or until ctx is done.
func Dwell(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		// If the time is up, we just return nil.
		return nil
	}
}
