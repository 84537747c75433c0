// internal/phase/cycler.go

package phase

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// cycleThroughPhases runs on the cycler task until ctx is done.
//
// Each segment lasts a random duration. Elapsed time is polled on a short
// tick rather than slept for, so the loop notices both the end of a segment
// and cancellation promptly.
func (c *Controller) cycleThroughPhases(ctx context.Context) error {
	clock := newTickClock()
	clock.Start(c.cfg.PollInterval)
	defer clock.Stop()

	held := c.cycle.Next()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug(
				"cycler stopped",
				zap.Uint64("flips", c.Flips()),
				zap.Int64("polls", clock.Count()),
			)
			return nil
		case <-clock.C:
		}

		if time.Since(start) < held {
			continue
		}

		f := c.flip(held)

		// The phase write above happens before this publish, and the publish
		// completes before the next segment begins.
		c.signals.Send(f.Phase)
		f.Time = time.Now()

		c.record(ctx, f)

		start = time.Now()
		held = c.cycle.Next()
	}
}

// flip writes the complement of the current phase.
func (c *Controller) flip(held time.Duration) Flip {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.phase = c.phase.Next()
	c.flips++

	return Flip{
		Light: c.name,
		Seq:   c.flips,
		Phase: c.phase,
		Held:  held,
	}
}

func (c *Controller) record(ctx context.Context, f Flip) {
	c.inst.flips.Add(ctx, 1, c.inst.attrs)
	c.inst.held.Record(ctx, f.Held.Seconds(), c.inst.attrs)

	c.logger.Debug(
		"phase changed",
		zap.Stringer("phase", f.Phase),
		zap.Uint64("seq", f.Seq),
		zap.Duration("held", f.Held),
	)

	if c.observer != nil {
		c.observer(ctx, f)
	}
}

// cycleSampler draws segment durations uniformly from [min, max).
type cycleSampler struct {
	rng  *rand.Rand
	min  time.Duration
	span time.Duration
}

// newCycleSampler returns a sampler with its own randomly seeded source, so
// lights in the same process don't cycle in lockstep.
func newCycleSampler(lo, hi time.Duration) *cycleSampler {
	return &cycleSampler{
		rng:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		min:  lo,
		span: hi - lo,
	}
}

// Next returns the duration of the next segment.
func (s *cycleSampler) Next() time.Duration {
	return s.min + time.Duration(s.rng.Int64N(int64(s.span)))
}
