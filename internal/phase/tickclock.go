// internal/phase/tickclock.go

package phase

import (
	"sync"
	"sync/atomic"
	"time"
)

// tickClock emits polling ticks and counts them atomically.
//
// Ticks are coalesced: if the reader has not consumed the previous tick, the
// new one is counted but not delivered.
type tickClock struct {
	C     chan struct{}
	count atomic.Int64
	stop  chan struct{}
	once  sync.Once
}

// newTickClock creates a clock that is not yet ticking.
func newTickClock() *tickClock {
	return &tickClock{
		C:    make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// Start begins emitting ticks at the given interval.
func (c *tickClock) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
				select {
				case c.C <- struct{}{}:
				default:
				}
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop signals the clock to stop emitting ticks. It is safe to call more
// than once.
func (c *tickClock) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Count returns the number of ticks so far.
func (c *tickClock) Count() int64 {
	return c.count.Load()
}
