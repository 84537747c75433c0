// internal/signal/channel.go

package signal

import (
	"context"
	"errors"
	"sync"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
)

// ErrConcurrentReceive is returned by Receive when another goroutine is
// already blocked receiving from the same channel.
var ErrConcurrentReceive = errors.New("signal: channel already has a receiver")

// Channel is a single-consumer blocking handoff that only ever delivers the
// most recently sent value.
//
// Values sent between two receives are buffered, but a receive takes the last
// one and discards the rest. It is not a FIFO queue.
type Channel[T any] struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     *doublylinkedlist.List // pending values, oldest first
	receiving bool                   // a receiver is inside Receive
	dropped   uint64                 // values discarded by receives
}

// New returns an empty channel.
func New[T any]() *Channel[T] {
	c := &Channel[T]{queue: doublylinkedlist.New()}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Send appends v and wakes the receiver, if one is blocked. It never blocks
// beyond the short critical section.
func (c *Channel[T]) Send(v T) {
	c.mu.Lock()
	c.queue.Add(v)
	c.mu.Unlock()

	c.cond.Signal()
}

// Receive blocks until at least one value has been sent since the previous
// receive, then returns the latest value and clears the buffer.
//
// It returns ctx.Err() if ctx is done first, and ErrConcurrentReceive if
// another goroutine is already receiving.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	var zero T

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.receiving {
		return zero, ErrConcurrentReceive
	}
	c.receiving = true
	defer func() { c.receiving = false }()

	// Wake the wait below when ctx is done. Broadcast under the lock so the
	// wakeup can't slip in between the ctx check and cond.Wait.
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cond.Broadcast()
	})
	defer stop()

	for c.queue.Empty() {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		c.cond.Wait()
	}

	last, _ := c.queue.Get(c.queue.Size() - 1)
	c.dropped += uint64(c.queue.Size() - 1)
	c.queue.Clear()

	return last.(T), nil
}

// Len returns the number of values buffered since the last receive.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Size()
}

// Dropped returns the total number of values that were discarded because a
// later value was sent before they were received.
func (c *Channel[T]) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
