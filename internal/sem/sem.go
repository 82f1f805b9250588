// Package sem provides the frame-ready signal a stream producer posts once per
// written frame and a monitor waits on before timing the next interval.
package sem

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// DefaultMaxValue bounds the number of pending posts a Semaphore keeps.
const DefaultMaxValue = 100

// ErrClosed is returned by Wait once the semaphore has been closed.
var ErrClosed = errors.New("semaphore closed")

// Signal is the consumer side of a frame-ready signal.
type Signal interface {
	// Wait blocks until the producer posts, the signal is closed or ctx ends.
	Wait(ctx context.Context) error
	// Counter returns the producer's monotonic event counter.
	Counter() uint64
}

// Semaphore is a bounded counting semaphore. Posts beyond MaxValue are dropped
// but still advance the event counter, so a slow consumer can detect drift.
type Semaphore struct {
	name    string
	pending chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	counter atomic.Uint64
	dropped atomic.Uint64
}

// New creates a semaphore holding at most maxValue pending posts.
func New(name string, maxValue int) *Semaphore {
	if maxValue < 1 {
		maxValue = DefaultMaxValue
	}

	return &Semaphore{
		name:    name,
		pending: make(chan struct{}, maxValue),
		done:    make(chan struct{}),
	}
}

// Name returns the stream name the semaphore belongs to.
func (s *Semaphore) Name() string {
	return s.name
}

// Post records one producer event and releases one waiter.
func (s *Semaphore) Post() {
	if s.closed.Load() {
		return
	}

	s.counter.Inc()

	select {
	case s.pending <- struct{}{}:
	default:
		s.dropped.Inc()
	}
}

// Wait implements Signal.
func (s *Semaphore) Wait(ctx context.Context) error {
	// Pending posts are consumed before the closed state is reported.
	select {
	case <-s.pending:
		return nil
	default:
	}

	select {
	case <-s.pending:
		return nil
	case <-s.done:
		return errors.Wrap(ErrClosed, s.name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Counter implements Signal.
func (s *Semaphore) Counter() uint64 {
	return s.counter.Load()
}

// Value returns the number of pending posts.
func (s *Semaphore) Value() int {
	return len(s.pending)
}

// MaxValue returns the pending-post bound.
func (s *Semaphore) MaxValue() int {
	return cap(s.pending)
}

// Dropped returns how many posts were discarded because the semaphore was full.
func (s *Semaphore) Dropped() uint64 {
	return s.dropped.Load()
}

// Close wakes every waiter with ErrClosed. Further posts are ignored.
func (s *Semaphore) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.done)
	}
}
