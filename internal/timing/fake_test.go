package timing

import (
	"context"
	"time"

	"imgmon/internal/sem"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// scriptedSignal advances the fake clock by the next scripted interval on
// every wait. Once the script is exhausted the last interval repeats.
type scriptedSignal struct {
	clock     *fakeClock
	intervals []time.Duration
	waits     int
	counter   uint64
	// extra is added to the counter on every wait, simulating posts the
	// consumer never sees.
	extra uint64
	// failAt makes the n-th wait (1-based) fail; 0 disables.
	failAt int
}

func (s *scriptedSignal) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.waits++
	if s.failAt > 0 && s.waits == s.failAt {
		return sem.ErrClosed
	}

	d := s.intervals[len(s.intervals)-1]
	if s.waits-1 < len(s.intervals) {
		d = s.intervals[s.waits-1]
	}

	s.clock.now = s.clock.now.Add(d)
	s.counter += 1 + s.extra

	return nil
}

func (s *scriptedSignal) Counter() uint64 {
	return s.counter
}

func micros(values ...int) []time.Duration {
	out := make([]time.Duration, len(values))
	for i, v := range values {
		out[i] = time.Duration(v) * time.Microsecond
	}

	return out
}
