package timing

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"imgmon/internal/sem"
)

// Clock supplies timestamps for interval measurement.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock reads the wall clock; its readings carry the monotonic component
// so intervals are immune to clock steps.
var SystemClock Clock = systemClock{}

// Options bound one collection pass.
type Options struct {
	// MaxSamples is the number of intervals after which the pass ends.
	MaxSamples int
	// Timeout ends the pass once this much time has elapsed since the start
	// timestamp. Zero or negative disables the time budget.
	Timeout time.Duration
	// Warmup is the number of waits performed before timing starts. Signals
	// that report their backlog are drained of at most that many posts.
	Warmup int
}

// Pass is the outcome of one collection pass. Samples are inter-arrival
// intervals in seconds, in collection order.
type Pass struct {
	Samples     []float64
	MaxInterval float64
	MaxIndex    int
	Elapsed     time.Duration
	// CounterDelta is the number of producer events counted during the pass,
	// excluding the wait that took the start timestamp.
	CounterDelta int64
}

// Missed returns how many producer events were not observed as an interval.
func (p Pass) Missed() int64 {
	return p.CounterDelta - int64(len(p.Samples))
}

// backlog is implemented by signals that know their pending post count.
type backlog interface {
	Value() int
}

// Collect measures inter-arrival intervals of signal into buf (which is
// truncated first and grown up to opts.MaxSamples). The returned Pass aliases buf.
func Collect(ctx context.Context, signal sem.Signal, clock Clock, opts Options, buf []float64) (Pass, error) {
	pass := Pass{Samples: buf[:0]}

	if signal == nil {
		return pass, ErrSignalUnavailable
	}

	if clock == nil {
		clock = SystemClock
	}

	wait := func() error {
		if err := signal.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return errors.Wrapf(ErrSignalUnavailable, "wait: %v", err)
		}

		return nil
	}

	warmup := opts.Warmup
	if b, ok := signal.(backlog); ok {
		warmup = min(warmup, b.Value())
	}

	for i := 0; i < warmup; i++ {
		if err := wait(); err != nil {
			return pass, err
		}
	}

	counterStart := signal.Counter()

	if err := wait(); err != nil {
		return pass, err
	}

	start := clock.Now()
	prev := start

	for len(pass.Samples) < opts.MaxSamples {
		if err := wait(); err != nil {
			pass.Elapsed = prev.Sub(start)

			return pass, err
		}

		now := clock.Now()
		interval := now.Sub(prev).Seconds()
		prev = now

		if interval > pass.MaxInterval {
			pass.MaxInterval = interval
			pass.MaxIndex = len(pass.Samples)
		}

		pass.Samples = append(pass.Samples, interval)

		if opts.Timeout > 0 && now.Sub(start) > opts.Timeout {
			break
		}
	}

	pass.Elapsed = prev.Sub(start)
	pass.CounterDelta = int64(signal.Counter()) - int64(counterStart) - 1

	return pass, nil
}
