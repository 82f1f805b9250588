// Package stream simulates an image stream producer: it rewrites a typed
// frame at a configured rate with timing jitter and posts a frame-ready
// semaphore after every write.
package stream

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"imgmon/internal/pixstats"
	"imgmon/internal/sem"
)

// Config describes the simulated stream.
type Config struct {
	Name  string
	Kind  pixstats.Kind
	Shape []int
	// Rate is the nominal frame rate in Hz.
	Rate float64
	// Jitter spreads each frame period uniformly over ±Jitter of nominal.
	Jitter float64
	// Slots is the length of the producer's frame ring; Cnt1 is the slot
	// written last.
	Slots  int
	SemMax int
	Seed   int64
}

// Status is a point-in-time view of the producer counters.
type Status struct {
	Cnt0     uint64
	Cnt1     uint64
	Writing  bool
	SemValue int
	SemMax   int
	Dropped  uint64
}

// Stream is a running simulated producer.
type Stream struct {
	cfg    Config
	logger log.Logger
	sem    *sem.Semaphore
	period time.Duration
	rng    *rand.Rand

	mu    sync.RWMutex
	frame frame

	cnt0    atomic.Uint64
	cnt1    atomic.Uint64
	writing atomic.Bool
}

// New validates cfg and allocates the frame.
func New(cfg Config, logger log.Logger) (*Stream, error) {
	if cfg.Name == "" {
		return nil, errors.New("stream name is required")
	}

	if cfg.Rate <= 0 {
		return nil, errors.Errorf("%s: frame rate must be positive (got %g)", cfg.Name, cfg.Rate)
	}

	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		return nil, errors.Errorf("%s: jitter must be in [0, 1) (got %g)", cfg.Name, cfg.Jitter)
	}

	n := 1
	for _, d := range cfg.Shape {
		if d < 1 {
			return nil, errors.Errorf("%s: invalid shape %v", cfg.Name, cfg.Shape)
		}
		n *= d
	}
	if len(cfg.Shape) == 0 {
		return nil, errors.Errorf("%s: shape is required", cfg.Name)
	}

	f, ok := newFrame(cfg.Kind, n)
	if !ok {
		return nil, errors.Errorf("%s: unsupported element kind %s", cfg.Name, cfg.Kind)
	}

	if cfg.Slots < 1 {
		cfg.Slots = 1
	}

	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	if logger == nil {
		logger = log.NewNopLogger()
	}

	return &Stream{
		cfg:    cfg,
		logger: log.With(logger, "component", "stream", "stream", cfg.Name),
		sem:    sem.New(cfg.Name, cfg.SemMax),
		period: time.Duration(float64(time.Second) / cfg.Rate),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		frame:  f,
	}, nil
}

func (s *Stream) Name() string {
	return s.cfg.Name
}

func (s *Stream) Kind() pixstats.Kind {
	return s.cfg.Kind
}

func (s *Stream) Shape() []int {
	return s.cfg.Shape
}

// Period returns the nominal frame period.
func (s *Stream) Period() time.Duration {
	return s.period
}

// Signal returns the frame-ready semaphore consumers wait on.
func (s *Stream) Signal() *sem.Semaphore {
	return s.sem
}

// Step writes one frame and posts the semaphore. It must not run
// concurrently with Run.
func (s *Stream) Step() {
	s.writing.Store(true)
	s.mu.Lock()
	cnt := s.cnt0.Load()
	s.frame.fill(s.rng, cnt)
	s.mu.Unlock()
	s.writing.Store(false)

	s.cnt1.Store(cnt % uint64(s.cfg.Slots))
	s.cnt0.Inc()
	s.sem.Post()
}

// nextDelay draws the next frame period. Only the producer goroutine calls it.
func (s *Stream) nextDelay() time.Duration {
	if s.cfg.Jitter == 0 {
		return s.period
	}

	spread := s.cfg.Jitter * (2*s.rng.Float64() - 1)

	return time.Duration(float64(s.period) * (1 + spread))
}

// Run produces frames until ctx is done, then closes the semaphore so that
// blocked consumers wake up.
func (s *Stream) Run(ctx context.Context) error {
	defer s.sem.Close()

	level.Info(s.logger).Log("msg", "producer started", "rate_hz", s.cfg.Rate, "jitter", s.cfg.Jitter,
		"kind", s.cfg.Kind, "elements", s.elements())

	timer := time.NewTimer(s.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			level.Info(s.logger).Log("msg", "producer stopped", "frames", s.cnt0.Load(), "dropped", s.sem.Dropped())

			return nil
		case <-timer.C:
			s.Step()
			timer.Reset(s.nextDelay())
		}
	}
}

func (s *Stream) elements() int {
	n := 1
	for _, d := range s.cfg.Shape {
		n *= d
	}

	return n
}

// Snapshot copies the current frame into a Buffer.
func (s *Stream) Snapshot() (pixstats.Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.frame.snapshot(s.cfg.Name, s.cfg.Shape)
}

func (s *Stream) Status() Status {
	return Status{
		Cnt0:     s.cnt0.Load(),
		Cnt1:     s.cnt1.Load(),
		Writing:  s.writing.Load(),
		SemValue: s.sem.Value(),
		SemMax:   s.sem.MaxValue(),
		Dropped:  s.sem.Dropped(),
	}
}
