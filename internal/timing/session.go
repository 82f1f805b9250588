package timing

import (
	"context"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"imgmon/internal/sem"
)

// MaxSampleCapacity caps the scratch buffer a session may allocate.
const MaxSampleCapacity = 1 << 26

// ErrSessionClosed is returned by Run after Close.
var ErrSessionClosed = errors.New("session closed")

// SessionConfig configures a Session.
type SessionConfig struct {
	Options

	MaxLandmarks int
	Clock        Clock
	// Tracker, when set, accumulates every interval of every pass.
	Tracker Tracker
	Logger  log.Logger
}

// Report is the analysed outcome of one pass. Pass.Samples is sorted and
// aliases the session buffer, so it is only valid until the next Run.
type Report struct {
	Number    int
	Pass      Pass
	Summary   Summary
	Landmarks []Landmark
	Lifetime  *Lifetime
}

// Median returns the median landmark of the report.
func (r *Report) Median() Landmark {
	if i := MedianIndex(r.Landmarks); i >= 0 {
		return r.Landmarks[i]
	}

	return Landmark{}
}

// Value returns the interval in seconds at a landmark.
func (r *Report) Value(l Landmark) float64 {
	return r.Pass.Samples[l.Index]
}

// Session owns the scratch buffers reused by consecutive passes on one signal.
// A Session is not safe for concurrent use.
type Session struct {
	signal sem.Signal
	cfg    SessionConfig
	logger log.Logger

	buf       []float64
	landmarks []Landmark
	landmarkN int
	passes    int
	closed    bool
}

// NewSession allocates the sample buffer for cfg.MaxSamples intervals.
func NewSession(signal sem.Signal, cfg SessionConfig) (*Session, error) {
	if cfg.MaxSamples < 1 || cfg.MaxSamples > MaxSampleCapacity {
		return nil, errors.Wrapf(ErrAllocation, "max samples %d outside [1, %d]", cfg.MaxSamples, MaxSampleCapacity)
	}

	if cfg.MaxLandmarks < 1 {
		cfg.MaxLandmarks = DefaultMaxLandmarks
	}

	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	s := &Session{
		signal: signal,
		cfg:    cfg,
		logger: log.With(logger, "component", "timing"),
		buf:    make([]float64, 0, cfg.MaxSamples),
	}

	level.Debug(s.logger).Log("msg", "session started", "max_samples", cfg.MaxSamples, "warmup", cfg.Warmup)

	return s, nil
}

// Options returns the collection bounds of the session.
func (s *Session) Options() Options {
	return s.cfg.Options
}

// Passes returns the number of completed passes since start or last Reset.
func (s *Session) Passes() int {
	return s.passes
}

// Run collects one pass and analyses it.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}

	pass, err := Collect(ctx, s.signal, s.cfg.Clock, s.cfg.Options, s.buf)
	if err != nil {
		return nil, err
	}

	if s.cfg.Tracker != nil {
		for _, v := range pass.Samples {
			s.cfg.Tracker.Record(v)
		}
	}

	summary, err := Summarize(pass.Samples)
	if err != nil {
		return nil, err
	}

	s.passes++

	report := &Report{
		Number:    s.passes,
		Pass:      pass,
		Summary:   summary,
		Landmarks: s.landmarksFor(len(pass.Samples)),
	}

	if s.cfg.Tracker != nil {
		lifetime := s.cfg.Tracker.Snapshot()
		report.Lifetime = &lifetime
	}

	if missed := pass.Missed(); missed > 0 {
		level.Warn(s.logger).Log("msg", "frames missed during pass", "pass", s.passes, "missed", missed)
	}

	return report, nil
}

// landmarksFor returns the cached landmarks when n is unchanged.
func (s *Session) landmarksFor(n int) []Landmark {
	if s.landmarks == nil || s.landmarkN != n {
		s.landmarks = BuildLandmarks(n, s.cfg.MaxLandmarks)
		s.landmarkN = n

		level.Debug(s.logger).Log("msg", "landmarks rebuilt", "samples", n, "landmarks", len(s.landmarks))
	}

	return s.landmarks
}

// Reset drops cached landmarks and lifetime statistics; the sample buffer is kept.
func (s *Session) Reset() {
	s.landmarks = nil
	s.landmarkN = 0
	s.passes = 0

	if s.cfg.Tracker != nil {
		s.cfg.Tracker.Reset()
	}

	level.Debug(s.logger).Log("msg", "session reset")
}

// Close releases the session buffers.
func (s *Session) Close() {
	if s.closed {
		return
	}

	s.closed = true
	s.buf = nil
	s.landmarks = nil

	level.Debug(s.logger).Log("msg", "session closed", "passes", s.passes)
}
