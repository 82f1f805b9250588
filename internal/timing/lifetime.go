package timing

import (
	"math"
	"strings"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/DataDog/sketches-go/ddsketch/mapping"
	"github.com/DataDog/sketches-go/ddsketch/store"
	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/pkg/errors"
)

const (
	// HDR histogram range: 1µs to 60s, 3 significant figures
	histMin    = 1
	histMax    = 60_000_000
	histSigFig = 3

	// DefaultSketchAlpha is the DDSketch relative accuracy (1%).
	DefaultSketchAlpha = 0.01
)

// Lifetime holds interval percentiles accumulated over a whole session, in µs.
type Lifetime struct {
	Count uint64
	Mean  float64
	P50   float64
	P90   float64
	P99   float64
	P999  float64
	Max   float64
}

// Tracker accumulates intervals across passes of a session.
type Tracker interface {
	// Record adds one interval in seconds.
	Record(seconds float64)
	Snapshot() Lifetime
	Reset()
}

// NewTracker returns the tracker named by mode: "hdr", "ddsketch" or "none"
// (which yields a nil Tracker).
func NewTracker(mode string, alpha float64) (Tracker, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "none":
		return nil, nil
	case "hdr":
		return NewHDRTracker(), nil
	case "ddsketch":
		t, err := NewSketchTracker(alpha)
		if err != nil {
			return nil, err
		}

		return t, nil
	default:
		return nil, errors.Errorf("unknown lifetime tracker %q", mode)
	}
}

func toMicros(seconds float64) float64 {
	return seconds * 1e6
}

// HDRTracker keeps lifetime intervals in an HDR histogram.
type HDRTracker struct {
	h *hdrhistogram.Histogram
}

func NewHDRTracker() *HDRTracker {
	return &HDRTracker{h: hdrhistogram.New(histMin, histMax, histSigFig)}
}

func (t *HDRTracker) Record(seconds float64) {
	us := math.Round(toMicros(seconds))
	us = math.Max(us, histMin)
	us = math.Min(us, histMax)

	_ = t.h.RecordValue(int64(us))
}

func (t *HDRTracker) Snapshot() Lifetime {
	n := t.h.TotalCount()
	if n == 0 {
		return Lifetime{}
	}

	return Lifetime{
		Count: uint64(n),
		Mean:  t.h.Mean(),
		P50:   float64(t.h.ValueAtQuantile(50)),
		P90:   float64(t.h.ValueAtQuantile(90)),
		P99:   float64(t.h.ValueAtQuantile(99)),
		P999:  float64(t.h.ValueAtQuantile(99.9)),
		Max:   float64(t.h.Max()),
	}
}

func (t *HDRTracker) Reset() {
	t.h.Reset()
}

// SketchTracker keeps lifetime intervals in a DDSketch, whose quantiles are
// within ±alpha of the true value. The mean is tracked exactly on the side.
type SketchTracker struct {
	alpha  float64
	sketch *ddsketch.DDSketch
	sum    float64
	count  uint64
}

func NewSketchTracker(alpha float64) (*SketchTracker, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.Errorf("alpha must be between 0 and 1 (got %.4f)", alpha)
	}

	t := &SketchTracker{alpha: alpha}
	if err := t.reset(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *SketchTracker) reset() error {
	m, err := mapping.NewLogarithmicMapping(t.alpha)
	if err != nil {
		return errors.Wrap(err, "ddsketch mapping")
	}

	t.sketch = ddsketch.NewDDSketch(m, store.NewDenseStore(), store.NewDenseStore())
	t.sum = 0
	t.count = 0

	return nil
}

func (t *SketchTracker) Record(seconds float64) {
	us := toMicros(seconds)
	if us < 1 {
		us = 1
	}

	if err := t.sketch.Add(us); err != nil {
		return
	}

	t.sum += us
	t.count++
}

func (t *SketchTracker) quantile(q float64) float64 {
	v, err := t.sketch.GetValueAtQuantile(q)
	if err != nil {
		return 0
	}

	return v
}

func (t *SketchTracker) Snapshot() Lifetime {
	if t.count == 0 {
		return Lifetime{}
	}

	return Lifetime{
		Count: t.count,
		Mean:  t.sum / float64(t.count),
		P50:   t.quantile(0.50),
		P90:   t.quantile(0.90),
		P99:   t.quantile(0.99),
		P999:  t.quantile(0.999),
		Max:   t.quantile(1.0),
	}
}

func (t *SketchTracker) Reset() {
	// The mapping was valid at construction, so rebuilding cannot fail.
	_ = t.reset()
}
