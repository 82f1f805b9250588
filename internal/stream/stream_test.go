package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgmon/internal/pixstats"
	"imgmon/internal/sem"
)

func testConfig(kind pixstats.Kind) Config {
	return Config{
		Name:   "im1",
		Kind:   kind,
		Shape:  []int{16, 8},
		Rate:   1000,
		Slots:  4,
		SemMax: 8,
		Seed:   42,
	}
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no name", func(c *Config) { c.Name = "" }},
		{"zero rate", func(c *Config) { c.Rate = 0 }},
		{"jitter too large", func(c *Config) { c.Jitter = 1 }},
		{"negative jitter", func(c *Config) { c.Jitter = -0.1 }},
		{"no shape", func(c *Config) { c.Shape = nil }},
		{"zero axis", func(c *Config) { c.Shape = []int{4, 0} }},
		{"bad kind", func(c *Config) { c.Kind = pixstats.KindInvalid }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(pixstats.KindUint16)
			tt.mutate(&cfg)

			_, err := New(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestStepAdvancesCounters(t *testing.T) {
	s, err := New(testConfig(pixstats.KindUint16), nil)
	require.NoError(t, err)
	assert.Equal(t, time.Millisecond, s.Period())

	for i := 0; i < 6; i++ {
		s.Step()
	}

	st := s.Status()
	assert.Equal(t, uint64(6), st.Cnt0)
	assert.Equal(t, uint64(1), st.Cnt1)
	assert.False(t, st.Writing)
	assert.Equal(t, 6, st.SemValue)
	assert.Equal(t, 8, st.SemMax)
	assert.Equal(t, uint64(6), s.Signal().Counter())
}

func TestStepDropsBeyondSemaphoreBound(t *testing.T) {
	s, err := New(testConfig(pixstats.KindFloat32), nil)
	require.NoError(t, err)

	for i := 0; i < 11; i++ {
		s.Step()
	}

	st := s.Status()
	assert.Equal(t, 8, st.SemValue)
	assert.Equal(t, uint64(3), st.Dropped)
}

func TestSnapshotEveryKind(t *testing.T) {
	for k := pixstats.KindInt8; k <= pixstats.KindFloat64; k++ {
		t.Run(k.String(), func(t *testing.T) {
			s, err := New(testConfig(k), nil)
			require.NoError(t, err)
			s.Step()

			buf, err := s.Snapshot()
			require.NoError(t, err)

			assert.Equal(t, k, buf.Kind())
			assert.Equal(t, 128, buf.Len())
			assert.Equal(t, "16x8", buf.ShapeLabel())

			stats, err := pixstats.Compute(buf, 0)
			require.NoError(t, err)
			assert.Equal(t, 128, stats.Count)
			assert.GreaterOrEqual(t, stats.Min, 0.0)
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s, err := New(testConfig(pixstats.KindInt32), nil)
	require.NoError(t, err)
	s.Step()

	before, err := s.Snapshot()
	require.NoError(t, err)
	first := string(before.AppendText(nil, 5))

	for i := 0; i < 7; i++ {
		s.Step()
	}

	assert.Equal(t, first, string(before.AppendText(nil, 5)))
}

func TestNextDelayStaysWithinJitter(t *testing.T) {
	cfg := testConfig(pixstats.KindUint8)
	cfg.Jitter = 0.25

	s, err := New(cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		d := s.nextDelay()
		assert.GreaterOrEqual(t, d, 750*time.Microsecond)
		assert.LessOrEqual(t, d, 1250*time.Microsecond)
	}
}

func TestRunPostsAndClosesSignal(t *testing.T) {
	cfg := testConfig(pixstats.KindUint16)
	cfg.SemMax = 1000

	s, err := New(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Signal().Wait(waitCtx))
	}

	cancel()
	require.NoError(t, <-done)

	// drain whatever is pending, then the closed state shows
	var err2 error
	for err2 == nil {
		err2 = s.Signal().Wait(waitCtx)
	}
	assert.ErrorIs(t, err2, sem.ErrClosed)
	assert.GreaterOrEqual(t, s.Status().Cnt0, uint64(3))
}
