package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgmon/internal/pixstats"
	"imgmon/internal/timing"
)

func report(t *testing.T, n int, delta int64) *timing.Report {
	t.Helper()

	samples := make([]float64, n)
	for i := range samples {
		samples[i] = float64(i+1) * 1e-3
	}

	summary, err := timing.Summarize(samples)
	require.NoError(t, err)

	return &timing.Report{
		Number:    1,
		Pass:      timing.Pass{Samples: samples, CounterDelta: delta},
		Summary:   summary,
		Landmarks: timing.BuildLandmarks(n, timing.DefaultMaxLandmarks),
	}
}

func TestObserveReport(t *testing.T) {
	m := New("im1")

	m.ObserveReport(report(t, 10, 12))
	m.ObserveReport(report(t, 10, 10))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.passes))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.samples))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.missed))
	assert.InDelta(t, 5.5e-3, testutil.ToFloat64(m.interval.WithLabelValues("mean")), 1e-12)
	assert.Equal(t, 9, testutil.CollectAndCount(m.landmarks))
	assert.InDelta(t, 6e-3, testutil.ToFloat64(m.landmarks.WithLabelValues("0.5")), 1e-12)

	// fewer samples, fewer landmarks; stale ranks disappear
	m.ObserveReport(report(t, 3, 3))
	assert.Equal(t, 2, testutil.CollectAndCount(m.landmarks))
}

func TestObservePixels(t *testing.T) {
	m := New("im1")

	buf, err := pixstats.NewBuffer("im1", []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	require.NoError(t, err)
	s, err := pixstats.Compute(buf, 5)
	require.NoError(t, err)

	m.ObservePixels(s)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.pixels.WithLabelValues("max")))
	assert.Equal(t, 55.0, testutil.ToFloat64(m.pixels.WithLabelValues("total")))
	assert.Equal(t, 5, testutil.CollectAndCount(m.bins))
}

func TestWatchProducerAndHandler(t *testing.T) {
	m := New("im1")

	frames := uint64(41)
	m.WatchProducer(func() uint64 { frames++; return frames }, func() uint64 { return 7 })
	m.SignalError()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "imgmon_stream_frames_total 42")
	assert.Contains(t, body, "imgmon_stream_dropped_posts_total 7")
	assert.True(t, strings.Contains(body, `imgmon_timing_signal_errors_total{stream="im1"} 1`), body)
}
