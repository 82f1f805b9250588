package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgmon/internal/config"
	"imgmon/internal/render"
	"imgmon/internal/sink"
)

func newTestApp(t *testing.T, args ...string) (*App, *sink.Recorder) {
	t.Helper()

	base := []string{"--shape", "4,4", "--kind", "uint16", "--rate", "2000", "--seed", "7",
		"--retry-initial", "1ms", "--retry-max", "2ms", "--width", "60"}

	cfg, err := config.Load(config.NewFlagSet(), append(base, args...))
	require.NoError(t, err)

	rec := &sink.Recorder{}
	app, err := newApp(cfg, log.NewNopLogger(), rec)
	require.NoError(t, err)

	return app, rec
}

func containsLine(texts []string, substr string) bool {
	for _, s := range texts {
		if strings.Contains(s, substr) {
			return true
		}
	}

	return false
}

func TestBatchSummaryStopsAfterFrames(t *testing.T) {
	app, rec := newTestApp(t, "--batch", "--frames", "2", "--refresh", "5ms")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, app.run(ctx))

	assert.Equal(t, 2, rec.Frames())
	texts := rec.Texts()
	assert.True(t, strings.HasPrefix(texts[0], "=== im0 "), texts[0])
	assert.True(t, containsLine(texts, "PIXEL VALUES"))
	assert.True(t, containsLine(texts, "uint16"))
	// 16 elements are dumped one per row
	assert.True(t, containsLine(texts, " 15  "))
}

func TestBatchTimingScreen(t *testing.T) {
	app, rec := newTestApp(t, "--batch", "--frames", "1", "--screen", "timing",
		"--samples", "5", "--refresh", "2s", "--jitter", "0")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, app.run(ctx))

	texts := rec.Texts()
	assert.True(t, containsLine(texts, "Listening on im0, collecting 5 samples"))
	assert.True(t, containsLine(texts, "samples = 5"))
	assert.True(t, containsLine(texts, "Max delay"))
}

func TestBatchHelpPrintsOnce(t *testing.T) {
	app, rec := newTestApp(t, "--batch", "--screen", "help")

	require.NoError(t, app.run(context.Background()))

	assert.Equal(t, 1, rec.Frames())
	assert.Equal(t, helpLines(), rec.Lines())
}

func TestTimingResetShowsBufferInit(t *testing.T) {
	app, _ := newTestApp(t, "--screen", "timing", "--samples", "3", "--sem-max", "50", "--warmup", "0")
	for i := 0; i < 10; i++ {
		app.stream.Step()
	}

	app.resetPending = true
	lines := app.timingLines(context.Background())

	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.Text()
	}

	assert.True(t, containsLine(texts, "BUFFER INIT"))
	assert.False(t, app.resetPending)
	assert.Equal(t, 1, app.session.Passes())
}

func TestFirstPassSkipsSemaphoreBacklog(t *testing.T) {
	app, _ := newTestApp(t, "--screen", "timing", "--samples", "10", "--rate", "200", "--jitter", "0")
	require.Equal(t, app.cfg.Stream.SemMax, app.session.Options().Warmup)

	// the summary screen leaves the semaphore full
	for i := 0; i < 2*app.cfg.Stream.SemMax; i++ {
		app.stream.Step()
	}
	require.Equal(t, app.cfg.Stream.SemMax, app.stream.Status().SemValue)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.stream.Run(ctx) }()

	report, err := app.session.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Pass.Samples, 10)

	// frames are 5ms apart; a queued post would show up as a near-zero interval
	for i, v := range report.Pass.Samples {
		assert.Greater(t, v, 1e-3, "interval %d", i)
	}

	cancel()
	require.NoError(t, <-done)
}

func TestFitHeight(t *testing.T) {
	lines := make([]render.Line, 30)

	assert.Len(t, fitHeight(lines, 24), 23)
	assert.Len(t, fitHeight(lines, 40), 30)
	assert.Len(t, fitHeight(lines, 0), 30)
}

func TestTimingSignalUnavailable(t *testing.T) {
	app, _ := newTestApp(t, "--screen", "timing", "--samples", "3")
	app.stream.Signal().Close()

	lines := app.timingLines(context.Background())

	last := lines[len(lines)-1]
	assert.Equal(t, render.Critical, last[0].Tier)
	assert.Contains(t, last.Text(), "frame signal unavailable")
	assert.Equal(t, 0, app.session.Passes())
}

func TestSummaryFrequencyNeedsTwoFrames(t *testing.T) {
	app, _ := newTestApp(t)

	first := app.summaryLines()
	require.NotEmpty(t, first)
	assert.Contains(t, first[1].Text(), "0.00 Hz")

	app.stream.Step()
	app.lastStatus = app.lastStatus.Add(-time.Second)

	second := app.summaryLines()
	assert.Contains(t, second[1].Text(), "Hz")
	assert.NotContains(t, second[1].Text(), "[  0.00 Hz]")
}

func TestHandleKey(t *testing.T) {
	tests := []struct {
		name   string
		keys   string
		screen Screen
		quit   bool
		reset  bool
	}{
		{name: "quit", keys: "q", screen: ScreenSummary, quit: true},
		{name: "exit", keys: "x", screen: ScreenSummary, quit: true},
		{name: "help", keys: "h", screen: ScreenHelp},
		{name: "digit timing", keys: "3", screen: ScreenTiming},
		{name: "digit summary", keys: "2", screen: ScreenSummary},
		{name: "space on summary", keys: " ", screen: ScreenSummary},
		{name: "F1 ss3", keys: "\x1bOP", screen: ScreenHelp},
		{name: "F3 ss3", keys: "\x1bOR", screen: ScreenTiming},
		{name: "F3 csi", keys: "\x1b[13~", screen: ScreenTiming},
		{name: "F1 csi", keys: "\x1b[11~", screen: ScreenHelp},
		{name: "lone escape", keys: "\x1b", screen: ScreenSummary},
		{name: "unknown csi", keys: "\x1b[15~", screen: ScreenSummary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &App{screen: ScreenSummary}

			keyCh := make(chan byte, 10)
			for i := 1; i < len(tt.keys); i++ {
				keyCh <- tt.keys[i]
			}

			quit := app.handleKey(tt.keys[0], keyCh)

			assert.Equal(t, tt.quit, quit)
			assert.Equal(t, tt.screen, app.screen)
			assert.Equal(t, tt.reset, app.resetPending)
		})
	}
}

func TestSpaceResetsOnlyTimingScreen(t *testing.T) {
	app := &App{screen: ScreenTiming}

	assert.False(t, app.handleKey(' ', make(chan byte)))
	assert.True(t, app.resetPending)
}

func TestParseScreen(t *testing.T) {
	assert.Equal(t, ScreenHelp, parseScreen(config.ScreenHelp))
	assert.Equal(t, ScreenTiming, parseScreen(config.ScreenTiming))
	assert.Equal(t, ScreenSummary, parseScreen(config.ScreenSummary))
	assert.Equal(t, ScreenSummary, parseScreen(""))
}
