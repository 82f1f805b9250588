package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/cenkalti/backoff"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"imgmon/internal/config"
	"imgmon/internal/metrics"
	"imgmon/internal/pixstats"
	"imgmon/internal/render"
	"imgmon/internal/sink"
	"imgmon/internal/stream"
	"imgmon/internal/timing"
)

type Screen int

const (
	ScreenHelp Screen = iota + 1
	ScreenSummary
	ScreenTiming
)

var screenNames = map[Screen]string{
	ScreenHelp:    "[h] Help",
	ScreenSummary: "[F2] summary",
	ScreenTiming:  "[F3] timing",
}

func parseScreen(name string) Screen {
	switch name {
	case config.ScreenHelp:
		return ScreenHelp
	case config.ScreenTiming:
		return ScreenTiming
	default:
		return ScreenSummary
	}
}

type App struct {
	cfg     *config.Config
	logger  log.Logger
	out     sink.LineSink
	stream  *stream.Stream
	session *timing.Session
	metrics *metrics.Metrics
	retry   *backoff.ExponentialBackOff

	screen       Screen
	resetPending bool
	startTime    time.Time

	// summary screen state
	rms        ewma.MovingAverage
	lastCnt0   uint64
	lastStatus time.Time
}

func newApp(cfg *config.Config, logger log.Logger, out sink.LineSink) (*App, error) {
	st, err := stream.New(stream.Config{
		Name:   cfg.Stream.Name,
		Kind:   cfg.Kind(),
		Shape:  cfg.Stream.Shape,
		Rate:   cfg.Stream.Rate,
		Jitter: cfg.Stream.Jitter,
		Slots:  cfg.Stream.Slots,
		SemMax: cfg.Stream.SemMax,
		Seed:   cfg.Stream.Seed,
	}, logger)
	if err != nil {
		return nil, err
	}

	tracker, err := timing.NewTracker(cfg.Lifetime.Mode, cfg.Lifetime.Alpha)
	if err != nil {
		return nil, err
	}

	session, err := timing.NewSession(st.Signal(), timing.SessionConfig{
		Options: timing.Options{
			MaxSamples: cfg.Timing.Samples,
			Timeout:    cfg.PassTimeout(),
			Warmup:     cfg.PassWarmup(),
		},
		MaxLandmarks: cfg.Timing.Landmarks,
		Tracker:      tracker,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = cfg.Retry.Initial
	retry.MaxInterval = cfg.Retry.Max
	retry.MaxElapsedTime = 0
	retry.Reset()

	m := metrics.New(cfg.Stream.Name)
	m.WatchProducer(
		func() uint64 { return st.Status().Cnt0 },
		func() uint64 { return st.Status().Dropped },
	)

	return &App{
		cfg:     cfg,
		logger:  log.With(logger, "component", "app"),
		out:     out,
		stream:  st,
		session: session,
		metrics: m,
		retry:   retry,
		screen:  parseScreen(cfg.Display.Screen),
		// 19-sample age gives the 0.9/0.1 exponential smoothing
		rms: ewma.NewMovingAverage(19),
	}, nil
}

// run starts the producer, the optional metrics endpoint and the screen, and
// returns when the screen quits or ctx ends.
func (app *App) run(ctx context.Context) error {
	defer app.session.Close()

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)

	app.startTime = time.Now()

	g.Go(func() error {
		return app.stream.Run(ctx)
	})

	if addr := app.cfg.Metrics.Listen; addr != "" {
		g.Go(func() error {
			return app.metrics.Serve(ctx, addr, app.logger)
		})
	}

	g.Go(func() error {
		defer cancel()

		if app.cfg.Display.Batch {
			return app.runBatch(ctx)
		}

		return app.runInteractive(ctx)
	})

	return g.Wait()
}

func (app *App) runBatch(ctx context.Context) error {
	level.Info(app.logger).Log("msg", "batch mode started", "screen", screenNames[app.screen])

	if app.screen == ScreenHelp {
		return sink.WriteFrame(app.out, helpLines())
	}

	ticker := time.NewTicker(app.cfg.Display.Refresh)
	defer ticker.Stop()

	for frames := 1; ; frames++ {
		lines := append([]render.Line{
			render.Linef(render.Dim, "=== %s  %s ===", app.stream.Name(), time.Now().Format(time.RFC3339)),
		}, app.screenLines(ctx)...)

		if ctx.Err() != nil {
			return nil
		}

		if err := sink.WriteFrame(app.out, lines); err != nil {
			return err
		}

		if app.cfg.Display.Frames > 0 && frames >= app.cfg.Display.Frames {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (app *App) runInteractive(ctx context.Context) error {
	fd := int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return errors.Wrap(err, "set raw mode (use --batch without a terminal)")
	}
	defer term.Restore(fd, oldState)

	// Hide cursor, clear screen
	fmt.Print("\033[?25l\033[2J")
	defer fmt.Print("\033[?25h\r\n")

	keyCh := make(chan byte, 10)
	go func() {
		buf := make([]byte, 8)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			for i := 0; i < n; i++ {
				keyCh <- buf[i]
			}
		}
	}()

	ticker := time.NewTicker(app.cfg.Display.Refresh)
	defer ticker.Stop()

	for {
		if err := app.draw(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case key := <-keyCh:
			if app.handleKey(key, keyCh) {
				return nil
			}
		}
	}
}

func (app *App) draw(ctx context.Context) error {
	lines := append(app.menuLines(), app.screenLines(ctx)...)
	if ctx.Err() != nil {
		return nil
	}

	if t, ok := app.out.(*sink.Terminal); ok {
		t.Resize()
		lines = fitHeight(lines, t.Height())
	}

	return sink.WriteFrame(app.out, lines)
}

// fitHeight keeps a frame one row short of the screen, since the newline after
// the bottom row would scroll the cursor-home redraw.
func fitHeight(lines []render.Line, rows int) []render.Line {
	if rows > 1 && len(lines) > rows-1 {
		return lines[:rows-1]
	}

	return lines
}

func (app *App) menuLines() []render.Line {
	title := render.Line{
		{Text: "imgmon", Tier: render.Bold},
		{Text: fmt.Sprintf(" %s (refresh: %v, up %s)", app.stream.Name(), app.cfg.Display.Refresh,
			formatUptime(time.Since(app.startTime))), Tier: render.Dim},
	}

	menu := render.Line{}
	for _, s := range []Screen{ScreenHelp, ScreenSummary, ScreenTiming} {
		tier := render.Dim
		if s == app.screen {
			tier = render.Heading
		}
		menu = append(menu, render.Span{Text: screenNames[s], Tier: tier}, render.Span{Text: "   "})
	}

	return []render.Line{title, menu, render.Blank()}
}

func formatUptime(d time.Duration) string {
	return d.Truncate(time.Second).String()
}

func (app *App) screenLines(ctx context.Context) []render.Line {
	switch app.screen {
	case ScreenHelp:
		return helpLines()
	case ScreenTiming:
		return app.timingLines(ctx)
	default:
		return app.summaryLines()
	}
}

func helpLines() []render.Line {
	return []render.Line{
		render.Linef(render.Plain, "h / F2 / F3 : change screen (1 / 2 / 3 also work)"),
		render.Linef(render.Plain, "SPACE       : reset timing buffers (timing screen)"),
		render.Linef(render.Plain, "q / x       : exit"),
	}
}

func (app *App) summaryLines() []render.Line {
	st := app.stream.Status()

	now := time.Now()
	var freq float64
	if !app.lastStatus.IsZero() {
		if elapsed := now.Sub(app.lastStatus).Seconds(); elapsed > 0 {
			freq = float64(st.Cnt0-app.lastCnt0) / elapsed
		}
	}
	app.lastCnt0, app.lastStatus = st.Cnt0, now

	lines := render.Status(render.StreamStatus{
		Name:      app.stream.Name(),
		Kind:      app.stream.Kind(),
		Shape:     app.stream.Shape(),
		Writing:   st.Writing,
		Cnt0:      st.Cnt0,
		Cnt1:      st.Cnt1,
		Frequency: freq,
		SemValue:  st.SemValue,
		SemMax:    st.SemMax,
		Dropped:   st.Dropped,
	})

	buf, err := app.stream.Snapshot()
	if err != nil {
		return append(lines, render.Linef(render.Critical, "frame unavailable: %v", err))
	}

	stats, err := pixstats.Compute(buf, app.cfg.Histogram.Bins)
	if err != nil {
		level.Warn(app.logger).Log("msg", "pixel statistics skipped", "err", err)

		return append(lines, render.Linef(render.Warn, "pixel statistics unavailable: %v", err))
	}

	if app.rms.Value() == 0 {
		// prime past the ewma warm-up so the first frame is shown as is
		app.rms.Set(stats.RMS)
	} else {
		app.rms.Add(stats.RMS)
	}
	app.metrics.ObservePixels(stats)

	return append(lines, render.Pixels(buf, stats, app.rms.Value(), sink.WidthOf(app.out))...)
}

func (app *App) timingLines(ctx context.Context) []render.Line {
	opts := app.session.Options()
	lines := render.TimingBanner(app.stream.Name(), opts.MaxSamples, opts.Timeout)

	if app.resetPending {
		level.Info(app.logger).Log("msg", "timing buffers reset", "passes", app.session.Passes())
		app.session.Reset()
		app.resetPending = false
		lines = append(lines, render.Linef(render.Bold, "BUFFER INIT"))
	}

	report, err := app.session.Run(ctx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return lines
	case errors.Is(err, timing.ErrSignalUnavailable):
		app.metrics.SignalError()

		wait := app.retry.NextBackOff()
		level.Warn(app.logger).Log("msg", "frame signal unavailable", "err", err, "retry_in", wait)

		lines = append(lines, render.Linef(render.Critical, "frame signal unavailable: %v (retrying in %s)", err, wait))

		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}

		return lines
	default:
		level.Error(app.logger).Log("msg", "timing pass failed", "err", err)

		return append(lines, render.Linef(render.Critical, "timing pass failed: %v", err))
	}

	app.retry.Reset()
	app.metrics.ObserveReport(report)

	return append(lines, render.Timing(report)...)
}

// handleKey applies one key press and reports whether the monitor should quit.
func (app *App) handleKey(key byte, keyCh chan byte) bool {
	switch key {
	case 'q', 'Q', 'x', 'X', 0x03: // 0x03: Ctrl-C in raw mode
		return true
	case 'h', 'H', '1':
		app.screen = ScreenHelp
	case '2':
		app.screen = ScreenSummary
	case '3':
		app.screen = ScreenTiming
	case ' ':
		if app.screen == ScreenTiming {
			app.resetPending = true
		}
	case 0x1b: // Escape sequence
		if s, ok := readFunctionKey(keyCh); ok {
			app.screen = s
		}
	}

	return false
}

// readFunctionKey decodes F1-F3 in both the SS3 (ESC O P) and CSI
// (ESC [ 11 ~) encodings.
func readFunctionKey(keyCh chan byte) (Screen, bool) {
	next := func() (byte, bool) {
		select {
		case b := <-keyCh:
			return b, true
		case <-time.After(10 * time.Millisecond):
			return 0, false
		}
	}

	b, ok := next()
	if !ok {
		return 0, false
	}

	switch b {
	case 'O':
		code, ok := next()
		if !ok {
			return 0, false
		}

		switch code {
		case 'P':
			return ScreenHelp, true
		case 'Q':
			return ScreenSummary, true
		case 'R':
			return ScreenTiming, true
		}
	case '[':
		var seq strings.Builder
		for {
			c, ok := next()
			if !ok || c == '~' || seq.Len() > 4 {
				break
			}
			seq.WriteByte(c)
		}

		switch seq.String() {
		case "11":
			return ScreenHelp, true
		case "12":
			return ScreenSummary, true
		case "13":
			return ScreenTiming, true
		}
	}

	return 0, false
}
