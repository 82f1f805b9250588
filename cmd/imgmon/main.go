package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"imgmon/internal/config"
	"imgmon/internal/logging"
	"imgmon/internal/sink"
)

func main() {
	fs := config.NewFlagSet()
	fs.Usage = func() { printHelp(fs) }

	cfg, err := config.Load(fs, os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "imgmon: %v\n", err)
		os.Exit(2)
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
		Stderr:     cfg.Display.Batch,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "imgmon: %v\n", err)
		os.Exit(2)
	}
	defer closer.Close()

	var out sink.LineSink
	if cfg.Display.Batch {
		out = sink.NewPlain(os.Stdout, cfg.Display.Width)
	} else {
		out = sink.NewTerminal(os.Stdout, sink.TerminalOptions{
			Color: sink.ColorMode(cfg.Display.Color),
			Raw:   true,
			Width: cfg.Display.Width,
		})
	}

	app, err := newApp(cfg, logger, out)
	if err != nil {
		level.Error(logger).Log("msg", "startup failed", "err", err)
		fmt.Fprintf(os.Stderr, "imgmon: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx); err != nil {
		level.Error(logger).Log("msg", "monitor failed", "err", err)
		fmt.Fprintf(os.Stderr, "imgmon: %v\n", err)
		closer.Close()
		os.Exit(1)
	}
}

func printHelp(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: imgmon [OPTIONS]

Monitor an image stream: frame timing jitter and pixel value distribution.

Options:
%s
Configuration is also read from imgmon.yaml (., $HOME/.imgmon, /etc/imgmon)
and IMGMON_* environment variables, e.g. IMGMON_TIMING_SAMPLES=5000.

Interactive Keys:
  h, F1, 1   Help
  F2, 2      Summary: stream counters and pixel histogram
  F3, 3      Timing: frame interval percentiles
  SPACE      Reset timing buffers and lifetime percentiles
  q, x       Quit

`, fs.FlagUsages())
}
