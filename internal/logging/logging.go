// Package logging builds the go-kit logger shared by the command and the
// core packages.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where and how log records are written.
type Options struct {
	// Level is one of debug, info, warn, error or none.
	Level string
	// Format is logfmt or json.
	Format string
	// File, when set, receives logs through a rotating writer.
	File       string
	MaxSizeMB  int
	MaxBackups int
	Compress   bool
	// Stderr sends logs to standard error when no file is configured. It is
	// off while the screen owns the terminal.
	Stderr bool
}

// New returns the configured logger and a closer for its output.
func New(opts Options) (log.Logger, io.Closer, error) {
	allow, err := levelOption(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)

	switch {
	case opts.File != "":
		if opts.MaxSizeMB == 0 {
			opts.MaxSizeMB = 10
		}
		if opts.MaxBackups == 0 {
			opts.MaxBackups = 10
		}

		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   opts.Compress,
		}
		w, closer = lj, lj
	case opts.Stderr:
		w = os.Stderr
	default:
		return log.NewNopLogger(), closer, nil
	}

	logger, err := newFormatLogger(opts.Format, log.NewSyncWriter(w))
	if err != nil {
		return nil, nil, err
	}

	logger = level.NewFilter(logger, allow)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	return logger, closer, nil
}

func newFormatLogger(format string, w io.Writer) (log.Logger, error) {
	switch strings.ToLower(format) {
	case "", "logfmt":
		return log.NewLogfmtLogger(w), nil
	case "json":
		return log.NewJSONLogger(w), nil
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
}

func levelOption(name string) (level.Option, error) {
	switch strings.ToLower(name) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	default:
		return nil, errors.Errorf("unknown log level %q", name)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
