// Package config loads the command configuration from flags, environment
// variables (IMGMON_*) and an optional imgmon.yaml.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"imgmon/internal/pixstats"
	"imgmon/internal/timing"
)

// Screens the monitor can show.
const (
	ScreenHelp    = "help"
	ScreenSummary = "summary"
	ScreenTiming  = "timing"
)

type Stream struct {
	Name   string  `mapstructure:"name"`
	Kind   string  `mapstructure:"kind"`
	Shape  []int   `mapstructure:"shape"`
	Rate   float64 `mapstructure:"rate"`
	Jitter float64 `mapstructure:"jitter"`
	Slots  int     `mapstructure:"slots"`
	SemMax int     `mapstructure:"sem_max"`
	Seed   int64   `mapstructure:"seed"`
}

type Timing struct {
	Samples int `mapstructure:"samples"`
	Warmup  int `mapstructure:"warmup"`
	// Timeout bounds a pass; zero means one refresh period.
	Timeout   time.Duration `mapstructure:"timeout"`
	Landmarks int           `mapstructure:"landmarks"`
}

type Histogram struct {
	Bins int `mapstructure:"bins"`
}

type Display struct {
	Screen  string        `mapstructure:"screen"`
	Refresh time.Duration `mapstructure:"refresh"`
	Batch   bool          `mapstructure:"batch"`
	// Frames stops batch mode after this many screens; zero runs until interrupted.
	Frames int    `mapstructure:"frames"`
	Color  string `mapstructure:"color"`
	Width  int    `mapstructure:"width"`
}

type Lifetime struct {
	Mode  string  `mapstructure:"mode"`
	Alpha float64 `mapstructure:"alpha"`
}

type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

type Metrics struct {
	Listen string `mapstructure:"listen"`
}

type Retry struct {
	Initial time.Duration `mapstructure:"initial"`
	Max     time.Duration `mapstructure:"max"`
}

// Config is the complete command configuration.
type Config struct {
	Stream    Stream    `mapstructure:"stream"`
	Timing    Timing    `mapstructure:"timing"`
	Histogram Histogram `mapstructure:"histogram"`
	Display   Display   `mapstructure:"display"`
	Lifetime  Lifetime  `mapstructure:"lifetime"`
	Log       Log       `mapstructure:"log"`
	Metrics   Metrics   `mapstructure:"metrics"`
	Retry     Retry     `mapstructure:"retry"`
}

// binding maps a flag to its configuration key.
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{"stream.name", "stream"},
	{"stream.kind", "kind"},
	{"stream.shape", "shape"},
	{"stream.rate", "rate"},
	{"stream.jitter", "jitter"},
	{"stream.slots", "slots"},
	{"stream.sem_max", "sem-max"},
	{"stream.seed", "seed"},
	{"timing.samples", "samples"},
	{"timing.warmup", "warmup"},
	{"timing.timeout", "timeout"},
	{"timing.landmarks", "landmarks"},
	{"histogram.bins", "bins"},
	{"display.screen", "screen"},
	{"display.refresh", "refresh"},
	{"display.batch", "batch"},
	{"display.frames", "frames"},
	{"display.color", "color"},
	{"display.width", "width"},
	{"lifetime.mode", "lifetime"},
	{"lifetime.alpha", "alpha"},
	{"log.level", "log-level"},
	{"log.format", "log-format"},
	{"log.file", "log-file"},
	{"log.max_size_mb", "log-max-size"},
	{"log.max_backups", "log-max-backups"},
	{"log.compress", "log-compress"},
	{"metrics.listen", "metrics-listen"},
	{"retry.initial", "retry-initial"},
	{"retry.max", "retry-max"},
}

// NewFlagSet declares every command-line flag with its default.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("imgmon", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.String("config", "", "Config file (default: imgmon.yaml in ., $HOME/.imgmon, /etc/imgmon)")

	fs.String("stream", "im0", "Stream name")
	fs.String("kind", "float32", "Element kind: int8..int64, uint8..uint64, float32, float64")
	fs.IntSlice("shape", []int{256, 256}, "Frame shape")
	fs.Float64("rate", 1000, "Producer frame rate in Hz")
	fs.Float64("jitter", 0.05, "Producer period jitter, fraction of the period")
	fs.Int("slots", 1, "Producer frame ring length")
	fs.Int("sem-max", 100, "Frame semaphore bound")
	fs.Int64("seed", 0, "Producer random seed (0: time based)")

	fs.Int("samples", 10000, "Intervals collected per timing pass")
	fs.Int("warmup", -1, "Pending frames drained before a pass starts timing (-1: up to the semaphore bound)")
	fs.Duration("timeout", 0, "Timing pass budget (0: one refresh period)")
	fs.Int("landmarks", timing.DefaultMaxLandmarks, "Maximum percentile rows per pass")

	fs.Int("bins", pixstats.DefaultBins, "Pixel histogram bins")

	fs.StringP("screen", "s", ScreenSummary, "Initial screen: help, summary, timing")
	fs.Duration("refresh", 500*time.Millisecond, "Screen refresh period")
	fs.BoolP("batch", "b", false, "Batch mode: plain output, no screen control")
	fs.Int("frames", 0, "Batch mode: stop after this many screens (0: run until interrupted)")
	fs.String("color", "auto", "Colour: auto, always, never")
	fs.Int("width", 0, "Output width (0: detect)")

	fs.String("lifetime", "hdr", "Lifetime percentile tracker: hdr, ddsketch, none")
	fs.Float64("alpha", timing.DefaultSketchAlpha, "DDSketch relative accuracy")

	fs.String("log-level", "info", "Log level: debug, info, warn, error, none")
	fs.String("log-format", "logfmt", "Log format: logfmt, json")
	fs.String("log-file", "", "Log file (rotated); interactive mode logs nowhere without it")
	fs.Int("log-max-size", 10, "Log file size in MB before rotation")
	fs.Int("log-max-backups", 10, "Rotated log files kept")
	fs.Bool("log-compress", false, "Compress rotated log files")

	fs.String("metrics-listen", "", "Serve Prometheus metrics on this address (e.g. :9464)")

	fs.Duration("retry-initial", 100*time.Millisecond, "First retry delay after the frame signal fails")
	fs.Duration("retry-max", 5*time.Second, "Largest retry delay after the frame signal fails")

	return fs
}

// Load parses args into fs and resolves the configuration. It returns
// pflag.ErrHelp when help was requested.
func Load(fs *pflag.FlagSet, args []string) (*Config, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix("IMGMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		if err := v.BindPFlag(b.key, fs.Lookup(b.flag)); err != nil {
			return nil, errors.Wrapf(err, "bind flag %s", b.flag)
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("imgmon")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.imgmon")
		v.AddConfigPath("/etc/imgmon")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Stream.Name == "" {
		return errors.New("stream name is required")
	}

	if _, ok := pixstats.ParseKind(c.Stream.Kind); !ok {
		return errors.Errorf("unknown element kind %q", c.Stream.Kind)
	}

	if len(c.Stream.Shape) == 0 {
		return errors.New("stream shape is required")
	}
	for _, d := range c.Stream.Shape {
		if d < 1 {
			return errors.Errorf("invalid stream shape %v", c.Stream.Shape)
		}
	}

	if c.Stream.Rate <= 0 {
		return errors.Errorf("frame rate must be positive (got %g)", c.Stream.Rate)
	}

	if c.Stream.Jitter < 0 || c.Stream.Jitter >= 1 {
		return errors.Errorf("jitter must be in [0, 1) (got %g)", c.Stream.Jitter)
	}

	if c.Timing.Samples < 1 || c.Timing.Samples > timing.MaxSampleCapacity {
		return errors.Errorf("samples must be in [1, %d] (got %d)", timing.MaxSampleCapacity, c.Timing.Samples)
	}

	if c.Timing.Warmup < -1 {
		return errors.Errorf("warmup must be -1 or more (got %d)", c.Timing.Warmup)
	}

	if c.Timing.Landmarks < 1 {
		return errors.Errorf("landmarks must be positive (got %d)", c.Timing.Landmarks)
	}

	if c.Histogram.Bins < 1 {
		return errors.Errorf("bins must be positive (got %d)", c.Histogram.Bins)
	}

	if c.Display.Refresh <= 0 {
		return errors.Errorf("refresh must be positive (got %s)", c.Display.Refresh)
	}

	switch c.Display.Screen {
	case ScreenHelp, ScreenSummary, ScreenTiming:
	default:
		return errors.Errorf("unknown screen %q", c.Display.Screen)
	}

	switch c.Display.Color {
	case "auto", "always", "never":
	default:
		return errors.Errorf("unknown colour mode %q", c.Display.Color)
	}

	switch strings.ToLower(c.Lifetime.Mode) {
	case "hdr", "none", "":
	case "ddsketch":
		if c.Lifetime.Alpha <= 0 || c.Lifetime.Alpha >= 1 {
			return errors.Errorf("alpha must be in (0, 1) (got %g)", c.Lifetime.Alpha)
		}
	default:
		return errors.Errorf("unknown lifetime tracker %q", c.Lifetime.Mode)
	}

	if c.Retry.Initial <= 0 || c.Retry.Max < c.Retry.Initial {
		return errors.Errorf("retry delays must satisfy 0 < initial <= max (got %s, %s)", c.Retry.Initial, c.Retry.Max)
	}

	return nil
}

// PassTimeout is the effective timing pass budget.
func (c *Config) PassTimeout() time.Duration {
	if c.Timing.Timeout > 0 {
		return c.Timing.Timeout
	}

	return c.Display.Refresh
}

// PassWarmup is the effective number of pending frames drained before a pass.
func (c *Config) PassWarmup() int {
	if c.Timing.Warmup < 0 {
		return c.Stream.SemMax
	}

	return c.Timing.Warmup
}

// Kind returns the parsed element kind.
func (c *Config) Kind() pixstats.Kind {
	k, _ := pixstats.ParseKind(c.Stream.Kind)

	return k
}
