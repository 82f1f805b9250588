package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgmon/internal/pixstats"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()

	fs := NewFlagSet()
	fs.SetOutput(new(discardWriter))

	return Load(fs, args)
}

type discardWriter struct{}

func (*discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestDefaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "im0", cfg.Stream.Name)
	assert.Equal(t, pixstats.KindFloat32, cfg.Kind())
	assert.Equal(t, []int{256, 256}, cfg.Stream.Shape)
	assert.Equal(t, 10000, cfg.Timing.Samples)
	assert.Equal(t, 1000, cfg.Timing.Landmarks)
	assert.Equal(t, 20, cfg.Histogram.Bins)
	assert.Equal(t, ScreenSummary, cfg.Display.Screen)
	assert.Equal(t, 500*time.Millisecond, cfg.Display.Refresh)
	assert.Equal(t, 500*time.Millisecond, cfg.PassTimeout())
	assert.Equal(t, -1, cfg.Timing.Warmup)
	assert.Equal(t, cfg.Stream.SemMax, cfg.PassWarmup())
	assert.Equal(t, "hdr", cfg.Lifetime.Mode)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Metrics.Listen)
}

func TestFlagsOverride(t *testing.T) {
	cfg, err := load(t,
		"--stream", "cam2",
		"--kind", "uint16",
		"--shape", "4,8",
		"--samples", "500",
		"--timeout", "2s",
		"-s", "timing",
		"-b",
		"--frames", "3",
	)
	require.NoError(t, err)

	assert.Equal(t, "cam2", cfg.Stream.Name)
	assert.Equal(t, pixstats.KindUint16, cfg.Kind())
	assert.Equal(t, []int{4, 8}, cfg.Stream.Shape)
	assert.Equal(t, 500, cfg.Timing.Samples)
	assert.Equal(t, 2*time.Second, cfg.PassTimeout())
	assert.Equal(t, ScreenTiming, cfg.Display.Screen)
	assert.True(t, cfg.Display.Batch)
	assert.Equal(t, 3, cfg.Display.Frames)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("IMGMON_TIMING_SAMPLES", "123")
	t.Setenv("IMGMON_LOG_LEVEL", "debug")

	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, 123, cfg.Timing.Samples)
	assert.Equal(t, "debug", cfg.Log.Level)

	// flags still win over the environment
	cfg, err = load(t, "--samples", "7")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Timing.Samples)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imgmon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stream:
  name: wfs
  kind: int16
  shape: [32, 32]
  rate: 250
timing:
  samples: 2000
  warmup: 5
display:
  refresh: 1s
lifetime:
  mode: ddsketch
  alpha: 0.02
metrics:
  listen: ":9464"
`), 0o600))

	cfg, err := load(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "wfs", cfg.Stream.Name)
	assert.Equal(t, pixstats.KindInt16, cfg.Kind())
	assert.Equal(t, []int{32, 32}, cfg.Stream.Shape)
	assert.Equal(t, 250.0, cfg.Stream.Rate)
	assert.Equal(t, 2000, cfg.Timing.Samples)
	assert.Equal(t, 5, cfg.Timing.Warmup)
	assert.Equal(t, 5, cfg.PassWarmup())
	assert.Equal(t, time.Second, cfg.PassTimeout())
	assert.Equal(t, "ddsketch", cfg.Lifetime.Mode)
	assert.Equal(t, 0.02, cfg.Lifetime.Alpha)
	assert.Equal(t, ":9464", cfg.Metrics.Listen)
}

func TestMissingExplicitConfigFile(t *testing.T) {
	_, err := load(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}

func TestHelp(t *testing.T) {
	_, err := load(t, "--help")

	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"empty stream", []string{"--stream", ""}},
		{"bad kind", []string{"--kind", "complex64"}},
		{"zero axis", []string{"--shape", "4,0"}},
		{"zero rate", []string{"--rate", "0"}},
		{"jitter", []string{"--jitter", "1"}},
		{"no samples", []string{"--samples", "0"}},
		{"negative warmup", []string{"--warmup", "-2"}},
		{"no landmarks", []string{"--landmarks", "0"}},
		{"no bins", []string{"--bins", "0"}},
		{"no refresh", []string{"--refresh", "0s"}},
		{"bad screen", []string{"--screen", "graph"}},
		{"bad colour", []string{"--color", "sometimes"}},
		{"bad tracker", []string{"--lifetime", "tdigest"}},
		{"bad alpha", []string{"--lifetime", "ddsketch", "--alpha", "0"}},
		{"bad retry", []string{"--retry-initial", "2s", "--retry-max", "1s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args...)

			assert.Error(t, err)
		})
	}
}
