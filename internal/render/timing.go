package render

import (
	"fmt"
	"time"

	"imgmon/internal/timing"
)

// Ratios to the median interval above which a row is highlighted.
const (
	WarnRatio     = 1.2
	AlertRatio    = 1.5
	CriticalRatio = 1.99
)

// TierFor classifies value against the median interval. Thresholds are strict.
func TierFor(value, median float64) Tier {
	switch {
	case value > CriticalRatio*median:
		return Critical
	case value > AlertRatio*median:
		return Alert
	case value > WarnRatio*median:
		return Warn
	default:
		return Plain
	}
}

// TimingBanner describes what the timing screen is listening to.
func TimingBanner(stream string, samples int, refresh time.Duration) []Line {
	return []Line{
		Linef(Plain, "Listening on %s, collecting %d samples, updating every %s", stream, samples, formatDuration(refresh)),
		Linef(Dim, "Press SPACE to reset buffer"),
	}
}

// Timing renders one analysed pass: a header, one row per landmark and the
// average, RMS and max-delay summary.
func Timing(r *timing.Report) []Line {
	n := r.Summary.Count
	lines := make([]Line, 0, len(r.Landmarks)+10)

	lines = append(lines,
		Blank(),
		Linef(Plain, " samples = %d  (cntdiff = %d)  pass %d in %s  landmarks = %d",
			n, r.Pass.CounterDelta, r.Number, r.Pass.Elapsed.Round(time.Microsecond), len(r.Landmarks)),
		Blank(),
	)

	median := r.Value(r.Median())

	for _, l := range r.Landmarks {
		v := r.Value(l)
		row := fmt.Sprintf("%6.3f%%  %6.3f%%  [%10d] [%10d]    %10.3f us",
			100*l.Rank, 100*(1-l.Rank), l.Index, n-l.Index, 1e6*v)

		if l.Median {
			lines = append(lines, Line{{Text: row, Tier: Bold}})
			continue
		}

		row += fmt.Sprintf("   %+10.3f us", 1e6*(v-median))
		lines = append(lines, Line{{Text: row, Tier: TierFor(v, median)}})
	}

	s := r.Summary
	lines = append(lines,
		Blank(),
		Linef(Plain, "  Average Time Interval = %10.3f us    -> frequ = %10.3f Hz", 1e6*s.Mean, s.Frequency()),
		Linef(Plain, "                    RMS = %10.3f us  ( %5.3f %%)", 1e6*s.RMS, s.RelativeRMS()),
		Linef(Plain, "  Max delay : %10.3f us   frame # %d", 1e6*r.Pass.MaxInterval, r.Pass.MaxIndex),
	)

	if missed := r.Pass.Missed(); missed > 0 {
		lines = append(lines, Linef(Warn, "  %d frame(s) posted but not observed during this pass", missed))
	}

	if lt := r.Lifetime; lt != nil && lt.Count > 0 {
		lines = append(lines, Line{
			{Text: "  Lifetime ", Tier: Dim},
			{Text: fmt.Sprintf("n=%s  avg %s  p50 %s  p90 %s  p99 %s  p99.9 %s  max %s",
				formatCount(lt.Count), formatLatency(lt.Mean), formatLatency(lt.P50), formatLatency(lt.P90),
				formatLatency(lt.P99), formatLatency(lt.P999), formatLatency(lt.Max)), Tier: Plain},
		})
	}

	return lines
}
