package render

import (
	"fmt"
	"strings"
	"time"
)

// formatLatency formats a latency value (in µs) to human-readable string
func formatLatency(us float64) string {
	if us < 1 {
		return fmt.Sprintf("%dns", int(us*1000+0.5))
	}
	if us < 1000 {
		return fmt.Sprintf("%.1fµs", us)
	}
	if us < 1_000_000 {
		ms := us / 1000
		if ms < 10 {
			return fmt.Sprintf("%.2fms", ms)
		}
		return fmt.Sprintf("%.1fms", ms)
	}
	return fmt.Sprintf("%.2fs", us/1_000_000)
}

// formatCount formats large numbers in human-readable format
func formatCount(n uint64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.3gs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// makeBar draws count scaled so that maxCount spans avail cells. A non-zero
// count always gets at least one cell.
func makeBar(count, maxCount uint64, avail int) string {
	if avail <= 0 || count == 0 || maxCount == 0 {
		return ""
	}

	cells := int(float64(count) * float64(avail) / float64(maxCount))
	cells = max(1, min(cells, avail))

	return strings.Repeat("█", cells)
}
