package render

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"imgmon/internal/pixstats"
)

// DefaultWidth is the surface width assumed when the sink cannot tell.
const DefaultWidth = 80

// StreamStatus is the producer side of the summary screen.
type StreamStatus struct {
	Name      string
	Kind      pixstats.Kind
	Shape     []int
	Writing   bool
	Cnt0      uint64
	Cnt1      uint64
	Frequency float64
	SemValue  int
	SemMax    int
	Dropped   uint64
}

// Status renders the stream identity, counters and semaphore fill.
func Status(st StreamStatus) []Line {
	dims := make([]string, len(st.Shape))
	elements := 1
	for i, d := range st.Shape {
		dims[i] = fmt.Sprintf("%6d", d)
		elements *= d
	}

	write := 0
	if st.Writing {
		write = 1
	}

	return []Line{
		{
			{Text: st.Name + "  ", Tier: Bold},
			{Text: fmt.Sprintf("%s [ %s]", st.Kind, strings.Join(dims, " x ")), Tier: Plain},
			{Text: fmt.Sprintf("  %sB", formatCount(uint64(elements*st.Kind.Size()))), Tier: Dim},
		},
		Linef(Plain, "[write %d] [cnt0 %8d] [%6.2f Hz] [cnt1 %8d]", write, st.Cnt0, st.Frequency, st.Cnt1),
		Linef(Plain, "[sem %3d/%3d] [dropped %s]", st.SemValue, st.SemMax, formatCount(st.Dropped)),
	}
}

// Pixels renders the statistics of one frame. Frames of up to
// pixstats.RawLimit elements are listed element by element, larger ones as
// one histogram row per bin with a bar scaled to the fullest bin.
func Pixels(buf pixstats.Buffer, s pixstats.Stats, smoothedRMS float64, width int) []Line {
	if width <= 0 {
		width = DefaultWidth
	}

	lines := []Line{
		Linef(Plain, "median %12g", s.Median),
		Linef(Plain, "average %12g    total = %12g", s.Mean, s.Total),
		Linef(Plain, "RMS = %12.6g     ->  %12.6g", s.RMS, smoothedRMS),
		HeaderRule(" PIXEL VALUES ", '-', width),
		Linef(Plain, "min - max   :   %12.6e - %12.6e", s.Min, s.Max),
	}

	if s.NaN > 0 {
		lines = append(lines, Linef(Warn, "%d NaN element(s) skipped", s.NaN))
	}
	if s.Inf > 0 {
		lines = append(lines, Linef(Warn, "%d infinite element(s) skipped", s.Inf))
	}

	if s.Raw() {
		return append(lines, rawRows(buf)...)
	}

	return append(lines, binRows(s, width)...)
}

func binRows(s pixstats.Stats, width int) []Line {
	maxCount := s.MaxBin()
	last := len(s.Bins) - 1
	lines := make([]Line, 0, len(s.Bins))

	for h, c := range s.Bins {
		lo, hi := s.BinRange(h)
		label := fmt.Sprintf("[%12.4e - %12.4e] %7d", lo, hi, c)
		avail := width - runewidth.StringWidth(label) - 1
		if avail <= 0 {
			lines = append(lines, Line{{Text: runewidth.Truncate(label, width, ""), Tier: Plain}})
			continue
		}

		tier := Bar
		if h == last {
			tier = BarAccent
		}

		lines = append(lines, Line{
			{Text: label + " ", Tier: Plain},
			{Text: makeBar(c, maxCount, avail), Tier: tier},
		})
	}

	return lines
}

func rawRows(buf pixstats.Buffer) []Line {
	n := buf.Len()
	lines := make([]Line, 0, n)
	text := make([]byte, 0, 32)

	for i := 0; i < n; i++ {
		text = buf.AppendText(text[:0], i)

		row := fmt.Sprintf("%3d  %5s", i, text)
		if buf.Kind().IsFloat() {
			row = fmt.Sprintf("%3d  %s", i, text)
		}

		lines = append(lines, Line{{Text: row, Tier: Plain}})
	}

	return lines
}
