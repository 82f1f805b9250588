// Package sink writes rendered lines to plain writers, ANSI terminals or
// in-memory recorders.
package sink

import (
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/pkg/errors"

	"imgmon/internal/render"
)

// LineSink receives rendered lines.
type LineSink interface {
	WriteLine(line render.Line) error
}

// Framer is implemented by sinks that redraw a whole screen per frame.
type Framer interface {
	BeginFrame() error
	EndFrame() error
}

// Sizer is implemented by sinks that know their width in cells.
type Sizer interface {
	Width() int
}

// WidthOf returns the width of s, or render.DefaultWidth when unknown.
func WidthOf(s LineSink) int {
	if sz, ok := s.(Sizer); ok {
		if w := sz.Width(); w > 0 {
			return w
		}
	}

	return render.DefaultWidth
}

// WriteFrame writes lines as one frame, bracketing them with BeginFrame and
// EndFrame when the sink supports framing.
func WriteFrame(s LineSink, lines []render.Line) error {
	framer, framed := s.(Framer)
	if framed {
		if err := framer.BeginFrame(); err != nil {
			return errors.Wrap(err, "begin frame")
		}
	}

	for _, l := range lines {
		if err := s.WriteLine(l); err != nil {
			return err
		}
	}

	if framed {
		return errors.Wrap(framer.EndFrame(), "end frame")
	}

	return nil
}

// Plain writes unstyled text, one line per WriteLine.
type Plain struct {
	w     io.Writer
	width int
}

// NewPlain writes to w. A width > 0 is reported to renderers and cuts longer
// lines; 0 leaves lines whole and lets renderers assume the default.
func NewPlain(w io.Writer, width int) *Plain {
	return &Plain{w: w, width: width}
}

func (p *Plain) WriteLine(line render.Line) error {
	text := line.Text()
	if p.width > 0 {
		text = runewidth.Truncate(text, p.width, "")
	}

	_, err := io.WriteString(p.w, text+"\n")

	return errors.Wrap(err, "write line")
}

func (p *Plain) Width() int {
	return p.width
}

// Recorder keeps every line in memory.
type Recorder struct {
	lines  []render.Line
	frames int
}

func (r *Recorder) WriteLine(line render.Line) error {
	r.lines = append(r.lines, append(render.Line(nil), line...))

	return nil
}

// BeginFrame drops the lines of the previous frame.
func (r *Recorder) BeginFrame() error {
	r.lines = r.lines[:0]

	return nil
}

func (r *Recorder) EndFrame() error {
	r.frames++

	return nil
}

func (r *Recorder) Lines() []render.Line {
	return r.lines
}

// Texts returns the recorded lines without styling.
func (r *Recorder) Texts() []string {
	out := make([]string, len(r.lines))
	for i, l := range r.lines {
		out[i] = l.Text()
	}

	return out
}

// Frames returns the number of completed frames.
func (r *Recorder) Frames() int {
	return r.frames
}

// Discard drops everything.
var Discard LineSink = discard{}

type discard struct{}

func (discard) WriteLine(render.Line) error { return nil }
