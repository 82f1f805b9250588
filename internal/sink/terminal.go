package sink

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"imgmon/internal/render"
)

const (
	cursorHome  = "\033[H"
	clearToEnd  = "\033[J"
	clearToEOL  = "\033[K"
	fallbackRow = 24
)

// ColorMode selects whether a Terminal emits colour.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// IsTTY reports whether fd is a terminal.
func IsTTY(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Terminal redraws a full screen per frame using ANSI cursor control.
type Terminal struct {
	w      io.Writer
	fd     int
	raw    bool
	styles map[render.Tier]*color.Color

	fixedWidth int
	width      int
	height     int
	frame      *strings.Builder
}

// TerminalOptions configures a Terminal.
type TerminalOptions struct {
	Color ColorMode
	// Raw must be set while the terminal is in raw mode, where a bare newline
	// does not return the carriage.
	Raw bool
	// Width overrides the detected width when > 0.
	Width int
}

// NewTerminal draws on f.
func NewTerminal(f *os.File, opts TerminalOptions) *Terminal {
	return newTerminal(f, int(f.Fd()), opts)
}

func newTerminal(w io.Writer, fd int, opts TerminalOptions) *Terminal {
	enabled := false
	switch opts.Color {
	case ColorAlways:
		enabled = true
	case ColorNever:
	default:
		enabled = fd >= 0 && IsTTY(uintptr(fd))
	}

	t := &Terminal{
		w:      w,
		fd:     fd,
		raw:    opts.Raw,
		styles: tierStyles(enabled),

		fixedWidth: opts.Width,
	}
	t.Resize()

	return t
}

func tierStyles(enabled bool) map[render.Tier]*color.Color {
	styles := map[render.Tier]*color.Color{
		render.Dim:       color.New(color.Faint),
		render.Bold:      color.New(color.Bold),
		render.Heading:   color.New(color.Bold, color.FgCyan),
		render.Warn:      color.New(color.Bold, color.FgYellow),
		render.Alert:     color.New(color.Bold, color.FgMagenta),
		render.Critical:  color.New(color.Bold, color.FgRed),
		render.Bar:       color.New(color.FgGreen),
		render.BarAccent: color.New(color.FgRed),
	}

	for _, c := range styles {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return styles
}

// Resize re-reads the terminal size. A configured width always wins.
func (t *Terminal) Resize() {
	t.width, t.height = t.fixedWidth, 0

	if t.fd >= 0 {
		if w, h, err := term.GetSize(t.fd); err == nil {
			if t.width <= 0 {
				t.width = w
			}
			t.height = h
		}
	}

	if t.width <= 0 {
		t.width = render.DefaultWidth
	}
	if t.height <= 0 {
		t.height = fallbackRow
	}
}

func (t *Terminal) Width() int {
	return t.width
}

func (t *Terminal) Height() int {
	return t.height
}

func (t *Terminal) BeginFrame() error {
	t.frame = &strings.Builder{}
	t.frame.WriteString(cursorHome)

	return nil
}

func (t *Terminal) EndFrame() error {
	if t.frame == nil {
		return nil
	}

	t.frame.WriteString(clearToEnd)
	_, err := io.WriteString(t.w, t.frame.String())
	t.frame = nil

	return errors.Wrap(err, "draw frame")
}

// WriteLine draws line truncated to the terminal width.
func (t *Terminal) WriteLine(line render.Line) error {
	var sb strings.Builder

	room := t.width
	for _, span := range line {
		if room <= 0 {
			break
		}

		text := span.Text
		if w := runewidth.StringWidth(text); w > room {
			text = runewidth.Truncate(text, room, "")
		}
		room -= runewidth.StringWidth(text)

		if style, ok := t.styles[span.Tier]; ok && text != "" {
			text = style.Sprint(text)
		}
		sb.WriteString(text)
	}

	sb.WriteString(clearToEOL)
	if t.raw {
		sb.WriteString("\r\n")
	} else {
		sb.WriteString("\n")
	}

	if t.frame != nil {
		t.frame.WriteString(sb.String())

		return nil
	}

	_, err := io.WriteString(t.w, sb.String())

	return errors.Wrap(err, "write line")
}
