// Package render turns timing reports and pixel statistics into styled text
// lines. Styling is expressed as a Tier per span; sinks decide how a tier looks.
package render

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Tier is the highlight level of a span of text.
type Tier uint8

const (
	Plain Tier = iota
	Dim
	Bold
	Heading
	// Warn, Alert and Critical flag timing rows well above the median.
	Warn
	Alert
	Critical
	Bar
	BarAccent
)

var tierNames = [...]string{
	Plain:     "plain",
	Dim:       "dim",
	Bold:      "bold",
	Heading:   "heading",
	Warn:      "warn",
	Alert:     "alert",
	Critical:  "critical",
	Bar:       "bar",
	BarAccent: "bar-accent",
}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}

	return fmt.Sprintf("tier(%d)", t)
}

// Span is a run of text drawn with one tier.
type Span struct {
	Text string
	Tier Tier
}

// Line is one output row.
type Line []Span

// Text returns the line without styling.
func (l Line) Text() string {
	var sb strings.Builder
	for _, s := range l {
		sb.WriteString(s.Text)
	}

	return sb.String()
}

// Width returns the display width of the line in terminal cells.
func (l Line) Width() int {
	w := 0
	for _, s := range l {
		w += runewidth.StringWidth(s.Text)
	}

	return w
}

// Linef formats a single-span line.
func Linef(tier Tier, format string, args ...any) Line {
	return Line{{Text: fmt.Sprintf(format, args...), Tier: tier}}
}

// Blank is an empty line.
func Blank() Line {
	return Line{}
}

// HeaderRule centres title in a rule of fill that spans width cells.
func HeaderRule(title string, fill rune, width int) Line {
	pad := width - runewidth.StringWidth(title)
	if pad <= 0 {
		return Line{{Text: runewidth.Truncate(title, width, ""), Tier: Heading}}
	}

	left := pad / 2
	right := pad - left
	text := strings.Repeat(string(fill), left) + title + strings.Repeat(string(fill), right)

	return Line{{Text: text, Tier: Heading}}
}
