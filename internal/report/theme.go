package report

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")
)

// theme decorates report text. The plain theme leaves it untouched.
type theme struct {
	title   func(string) string
	section func(string) string
	key     func(string) string
	ok      func(string) string
	fail    func(string) string
	warn    func(string) string
	dim     func(string) string
}

func (th theme) state(s string, ok bool) string {
	if ok {
		return th.ok(s)
	}
	return th.fail(s)
}

func plainTheme() theme {
	id := func(s string) string { return s }
	return theme{title: id, section: id, key: id, ok: id, fail: id, warn: id, dim: id}
}

// styledTheme renders through a lipgloss renderer bound to w, so color
// support is detected for w rather than for stdout.
func styledTheme(w io.Writer) theme {
	r := lipgloss.NewRenderer(w)
	paint := func(st lipgloss.Style) func(string) string {
		return func(s string) string { return st.Render(s) }
	}
	return theme{
		title:   paint(r.NewStyle().Bold(true).Foreground(colorWhite)),
		section: paint(r.NewStyle().Bold(true).Foreground(colorBlue)),
		key:     paint(r.NewStyle().Foreground(colorDim)),
		ok:      paint(r.NewStyle().Foreground(colorGreen)),
		fail:    paint(r.NewStyle().Foreground(colorRed)),
		warn:    paint(r.NewStyle().Foreground(colorYellow)),
		dim:     paint(r.NewStyle().Foreground(colorDim)),
	}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
