package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/nodeseed/internal/report"
)

var tableHeaderColor = lipgloss.Color("#3b82f6")

// table renders left-aligned columns separated by two spaces.
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) row(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) write(w io.Writer) error {
	widths := make([]int, len(t.header))
	for _, r := range append([][]string{t.header}, t.rows...) {
		for i, c := range r {
			if i < len(widths) && len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
	}

	header := format(t.header, widths)
	if report.IsTerminal(w) {
		header = lipgloss.NewRenderer(w).NewStyle().Bold(true).Foreground(tableHeaderColor).Render(header)
	}
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	for _, r := range t.rows {
		if _, err := fmt.Fprintln(w, format(r, widths)); err != nil {
			return err
		}
	}
	return nil
}

func format(cells []string, widths []int) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == len(cells)-1 {
			b.WriteString(c)
			continue
		}
		fmt.Fprintf(&b, "%-*s", widths[i], c)
	}
	return b.String()
}
