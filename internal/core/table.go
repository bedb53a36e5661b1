package core

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var tableHeader = []string{"PROVIDER", "STATUS", "LIMIT", "DETAILS"}

// CellStyler lets the CLI color cells (urgency column) without the table
// losing alignment; widths are computed on the styled text ANSI-aware.
type CellStyler func(row DisplayRow, col int, text string) string

// FormatTable renders rows as an aligned plain-text table: a header, a
// dashed separator, two spaces between columns, column widths from
// content.
func FormatTable(rows []DisplayRow, style CellStyler) string {
	if style == nil {
		style = func(_ DisplayRow, _ int, text string) string { return text }
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		plain := []string{r.Provider, string(r.Urgency), r.LimitLabel, r.Details}
		styled := make([]string, len(plain))
		for col, text := range plain {
			styled[col] = style(r, col, text)
		}
		cells = append(cells, styled)
	}

	widths := make([]int, len(tableHeader))
	for col, h := range tableHeader {
		widths[col] = len(h)
	}
	for _, row := range cells {
		for col, text := range row {
			if w := ansi.StringWidth(text); w > widths[col] {
				widths[col] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(row []string) {
		for col, text := range row {
			b.WriteString(text)
			if col < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[col]-ansi.StringWidth(text)+2))
			}
		}
		b.WriteByte('\n')
	}

	writeRow(tableHeader)
	sep := make([]string, len(widths))
	for col, w := range widths {
		sep[col] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range cells {
		writeRow(row)
	}
	return b.String()
}
