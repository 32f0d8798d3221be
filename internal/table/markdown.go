package table

import (
	"fmt"
	"strings"
)

// Markdown renders up to maxRows rows as a markdown table. maxRows <= 0 renders all.
func (t *Table) Markdown(maxRows int) string {
	var b strings.Builder
	if len(t.Header) == 0 {
		return ""
	}
	b.WriteString("| ")
	for i, c := range t.Header {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(safeName(c))
	}
	b.WriteString(" |\n|")
	for range t.Header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	n := len(t.Rows)
	if maxRows > 0 && n > maxRows {
		n = maxRows
	}
	for _, row := range t.Rows[:n] {
		b.WriteString("| ")
		for i := range t.Header {
			if i > 0 {
				b.WriteString(" | ")
			}
			val := ""
			if i < len(row) {
				val = row[i]
			}
			if len(val) > 80 {
				val = val[:77] + "..."
			}
			b.WriteString(safeVal(val))
		}
		b.WriteString(" |\n")
	}
	if n < len(t.Rows) {
		b.WriteString(fmt.Sprintf("\n(%d of %d rows shown)\n", n, len(t.Rows)))
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
