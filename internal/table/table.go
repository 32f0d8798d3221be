// Package table holds the in-memory tabular representation shared by every
// pipeline stage: a header row plus string cells, addressed by column label.
package table

import "strings"

// Table is a rectangular set of string cells with a labelled header.
// Cells are kept as source text; typed access goes through the Parse helpers.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	index map[string]int
}

// New returns an empty table with the given header. Labels are trimmed.
func New(name string, header []string) *Table {
	t := &Table{Name: name, Header: make([]string, len(header))}
	for i, h := range header {
		t.Header[i] = strings.TrimSpace(h)
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		// first occurrence wins for duplicated labels
		if _, ok := t.index[h]; !ok {
			t.index[h] = i
		}
	}
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of a column label.
func (t *Table) Index(col string) (int, bool) {
	if t.index == nil {
		t.reindex()
	}
	i, ok := t.index[col]
	return i, ok
}

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	_, ok := t.Index(col)
	return ok
}

// Value returns the cell at (row, col), or "" when the column is absent.
func (t *Table) Value(row int, col string) string {
	i, ok := t.Index(col)
	if !ok || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][i]
}

// Column returns a copy of every cell in the column; nil if absent.
func (t *Table) Column(col string) []string {
	i, ok := t.Index(col)
	if !ok {
		return nil
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		if i < len(row) {
			out[r] = row[i]
		}
	}
	return out
}

// Append adds a row, padding or truncating it to the header width.
func (t *Table) Append(row []string) {
	n := len(t.Header)
	if len(row) != n {
		tmp := make([]string, n)
		copy(tmp, row)
		row = tmp
	}
	t.Rows = append(t.Rows, row)
}

// SetColumn replaces the column's cells, adding the column at the end if missing.
// vals must have one entry per row.
func (t *Table) SetColumn(col string, vals []string) {
	i, ok := t.Index(col)
	if !ok {
		t.Header = append(t.Header, col)
		i = len(t.Header) - 1
		t.index[col] = i
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], "")
		}
	}
	for r := range t.Rows {
		if r < len(vals) {
			t.Rows[r][i] = vals[r]
		}
	}
}

// Select returns a new table with only the listed columns that exist, in the
// order given. Absent columns are skipped.
func (t *Table) Select(cols []string) *Table {
	idx := make([]int, 0, len(cols))
	header := make([]string, 0, len(cols))
	for _, c := range cols {
		if i, ok := t.Index(c); ok {
			idx = append(idx, i)
			header = append(header, c)
		}
	}
	out := New(t.Name, header)
	out.Rows = make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		nr := make([]string, len(idx))
		for j, i := range idx {
			if i < len(row) {
				nr[j] = row[i]
			}
		}
		out.Rows[r] = nr
	}
	return out
}

// Filter returns a new table containing the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := New(t.Name, t.Header)
	for r, row := range t.Rows {
		if keep(r) {
			cp := make([]string, len(row))
			copy(cp, row)
			out.Rows = append(out.Rows, cp)
		}
	}
	return out
}
