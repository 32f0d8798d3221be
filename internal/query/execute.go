package query

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/filflo-cli/internal/table"
)

// Result is an executed plan.
type Result struct {
	Table *table.Table
	// Matched is the row count after filtering, before grouping and limit.
	Matched int
	// Truncated reports whether Limit cut rows.
	Truncated bool
}

// Execute validates p and runs it over t.
func Execute(t *table.Table, p *Plan) (*Result, error) {
	if err := p.Validate(t); err != nil {
		return nil, err
	}

	rows := make([]int, 0, t.Len())
	for r := range t.Rows {
		if matchAll(t, r, p.Filters) {
			rows = append(rows, r)
		}
	}
	res := &Result{Matched: len(rows)}

	var out *table.Table
	if len(p.Aggregations) > 0 {
		out = aggregate(t, rows, p)
	} else {
		cols := p.Columns
		if len(cols) == 0 {
			cols = t.Header
		}
		keep := make(map[int]bool, len(rows))
		for _, r := range rows {
			keep[r] = true
		}
		// sort ahead of the projection so sort_by may name a column left out of it
		matched := t.Filter(func(r int) bool { return keep[r] })
		if err := sortRows(matched, p); err != nil {
			return nil, err
		}
		out = matched.Select(cols)
	}
	out.Name = "result"
	if len(p.Aggregations) > 0 {
		if err := sortRows(out, p); err != nil {
			return nil, err
		}
	}

	limit := p.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if out.Len() > limit {
		out.Rows = out.Rows[:limit]
		res.Truncated = true
	}
	res.Table = out
	return res, nil
}

func sortRows(t *table.Table, p *Plan) error {
	if p.SortBy == "" {
		return nil
	}
	i, ok := t.Index(p.SortBy)
	if !ok {
		return &ValidationError{Field: "sort_by", Reason: fmt.Sprintf("unknown column %q", p.SortBy)}
	}
	sort.SliceStable(t.Rows, func(a, b int) bool {
		c := compare(cell(t.Rows[a], i), cell(t.Rows[b], i))
		if p.Descending {
			return c > 0
		}
		return c < 0
	})
	return nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func matchAll(t *table.Table, r int, filters []Filter) bool {
	for _, f := range filters {
		if !match(t.Value(r, f.Column), f.Op, string(f.Value)) {
			return false
		}
	}
	return true
}

func match(cell, op, want string) bool {
	switch op {
	case OpEq:
		return compare(cell, want) == 0
	case OpNe:
		return compare(cell, want) != 0
	case OpGt:
		return compare(cell, want) > 0
	case OpGte:
		return compare(cell, want) >= 0
	case OpLt:
		return compare(cell, want) < 0
	case OpLte:
		return compare(cell, want) <= 0
	case OpContains:
		return strings.Contains(strings.ToLower(cell), strings.ToLower(want))
	}
	return false
}

// compare orders numerically when both sides parse as numbers and by
// case-insensitive text otherwise.
func compare(a, b string) int {
	fa, okA := table.ParseNumber(a)
	fb, okB := table.ParseNumber(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b)))
}

type group struct {
	key  []string
	rows []int
}

func aggregate(t *table.Table, rows []int, p *Plan) *table.Table {
	var groups []*group
	index := map[string]*group{}
	for _, r := range rows {
		key := make([]string, len(p.GroupBy))
		for i, g := range p.GroupBy {
			key[i] = t.Value(r, g)
		}
		k := strings.Join(key, "\x1f")
		g, ok := index[k]
		if !ok {
			g = &group{key: key}
			index[k] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}
	// an ungrouped aggregation still yields one row on an empty match
	if len(p.GroupBy) == 0 && len(groups) == 0 {
		groups = append(groups, &group{})
	}

	header := append([]string{}, p.GroupBy...)
	for _, a := range p.Aggregations {
		header = append(header, a.Name())
	}
	out := table.New("result", header)
	for _, g := range groups {
		row := append([]string{}, g.key...)
		for _, a := range p.Aggregations {
			row = append(row, table.FormatFloat(table.Round(apply(t, g.rows, a), 4)))
		}
		out.Append(row)
	}
	return out
}

func apply(t *table.Table, rows []int, a Aggregation) float64 {
	switch a.Func {
	case FnCount:
		return float64(len(rows))
	case FnNUnique:
		seen := map[string]struct{}{}
		for _, r := range rows {
			if v := t.Value(r, a.Column); v != "" {
				seen[v] = struct{}{}
			}
		}
		return float64(len(seen))
	}

	var sum float64
	n := 0
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		v, ok := table.ParseNumber(t.Value(r, a.Column))
		if !ok {
			continue
		}
		sum += v
		n++
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if n == 0 {
		return 0
	}
	switch a.Func {
	case FnSum:
		return sum
	case FnMean:
		return sum / float64(n)
	case FnMin:
		return lo
	case FnMax:
		return hi
	}
	return 0
}
