// Package query executes small, validated analysis plans over a table. The
// analytical agent asks the model for a Plan instead of free-form code, so
// every answer is computed by this package from the loaded data.
package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/filflo-cli/internal/table"
)

// Filter operators.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpContains = "contains"
)

// Aggregate functions.
const (
	FnSum     = "sum"
	FnMean    = "mean"
	FnMin     = "min"
	FnMax     = "max"
	FnCount   = "count"
	FnNUnique = "nunique"
)

// Limits on result size.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

var (
	ops = map[string]bool{OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpContains: true}
	fns = map[string]bool{FnSum: true, FnMean: true, FnMin: true, FnMax: true, FnCount: true, FnNUnique: true}
)

// Scalar is a filter operand. It accepts JSON strings, numbers and booleans.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Scalar(v)
		return nil
	}
	switch string(b) {
	case "null":
		*s = ""
	case "true":
		*s = "1"
	case "false":
		*s = "0"
	default:
		if _, err := strconv.ParseFloat(string(b), 64); err != nil {
			return fmt.Errorf("filter value %s: not a scalar", b)
		}
		*s = Scalar(b)
	}
	return nil
}

// Filter keeps rows where Column Op Value holds.
type Filter struct {
	Column string `json:"column"`
	Op     string `json:"op"`
	Value  Scalar `json:"value"`
}

// Aggregation computes Func over Column per group. Count ignores Column.
type Aggregation struct {
	Column string `json:"column"`
	Func   string `json:"func"`
	As     string `json:"as,omitempty"`
}

// Name is the output column label.
func (a Aggregation) Name() string {
	if a.As != "" {
		return a.As
	}
	if a.Func == FnCount && a.Column == "" {
		return FnCount
	}
	return a.Func + "_" + a.Column
}

// Plan is one analysis request.
type Plan struct {
	Filters      []Filter      `json:"filters,omitempty"`
	GroupBy      []string      `json:"group_by,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
	Columns      []string      `json:"columns,omitempty"`
	SortBy       string        `json:"sort_by,omitempty"`
	Descending   bool          `json:"descending,omitempty"`
	Limit        int           `json:"limit,omitempty"`
	Methodology  string        `json:"methodology,omitempty"`
}

// ValidationError reports the first problem found in a Plan.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid plan: %s: %s", e.Field, e.Reason)
}

// ErrNoPlan is returned when model output carries no JSON object.
var ErrNoPlan = errors.New("no JSON plan in model output")

// ParsePlan extracts the JSON object from model output, tolerating code
// fences and surrounding prose.
func ParsePlan(text string) (*Plan, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, ErrNoPlan
	}
	var p Plan
	if err := json.Unmarshal([]byte(s[start:end+1]), &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &p, nil
}

// Validate checks every referenced column against t and the operators,
// functions and limit against the supported set.
func (p *Plan) Validate(t *table.Table) error {
	col := func(field, c string) error {
		if !t.Has(c) {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown column %q", c)}
		}
		return nil
	}
	for i, f := range p.Filters {
		field := fmt.Sprintf("filters[%d]", i)
		if err := col(field, f.Column); err != nil {
			return err
		}
		if !ops[f.Op] {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown op %q", f.Op)}
		}
	}
	for i, g := range p.GroupBy {
		if err := col(fmt.Sprintf("group_by[%d]", i), g); err != nil {
			return err
		}
	}
	outputs := map[string]bool{}
	for _, g := range p.GroupBy {
		outputs[g] = true
	}
	for i, a := range p.Aggregations {
		field := fmt.Sprintf("aggregations[%d]", i)
		if !fns[a.Func] {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("unknown func %q", a.Func)}
		}
		if a.Func != FnCount || a.Column != "" {
			if err := col(field, a.Column); err != nil {
				return err
			}
		}
		outputs[a.Name()] = true
	}
	if len(p.GroupBy) > 0 && len(p.Aggregations) == 0 {
		return &ValidationError{Field: "aggregations", Reason: "group_by needs at least one aggregation"}
	}
	for i, c := range p.Columns {
		if len(p.Aggregations) > 0 {
			return &ValidationError{Field: "columns", Reason: "columns cannot be combined with aggregations"}
		}
		if err := col(fmt.Sprintf("columns[%d]", i), c); err != nil {
			return err
		}
	}
	if p.SortBy != "" {
		if len(p.Aggregations) > 0 {
			if !outputs[p.SortBy] {
				return &ValidationError{Field: "sort_by", Reason: fmt.Sprintf("%q is not an output column", p.SortBy)}
			}
		} else if err := col("sort_by", p.SortBy); err != nil {
			return err
		}
	}
	if p.Limit < 0 || p.Limit > MaxLimit {
		return &ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 0 and %d", MaxLimit)}
	}
	return nil
}
