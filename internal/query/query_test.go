package query

import (
	"testing"

	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func data() *table.Table {
	t := table.New("enhanced", []string{"sku_code", "customer_name", "shortage_qty", "is_stockout", "priority_score"})
	t.Append([]string{"A1", "Acme", "0", "0", "55.62"})
	t.Append([]string{"A1", "Acme", "5", "0", "69.26"})
	t.Append([]string{"A1", "Beta", "10", "1", "92.9"})
	t.Append([]string{"B2", "Beta", "2", "0", "12.5"})
	t.Append([]string{"C3", "Gamma Stores", "0", "1", "10"})
	return t
}

func TestParsePlan_StripsFences(t *testing.T) {
	text := "Here you go:\n```json\n{\"filters\":[{\"column\":\"is_stockout\",\"op\":\"eq\",\"value\":1}],\"limit\":5,\"methodology\":\"stockouts\"}\n```"
	p, err := ParsePlan(text)
	require.NoError(t, err)
	require.Len(t, p.Filters, 1)
	assert.Equal(t, Scalar("1"), p.Filters[0].Value)
	assert.Equal(t, 5, p.Limit)
	assert.Equal(t, "stockouts", p.Methodology)

	_, err = ParsePlan("I cannot answer that")
	assert.ErrorIs(t, err, ErrNoPlan)

	_, err = ParsePlan(`{"filters":[{"column":"x","op":"eq","value":[1]}]}`)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		plan  Plan
		field string
	}{
		{"unknown filter column", Plan{Filters: []Filter{{Column: "nope", Op: OpEq}}}, "filters[0]"},
		{"unknown op", Plan{Filters: []Filter{{Column: "sku_code", Op: "like"}}}, "filters[0]"},
		{"unknown func", Plan{Aggregations: []Aggregation{{Column: "shortage_qty", Func: "median"}}}, "aggregations[0]"},
		{"group without agg", Plan{GroupBy: []string{"sku_code"}}, "aggregations"},
		{"sort on non-output", Plan{GroupBy: []string{"sku_code"}, Aggregations: []Aggregation{{Func: FnCount}}, SortBy: "priority_score"}, "sort_by"},
		{"columns with aggs", Plan{Aggregations: []Aggregation{{Func: FnCount}}, Columns: []string{"sku_code"}}, "columns"},
		{"limit too large", Plan{Limit: 101}, "limit"},
		{"negative limit", Plan{Limit: -1}, "limit"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.plan.Validate(data())
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, c.field, ve.Field)
		})
	}
	ok := Plan{GroupBy: []string{"sku_code"}, Aggregations: []Aggregation{{Func: FnCount}}, SortBy: "count", Limit: 100}
	assert.NoError(t, ok.Validate(data()))
}

func TestExecute_FilterSortLimit(t *testing.T) {
	res, err := Execute(data(), &Plan{
		Filters:    []Filter{{Column: "shortage_qty", Op: OpGt, Value: "0"}},
		Columns:    []string{"sku_code", "priority_score"},
		SortBy:     "priority_score",
		Descending: true,
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Matched)
	assert.True(t, res.Truncated)
	assert.Equal(t, []string{"sku_code", "priority_score"}, res.Table.Header)
	assert.Equal(t, [][]string{{"A1", "92.9"}, {"A1", "69.26"}}, res.Table.Rows)
}

func TestExecute_SortByColumnOutsideProjection(t *testing.T) {
	tb := table.New("enhanced", []string{"sku_code", "priority_score"})
	tb.Append([]string{"B", "10"})
	tb.Append([]string{"A", "90"})
	tb.Append([]string{"C", "50"})

	res, err := Execute(tb, &Plan{Columns: []string{"sku_code"}, SortBy: "priority_score", Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"sku_code"}, res.Table.Header)
	assert.Equal(t, []string{"A", "C", "B"}, res.Table.Column("sku_code"))
}

func TestExecute_NumericNotLexicalOrder(t *testing.T) {
	res, err := Execute(data(), &Plan{Columns: []string{"priority_score"}, SortBy: "priority_score"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "12.5", "55.62", "69.26", "92.9"}, res.Table.Column("priority_score"))
}

func TestExecute_GroupAggregate(t *testing.T) {
	res, err := Execute(data(), &Plan{
		GroupBy: []string{"sku_code"},
		Aggregations: []Aggregation{
			{Column: "shortage_qty", Func: FnSum},
			{Column: "priority_score", Func: FnMean, As: "avg_priority"},
			{Column: "customer_name", Func: FnNUnique},
			{Func: FnCount},
		},
		SortBy:     "sum_shortage_qty",
		Descending: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sku_code", "sum_shortage_qty", "avg_priority", "nunique_customer_name", "count"}, res.Table.Header)
	assert.Equal(t, []string{"A1", "15", "72.5933", "2", "3"}, res.Table.Rows[0])
	assert.Equal(t, []string{"B2", "2", "12.5", "1", "1"}, res.Table.Rows[1])
	assert.Equal(t, []string{"C3", "0", "10", "1", "1"}, res.Table.Rows[2])
}

func TestExecute_UngroupedOnEmptyMatch(t *testing.T) {
	res, err := Execute(data(), &Plan{
		Filters:      []Filter{{Column: "customer_name", Op: OpContains, Value: "nobody"}},
		Aggregations: []Aggregation{{Func: FnCount}, {Column: "shortage_qty", Func: FnMax}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, [][]string{{"0", "0"}}, res.Table.Rows)
}

func TestExecute_TextFilters(t *testing.T) {
	res, err := Execute(data(), &Plan{
		Filters: []Filter{
			{Column: "customer_name", Op: OpContains, Value: "GAMMA"},
			{Column: "is_stockout", Op: OpEq, Value: "1"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.Table.Len())
	assert.Equal(t, "C3", res.Table.Value(0, "sku_code"))

	res, err = Execute(data(), &Plan{Filters: []Filter{{Column: "sku_code", Op: OpNe, Value: "a1"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
}
