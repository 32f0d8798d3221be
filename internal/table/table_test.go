package table_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCSV_TrimsHeadersAndPadsRows(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "orders.csv")
	content := "\ufeff Order ID ,SKU Code,  Order Qty (in Units)\n" +
		"O1,A1,10\n" +
		"O2,A2\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	tb, err := table.LoadCSV(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Order ID", "SKU Code", "Order Qty (in Units)"}, tb.Header)
	assert.Equal(t, 2, tb.Len())
	assert.Equal(t, "A1", tb.Value(0, "SKU Code"))
	assert.Equal(t, "", tb.Value(1, "Order Qty (in Units)"))
	assert.Equal(t, "", tb.Value(0, "Missing Column"))
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := table.LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open csv")
}

func TestSelect_SkipsAbsentColumnsAndKeepsOrder(t *testing.T) {
	tb := table.New("t", []string{"a", "b", "c"})
	tb.Append([]string{"1", "2", "3"})

	out := tb.Select([]string{"c", "zzz", "a"})
	assert.Equal(t, []string{"c", "a"}, out.Header)
	assert.Equal(t, [][]string{{"3", "1"}}, out.Rows)
}

func TestSetColumn_AddsAndReplaces(t *testing.T) {
	tb := table.New("t", []string{"a"})
	tb.Append([]string{"1"})
	tb.Append([]string{"2"})

	tb.SetColumn("b", []string{"x", "y"})
	tb.SetColumn("a", []string{"9", "8"})
	assert.Equal(t, []string{"a", "b"}, tb.Header)
	assert.Equal(t, "8", tb.Value(1, "a"))
	assert.Equal(t, "x", tb.Value(0, "b"))
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	tb := table.New("t", []string{"name", "note"})
	tb.Append([]string{"Hazelnut, 200g", "has \"quotes\""})
	b, err := tb.CSV()
	require.NoError(t, err)

	back, err := table.ReadCSV(strings.NewReader(string(b)), "t", table.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, tb.Rows, back.Rows)
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"10", 10, true},
		{" 1,234.50 ", 1234.5, true},
		{"₹1,23,456", 123456, true},
		{"Rs. 99", 99, true},
		{"45.5%", 45.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
	}
	for _, c := range cases {
		got, ok := table.ParseNumber(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		assert.Equal(t, c.want, got, c.in)
	}
}

func TestParsePercent(t *testing.T) {
	v, err := table.ParsePercent("87.50%")
	require.NoError(t, err)
	assert.Equal(t, 87.5, v)

	for _, in := range []string{"", "87.5", "abc%", "%"} {
		_, err := table.ParsePercent(in)
		var pe *table.PercentError
		require.ErrorAs(t, err, &pe, in)
		assert.Equal(t, in, pe.Value)
	}
}

func TestParseTime(t *testing.T) {
	for _, in := range []string{"2025-05-01", "2025-05-01 10:30:00", "05-01-2025", "05/01/2025", "5/1/2025", "01-May-2025"} {
		tm, ok := table.ParseTime(in)
		require.True(t, ok, in)
		assert.Equal(t, 2025, tm.Year(), in)
		assert.Equal(t, 5, int(tm.Month()), in)
		assert.Equal(t, 1, tm.Day(), in)
	}

	tm, ok := table.ParseTime("05/06/2025")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.May, 6, 0, 0, 0, 0, time.UTC), tm)

	// no thirteenth month, so the day-first reading applies
	tm, ok = table.ParseTime("13/05/2025 09:15")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, time.May, 13, 9, 15, 0, 0, time.UTC), tm)

	_, ok = table.ParseTime("not a date")
	assert.False(t, ok)
}

func TestQuantile_LinearInterpolation(t *testing.T) {
	vals := []float64{4, 1, 3, 2}
	assert.InDelta(t, 3.25, table.Quantile(vals, 0.75), 1e-9)
	assert.Equal(t, []float64{4, 1, 3, 2}, vals, "input must not be reordered")
	assert.Equal(t, 0.0, table.Quantile(nil, 0.75))
	assert.Equal(t, 7.0, table.Quantile([]float64{7}, 0.75))
}

func TestMarkdown_TruncatesRows(t *testing.T) {
	tb := table.New("t", []string{"sku", "qty"})
	tb.Append([]string{"A|1", "1"})
	tb.Append([]string{"B", "2"})
	md := tb.Markdown(1)
	assert.Contains(t, md, "| sku | qty |")
	assert.Contains(t, md, "| A/1 | 1 |")
	assert.NotContains(t, md, "| B |")
	assert.Contains(t, md, "(1 of 2 rows shown)")
}
