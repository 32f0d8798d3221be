// Package schema restricts tables to a fixed, ordered column set and stamps
// the processing time on finalized output.
package schema

import (
	"time"

	"github.com/KaramelBytes/filflo-cli/internal/table"
)

// ColProcessedAt is appended by Finalize.
const ColProcessedAt = "Data_Processed_At"

// TimestampLayout formats ColProcessedAt values.
const TimestampLayout = "2006-01-02 15:04:05"

// Result is a reconciled table plus the expected columns it did and did not carry.
type Result struct {
	Table   *table.Table
	Present []string
	Missing []string
}

// Reconcile keeps the expected columns that exist in t, in expected order.
// Absent columns are dropped without error and reported in Missing.
func Reconcile(t *table.Table, expected []string) Result {
	res := Result{}
	for _, c := range expected {
		if t.Has(c) {
			res.Present = append(res.Present, c)
		} else {
			res.Missing = append(res.Missing, c)
		}
	}
	res.Table = t.Select(res.Present)
	return res
}

// Finalize reconciles t against expected and appends ColProcessedAt set to
// processedAt on every row.
func Finalize(t *table.Table, expected []string, processedAt time.Time) Result {
	res := Reconcile(t, expected)
	stamp := processedAt.Format(TimestampLayout)
	vals := make([]string, res.Table.Len())
	for i := range vals {
		vals[i] = stamp
	}
	res.Table.SetColumn(ColProcessedAt, vals)
	return res
}
