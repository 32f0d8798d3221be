package table

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var currencyMarks = []string{"₹", "Rs.", "INR", "$"}

// ParseNumber reads a plain or formatted number ("₹1,23,456.50", "42%", " 7 ").
// Commas are treated as thousands separators.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	for _, m := range currencyMarks {
		raw = strings.ReplaceAll(raw, m, "")
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", "")
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.ReplaceAll(raw, " ", "")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NumberOrZero is ParseNumber with invalid input coerced to 0.
func NumberOrZero(s string) float64 {
	f, _ := ParseNumber(s)
	return f
}

// PercentError reports a malformed percent-formatted value.
type PercentError struct {
	Value  string
	Reason string
}

func (e *PercentError) Error() string {
	return fmt.Sprintf("malformed percent %q: %s", e.Value, e.Reason)
}

// ParsePercent reads an "NN.NN%" field into NN.NN.
func ParsePercent(s string) (float64, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, &PercentError{Value: s, Reason: "empty"}
	}
	if !strings.HasSuffix(raw, "%") {
		return 0, &PercentError{Value: s, Reason: "missing % suffix"}
	}
	num := strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &PercentError{Value: s, Reason: "not a number"}
	}
	return f, nil
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04:05",
	"2006/01/02", "02-Jan-2006", "02 Jan 2006", "Jan 2, 2006",
	// month-first, then day-first for values no month-first layout accepts
	"01/02/2006", "01/02/2006 15:04", "01/02/2006 15:04:05", "01-02-2006", "01-02-2006 15:04:05",
	"1/2/2006", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"02/01/2006", "02/01/2006 15:04", "02/01/2006 15:04:05", "02-01-2006", "02-01-2006 15:04:05",
	"2/1/2006", "2/1/2006 15:04", "2/1/2006 15:04:05",
}

// ParseTime tries the layouts seen in warehouse extracts. Ambiguous numeric
// dates read month-first; day-first is the fallback ("13/05/2025").
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatFloat renders a float in the shortest form that round-trips.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatBool renders a flag as 1 or 0.
func FormatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Round rounds to the given number of decimal places.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

// Quantile returns the q-th quantile of vals using linear interpolation
// between closest ranks. vals is not modified.
func Quantile(vals []float64, q float64) float64 {
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	return quantile(cp, q)
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
