package derive

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/filflo-cli/internal/table"
)

// Summary is the batch report printed after an enhance run.
type Summary struct {
	Records         int
	UniqueCustomers int
	UniqueSKUs      int
	UniqueOrders    int

	TotalValue  float64
	MeanValue   float64
	MeanFill    float64
	Shortage    float64
	ShortOrders int

	Overstocked  int
	Understocked int
	Stockouts    int

	HighPriority   int
	MediumPriority int
	LowPriority    int

	MeanAge float64
	MaxAge  int
}

// Summarize reads a derived table (Columns) back into report figures.
func Summarize(t *table.Table) Summary {
	s := Summary{Records: t.Len()}
	s.UniqueCustomers = distinct(t.Column(ColCustomer))
	s.UniqueSKUs = distinct(t.Column(ColSKU))
	s.UniqueOrders = distinct(t.Column(ColOrderID))

	var fill, age float64
	for r := range t.Rows {
		v := table.NumberOrZero(t.Value(r, ColTaxableValue))
		s.TotalValue += v
		fill += table.NumberOrZero(t.Value(r, ColFulfillmentPct))

		short := table.NumberOrZero(t.Value(r, ColShortage))
		s.Shortage += short
		if short > 0 {
			s.ShortOrders++
		}
		if t.Value(r, ColOverstocked) == "1" {
			s.Overstocked++
		}
		if t.Value(r, ColUnderstocked) == "1" {
			s.Understocked++
		}
		if t.Value(r, ColStockout) == "1" {
			s.Stockouts++
		}

		p := table.NumberOrZero(t.Value(r, ColPriority))
		switch {
		case p > 75:
			s.HighPriority++
		case p >= 25:
			s.MediumPriority++
		default:
			s.LowPriority++
		}

		a := int(table.NumberOrZero(t.Value(r, ColInventoryAge)))
		age += float64(a)
		if a > s.MaxAge {
			s.MaxAge = a
		}
	}
	if s.Records > 0 {
		n := float64(s.Records)
		s.MeanValue = s.TotalValue / n
		s.MeanFill = fill / n
		s.MeanAge = age / n
	}
	return s
}

// Markdown renders the summary as a short report.
func (s Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("## Data summary\n\n")
	fmt.Fprintf(&b, "- Records: %d\n", s.Records)
	fmt.Fprintf(&b, "- Unique customers: %d\n", s.UniqueCustomers)
	fmt.Fprintf(&b, "- Unique SKUs: %d\n", s.UniqueSKUs)
	fmt.Fprintf(&b, "- Unique orders: %d\n\n", s.UniqueOrders)

	b.WriteString("### Financial\n\n")
	fmt.Fprintf(&b, "- Total order value: ₹%.2f\n", s.TotalValue)
	fmt.Fprintf(&b, "- Average order value: ₹%.2f\n\n", s.MeanValue)

	b.WriteString("### Fulfillment\n\n")
	fmt.Fprintf(&b, "- Average fulfillment rate: %.1f%%\n", s.MeanFill)
	fmt.Fprintf(&b, "- Total shortage: %s units\n", table.FormatFloat(s.Shortage))
	fmt.Fprintf(&b, "- Orders with shortages: %d\n\n", s.ShortOrders)

	b.WriteString("### Stock status\n\n")
	fmt.Fprintf(&b, "- Overstocked: %d\n", s.Overstocked)
	fmt.Fprintf(&b, "- Understocked: %d\n", s.Understocked)
	fmt.Fprintf(&b, "- Stockout orders: %d\n\n", s.Stockouts)

	b.WriteString("### Priority\n\n")
	fmt.Fprintf(&b, "- High (>75): %d\n", s.HighPriority)
	fmt.Fprintf(&b, "- Medium (25-75): %d\n", s.MediumPriority)
	fmt.Fprintf(&b, "- Low (<25): %d\n\n", s.LowPriority)

	b.WriteString("### Inventory age\n\n")
	fmt.Fprintf(&b, "- Average: %.1f days\n", s.MeanAge)
	fmt.Fprintf(&b, "- Oldest: %d days\n", s.MaxAge)
	return b.String()
}

// DashboardMetrics are the headline figures served to the dashboard.
type DashboardMetrics struct {
	Records         int     `json:"records"`
	FillRate        float64 `json:"fillRate"`
	PendingOrders   int     `json:"pendingOrders"`
	Stockouts       int     `json:"stockouts"`
	Understocked    int     `json:"understocked"`
	Overstocked     int     `json:"overstocked"`
	TotalValue      float64 `json:"totalValue"`
	AveragePriority float64 `json:"averagePriority"`
}

// Dashboard computes DashboardMetrics. FillRate is fulfilled over ordered
// units in percent; an order counts as pending while any of its rows has a
// status containing "pending".
func Dashboard(t *table.Table) DashboardMetrics {
	m := DashboardMetrics{Records: t.Len()}
	var ordered, fulfilled, prio float64
	pending := map[string]struct{}{}
	for r := range t.Rows {
		ordered += table.NumberOrZero(t.Value(r, ColOrderQty))
		fulfilled += table.NumberOrZero(t.Value(r, ColFulfilledQty))
		m.TotalValue += table.NumberOrZero(t.Value(r, ColTaxableValue))
		prio += table.NumberOrZero(t.Value(r, ColPriority))
		if t.Value(r, ColStockout) == "1" {
			m.Stockouts++
		}
		if t.Value(r, ColUnderstocked) == "1" {
			m.Understocked++
		}
		if t.Value(r, ColOverstocked) == "1" {
			m.Overstocked++
		}
		if strings.Contains(strings.ToLower(t.Value(r, ColOrderStatus)), "pending") {
			pending[t.Value(r, ColOrderID)] = struct{}{}
		}
	}
	m.PendingOrders = len(pending)
	if ordered > 0 {
		m.FillRate = table.Round(fulfilled/ordered*100, 2)
	}
	if m.Records > 0 {
		m.AveragePriority = table.Round(prio/float64(m.Records), 2)
	}
	m.TotalValue = table.Round(m.TotalValue, 2)
	return m
}

func distinct(vals []string) int {
	seen := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}
