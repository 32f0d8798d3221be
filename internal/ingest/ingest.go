// Package ingest cleans a raw invoice extract into the compact schema the
// analytical agent can read directly.
package ingest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/filflo-cli/internal/logging"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/telemetry"
)

// Mapping pairs a source invoice column with its output name.
type Mapping struct {
	Source string
	Target string
}

// ColumnMap is the fixed invoice-to-output mapping.
var ColumnMap = []Mapping{
	{"Invoice Date", "po_date"},
	{"Invoice ID", "unified_id"},
	{"Invoice Number", "order_id"},
	{"SKU", "sku_code"},
	{"Item Name", "product_name"},
	{"Customer Name", "customer_name"},
	{"Invoice Status", "order_status"},
	{"CF.Sales Channel", "order_type"},
	{"Item Total", "taxable_value"},
	{"Quantity", "fulfilled_qty_units"},
}

// Columns is the ordered output schema.
var Columns = []string{
	"unified_id", "order_id", "sku_code", "product_name", "customer_name",
	"order_status", "order_type", "po_date", "taxable_value", "fulfilled_qty_units",
}

// DefaultOrderType fills an empty sales channel.
const DefaultOrderType = "Unknown"

// Rejection reasons, also used as metric labels.
const (
	RejectBadDate   = "po_date"
	RejectNoID      = "unified_id"
	RejectNoOrderID = "order_id"
	RejectNoSKU     = "sku_code"
)

// Stats counts what the cleaner kept, dropped and coerced.
type Stats struct {
	Rows     int
	Kept     int
	Rejected map[string]int
	Coerced  int
}

// MissingColumnsError is returned when the extract lacks mapped columns.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "invoice extract missing columns: " + strings.Join(e.Columns, ", ")
}

// Cleaner runs Process with optional logging and metrics.
type Cleaner struct {
	Logger    *zap.Logger
	Telemetry *telemetry.Registry
}

// Process renames, coerces and filters the invoice rows. Rows whose date does
// not parse or whose id, order number or SKU is blank are dropped; the first
// failing field is the recorded reason.
func (c *Cleaner) Process(in *table.Table) (*table.Table, Stats, error) {
	start := time.Now()
	log := logging.OrNop(c.Logger)

	var missing []string
	for _, m := range ColumnMap {
		if !in.Has(m.Source) {
			missing = append(missing, m.Source)
		}
	}
	if len(missing) > 0 {
		return nil, Stats{}, &MissingColumnsError{Columns: missing}
	}

	st := Stats{Rows: in.Len(), Rejected: map[string]int{}}
	out := table.New("invoices", Columns)
	for r := range in.Rows {
		get := func(col string) string { return strings.TrimSpace(in.Value(r, col)) }

		po, ok := table.ParseTime(get("Invoice Date"))
		reason := ""
		switch {
		case !ok:
			reason = RejectBadDate
		case get("Invoice ID") == "":
			reason = RejectNoID
		case get("Invoice Number") == "":
			reason = RejectNoOrderID
		case get("SKU") == "":
			reason = RejectNoSKU
		}
		if reason != "" {
			st.Rejected[reason]++
			continue
		}

		otype := get("CF.Sales Channel")
		if otype == "" {
			otype = DefaultOrderType
		}
		value, ok := table.ParseNumber(get("Item Total"))
		if !ok {
			st.Coerced++
		}
		qty, ok := table.ParseNumber(get("Quantity"))
		if !ok {
			st.Coerced++
		}

		out.Append([]string{
			get("Invoice ID"),
			get("Invoice Number"),
			get("SKU"),
			get("Item Name"),
			get("Customer Name"),
			get("Invoice Status"),
			otype,
			formatDate(po),
			table.FormatFloat(value),
			strconv.FormatInt(int64(qty), 10),
		})
	}
	st.Kept = out.Len()

	for reason, n := range st.Rejected {
		c.Telemetry.AddRejected(reason, n)
	}
	c.Telemetry.AddCoerced("invoice", st.Coerced)
	c.Telemetry.ObserveStage("ingest", start)
	log.Info("invoice extract cleaned",
		zap.Int("rows", st.Rows),
		zap.Int("kept", st.Kept),
		zap.Any("rejected", st.Rejected),
		zap.Int("coerced", st.Coerced))
	return out, st, nil
}

// formatDate drops the clock when the source carried a bare date.
func formatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}

// Reject reports the total number of dropped rows.
func (s Stats) Reject() int {
	n := 0
	for _, v := range s.Rejected {
		n += v
	}
	return n
}

func (s Stats) String() string {
	return fmt.Sprintf("%d rows, %d kept, %d rejected, %d coerced", s.Rows, s.Kept, s.Reject(), s.Coerced)
}
