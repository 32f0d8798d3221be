// Package derive computes per-row and per-SKU operational signals over an
// enriched order table: shortage, fulfillment, inventory age, demand
// velocity, batch-relative stock flags and a composite priority score.
package derive

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/filflo-cli/internal/logging"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/telemetry"
)

// Enriched table columns read by Derive.
const (
	SrcOrderID     = "Order ID"
	SrcSKU         = "SKU Code"
	SrcProductName = "Product_Name"
	SrcCustomer    = "Customer"
	SrcOrderStatus = "Order Status"
	SrcPODate      = "PO Date"
	SrcDelivery    = "Delivery Date"
	SrcInvoice     = "Total Invoice Amount With Tax"
	SrcOrderQty    = "Order Qty (in Units)"
	SrcFulfilled   = "Fulfilled/Dispatched Qty (in Units)"
	SrcFulfillPct  = "Order Vs Fulfilled %"
	SrcOrderType   = "Order Type"
)

// Output columns. Downstream consumers address the table by these names.
const (
	ColUnifiedID      = "unified_id"
	ColOrderID        = "order_id"
	ColSKU            = "sku_code"
	ColProductName    = "product_name"
	ColCustomer       = "customer_name"
	ColOrderStatus    = "order_status"
	ColOrderType      = "order_type"
	ColPODate         = "po_date"
	ColDeliveryDate   = "delivery_date"
	ColTaxableValue   = "taxable_value"
	ColOrderQty       = "order_qty_units"
	ColFulfilledQty   = "fulfilled_qty_units"
	ColShortage       = "shortage_qty"
	ColFulfillmentPct = "fulfillment_percentage"
	ColInventoryAge   = "inventory_age_days"
	ColVelocity       = "demand_velocity"
	ColOverstocked    = "is_overstocked"
	ColUnderstocked   = "is_understocked"
	ColStockout       = "is_stockout"
	ColPriority       = "priority_score"
)

// Columns is the ordered output schema of Derive.
var Columns = []string{
	ColUnifiedID, ColOrderID, ColSKU, ColProductName, ColCustomer, ColOrderStatus,
	ColOrderType, ColPODate, ColDeliveryDate, ColTaxableValue, ColOrderQty,
	ColFulfilledQty, ColShortage, ColFulfillmentPct, ColInventoryAge, ColVelocity,
	ColOverstocked, ColUnderstocked, ColStockout, ColPriority,
}

// Required enriched columns; the rest default to empty or zero when absent.
var required = []string{SrcOrderID, SrcSKU, SrcOrderQty, SrcFulfilled}

// DefaultOrderType is used when an order id has no type in the raw orders.
const DefaultOrderType = "Standard"

// Priority weights.
const (
	WeightVelocity = 0.4
	WeightShortage = 0.3
	WeightValue    = 0.2
	WeightStockout = 0.1
)

// Engine derives the metrics table. The zero value is usable: AsOf defaults
// to the wall clock and NewID to a truncated random UUID.
type Engine struct {
	// AsOf is the reference "now" for inventory age.
	AsOf time.Time
	// NewID returns a fresh unified_id.
	NewID func() string
	// OrderTypes maps raw order id to its order type.
	OrderTypes map[string]string

	Logger    *zap.Logger
	Telemetry *telemetry.Registry
}

// Stats reports coercions and the batch thresholds used for the flags.
type Stats struct {
	Rows           int
	BadNumbers     int
	BadPercents    int
	BadDates       int
	DefaultedTypes int
	VelocityP75    float64
	AgeP75         float64
}

type row struct {
	orderQty, fulfilled, value, pct float64
	shortage, velocity             float64
	age                            int
	stockout                       bool
}

// Derive maps the enriched table onto Columns. It fails only when a required
// input column is missing; every unparsable cell is coerced and counted.
func (e *Engine) Derive(in *table.Table) (*table.Table, Stats, error) {
	start := time.Now()
	log := logging.OrNop(e.Logger)

	var missing []string
	for _, c := range required {
		if !in.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, Stats{}, fmt.Errorf("derive: enriched table lacks %s", strings.Join(missing, ", "))
	}

	asOf := e.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	newID := e.NewID
	if newID == nil {
		newID = ShortID
	}

	n := in.Len()
	st := Stats{Rows: n}
	rows := make([]row, n)
	num := func(r int, col string) float64 {
		s := in.Value(r, col)
		v, ok := table.ParseNumber(s)
		if !ok {
			if strings.TrimSpace(s) != "" {
				st.BadNumbers++
			}
			return 0
		}
		return v
	}

	for r := 0; r < n; r++ {
		x := &rows[r]
		x.orderQty = num(r, SrcOrderQty)
		x.fulfilled = num(r, SrcFulfilled)
		x.value = num(r, SrcInvoice)
		x.shortage = math.Max(0, x.orderQty-x.fulfilled)
		x.stockout = x.fulfilled == 0

		pct, err := table.ParsePercent(in.Value(r, SrcFulfillPct))
		if err != nil {
			st.BadPercents++
		}
		x.pct = pct

		if po, ok := table.ParseTime(in.Value(r, SrcPODate)); ok {
			x.age = ageDays(asOf, po)
		} else {
			st.BadDates++
		}
	}

	velocity := skuVelocity(in.Column(SrcSKU), rows)
	vels := make([]float64, n)
	ages := make([]float64, n)
	var maxVel, maxShort, maxVal float64
	for r := range rows {
		rows[r].velocity = velocity[r]
		vels[r] = velocity[r]
		ages[r] = float64(rows[r].age)
		maxVel = math.Max(maxVel, rows[r].velocity)
		maxShort = math.Max(maxShort, rows[r].shortage)
		maxVal = math.Max(maxVal, rows[r].value)
	}
	if n > 0 {
		st.VelocityP75 = table.Quantile(vels, 0.75)
		st.AgeP75 = table.Quantile(ages, 0.75)
	}

	out := table.New("enhanced", Columns)
	out.Rows = make([][]string, 0, n)
	for r, x := range rows {
		orderID := in.Value(r, SrcOrderID)
		otype, ok := e.OrderTypes[strings.TrimSpace(orderID)]
		if !ok || strings.TrimSpace(otype) == "" {
			otype = DefaultOrderType
			st.DefaultedTypes++
		}

		over := x.velocity < 0.5*st.VelocityP75 && float64(x.age) > st.AgeP75
		under := x.velocity > st.VelocityP75 && x.shortage > 0
		score := PriorityScore(norm(x.velocity, maxVel), norm(x.shortage, maxShort), norm(x.value, maxVal), x.stockout)

		out.Rows = append(out.Rows, []string{
			newID(),
			orderID,
			in.Value(r, SrcSKU),
			in.Value(r, SrcProductName),
			in.Value(r, SrcCustomer),
			in.Value(r, SrcOrderStatus),
			otype,
			in.Value(r, SrcPODate),
			in.Value(r, SrcDelivery),
			table.FormatFloat(x.value),
			table.FormatFloat(x.orderQty),
			table.FormatFloat(x.fulfilled),
			table.FormatFloat(x.shortage),
			table.FormatFloat(x.pct),
			strconv.Itoa(x.age),
			table.FormatFloat(x.velocity),
			table.FormatBool(over),
			table.FormatBool(under),
			table.FormatBool(x.stockout),
			table.FormatFloat(score),
		})
	}

	e.Telemetry.AddCoerced("number", st.BadNumbers)
	e.Telemetry.AddCoerced(ColFulfillmentPct, st.BadPercents)
	e.Telemetry.AddCoerced(ColPODate, st.BadDates)
	e.Telemetry.ObserveStage("derive", start)
	log.Info("derived metrics",
		zap.Int("rows", n),
		zap.Float64("velocity_p75", st.VelocityP75),
		zap.Float64("age_p75", st.AgeP75),
		zap.Int("bad_numbers", st.BadNumbers),
		zap.Int("bad_percents", st.BadPercents),
		zap.Int("bad_dates", st.BadDates))
	return out, st, nil
}

// PriorityScore combines normalized components into a 0..100 score rounded
// to two decimals. Inputs are expected in [0, 1).
func PriorityScore(velocity, shortage, value float64, stockout bool) float64 {
	s := WeightVelocity*velocity + WeightShortage*shortage + WeightValue*value
	if stockout {
		s += WeightStockout
	}
	return table.Round(s*100, 2)
}

// norm scales x by the batch maximum; the +1 keeps an all-zero batch at zero.
func norm(x, max float64) float64 { return x / (max + 1) }

// ageDays is whole days from po to asOf, floored at zero.
func ageDays(asOf, po time.Time) int {
	d := int(math.Floor(asOf.Sub(po).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}

// skuVelocity computes sum(order qty) / (mean age + 1) * count per SKU and
// broadcasts it back onto every row. Rows with an empty SKU get 0.
func skuVelocity(skus []string, rows []row) []float64 {
	type agg struct {
		qty, age float64
		count    int
	}
	by := map[string]*agg{}
	for r, s := range skus {
		if strings.TrimSpace(s) == "" {
			continue
		}
		a, ok := by[s]
		if !ok {
			a = &agg{}
			by[s] = a
		}
		a.qty += rows[r].orderQty
		a.age += float64(rows[r].age)
		a.count++
	}
	out := make([]float64, len(skus))
	for r, s := range skus {
		a, ok := by[s]
		if !ok {
			continue
		}
		mean := a.age / float64(a.count)
		out[r] = a.qty / (mean + 1) * float64(a.count)
	}
	return out
}

// ShortID returns the first eight characters of a random UUID.
func ShortID() string { return uuid.NewString()[:8] }

// OrderTypesFrom indexes the raw orders' Order Type by Order ID. Later rows
// overwrite earlier ones.
func OrderTypesFrom(orders *table.Table) map[string]string {
	out := map[string]string{}
	if orders == nil || !orders.Has(SrcOrderType) {
		return out
	}
	for r := range orders.Rows {
		out[strings.TrimSpace(orders.Value(r, SrcOrderID))] = strings.TrimSpace(orders.Value(r, SrcOrderType))
	}
	return out
}
