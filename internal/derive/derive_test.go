package derive

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

func enrichedHeader() []string {
	return []string{SrcOrderID, SrcSKU, SrcProductName, SrcCustomer, SrcOrderStatus, SrcPODate,
		SrcDelivery, SrcInvoice, SrcOrderQty, SrcFulfilled, SrcFulfillPct}
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%06d", n)
	}
}

func threeOrdersA1() *table.Table {
	t := table.New("enriched", enrichedHeader())
	t.Append([]string{"O1", "A1", "Hazelnut Can", "Acme", "Delivered", "2025-06-01", "", "₹1,000", "10", "10", "100.00%"})
	t.Append([]string{"O2", "A1", "Hazelnut Can", "Acme", "Pending", "2025-06-01", "", "₹1,000", "10", "5", "50.00%"})
	t.Append([]string{"O3", "A1", "Hazelnut Can", "Beta", "Pending", "2025-06-01", "", "₹1,000", "10", "0", "0.00%"})
	return t
}

func TestDerive_ThreeOrdersOneSKU(t *testing.T) {
	e := &Engine{AsOf: asOf, NewID: seqIDs(), OrderTypes: map[string]string{"O1": "Express"}}
	out, st, err := e.Derive(threeOrdersA1())
	require.NoError(t, err)
	require.Equal(t, Columns, out.Header)
	require.Equal(t, 3, out.Len())

	assert.Equal(t, []string{"0", "5", "10"}, out.Column(ColShortage))
	assert.Equal(t, []string{"0", "0", "1"}, out.Column(ColStockout))
	assert.Equal(t, []string{"10", "10", "10"}, out.Column(ColInventoryAge))
	assert.Equal(t, []string{"100", "50", "0"}, out.Column(ColFulfillmentPct))
	assert.Equal(t, []string{"1000", "1000", "1000"}, out.Column(ColTaxableValue))

	vel := out.Column(ColVelocity)
	assert.Equal(t, vel[0], vel[1])
	assert.Equal(t, vel[1], vel[2])
	assert.InDelta(t, 90.0/11.0, table.NumberOrZero(vel[0]), 1e-12)

	// velocity equals p75 for every row, so no row is over- or understocked
	assert.Equal(t, []string{"0", "0", "0"}, out.Column(ColOverstocked))
	assert.Equal(t, []string{"0", "0", "0"}, out.Column(ColUnderstocked))
	assert.Equal(t, []string{"55.62", "69.26", "92.9"}, out.Column(ColPriority))

	assert.Equal(t, []string{"Express", DefaultOrderType, DefaultOrderType}, out.Column(ColOrderType))
	assert.Equal(t, 2, st.DefaultedTypes)
	assert.Equal(t, []string{"id000001", "id000002", "id000003"}, out.Column(ColUnifiedID))
}

func TestDerive_BatchRelativeFlags(t *testing.T) {
	tb := table.New("enriched", enrichedHeader())
	tb.Append([]string{"B1", "B", "", "", "", "2025-06-10", "", "0", "100", "50", "50%"})
	tb.Append([]string{"C1", "C", "", "", "", "2025-01-01", "", "0", "1", "1", "100%"})
	tb.Append([]string{"D1", "D", "", "", "", "2025-06-01", "", "0", "10", "10", "100%"})
	tb.Append([]string{"E1", "E", "", "", "", "2025-06-01", "", "0", "10", "10", "100%"})

	out, st, err := (&Engine{AsOf: asOf, NewID: seqIDs()}).Derive(tb)
	require.NoError(t, err)

	assert.InDelta(t, 47.75, st.AgeP75, 1e-9)
	assert.Equal(t, []string{"0", "0", "0", "0"}, out.Column(ColStockout))
	assert.Equal(t, []string{"1", "0", "0", "0"}, out.Column(ColUnderstocked))
	assert.Equal(t, []string{"0", "1", "0", "0"}, out.Column(ColOverstocked))
}

func TestDerive_Coercions(t *testing.T) {
	tb := table.New("enriched", enrichedHeader())
	tb.Append([]string{"O1", "", "", "", "", "not a date", "", "n/a", "12", "20", "75"})
	tb.Append([]string{"O2", "S", "", "", "", "2030-01-01", "", "", "4", "", "abc%"})

	out, st, err := (&Engine{AsOf: asOf, NewID: seqIDs()}).Derive(tb)
	require.NoError(t, err)

	// over-fulfilled rows clamp to zero shortage
	assert.Equal(t, "0", out.Value(0, ColShortage))
	assert.Equal(t, "0", out.Value(0, ColVelocity), "empty SKU gets no velocity")
	assert.Equal(t, "0", out.Value(0, ColInventoryAge))
	assert.Equal(t, "0", out.Value(1, ColInventoryAge), "future PO dates clamp to zero")
	assert.Equal(t, "0", out.Value(0, ColFulfillmentPct))
	assert.Equal(t, "0", out.Value(1, ColFulfillmentPct))
	assert.Equal(t, "1", out.Value(1, ColStockout))

	assert.Equal(t, 1, st.BadNumbers)
	assert.Equal(t, 2, st.BadPercents)
	assert.Equal(t, 1, st.BadDates)
}

func TestDerive_MissingRequiredColumn(t *testing.T) {
	tb := table.New("enriched", []string{SrcOrderID, SrcSKU})
	_, _, err := (&Engine{AsOf: asOf}).Derive(tb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), SrcOrderQty)
}

func TestDerive_PriorityBounded(t *testing.T) {
	out, _, err := (&Engine{AsOf: asOf, NewID: seqIDs()}).Derive(threeOrdersA1())
	require.NoError(t, err)
	for _, v := range out.Column(ColPriority) {
		p := table.NumberOrZero(v)
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 100.0)
	}
}

func TestDerive_RoundTrip(t *testing.T) {
	out, _, err := (&Engine{AsOf: asOf, NewID: seqIDs()}).Derive(threeOrdersA1())
	require.NoError(t, err)

	b, err := out.CSV()
	require.NoError(t, err)
	back, err := table.ReadCSV(bytes.NewReader(b), "reload", table.ReadOptions{})
	require.NoError(t, err)

	require.Equal(t, out.Header, back.Header)
	for _, c := range []string{ColVelocity, ColShortage, ColPriority, ColInventoryAge} {
		want, got := out.Column(c), back.Column(c)
		require.Equal(t, want, got, c)
		for i := range want {
			assert.Equal(t, table.NumberOrZero(want[i]), table.NumberOrZero(got[i]), c)
		}
	}
}

func TestDerive_DefaultIDs(t *testing.T) {
	out, _, err := (&Engine{AsOf: asOf}).Derive(threeOrdersA1())
	require.NoError(t, err)
	ids := out.Column(ColUnifiedID)
	for _, id := range ids {
		assert.Len(t, id, 8)
	}
	assert.NotEqual(t, ids[0], ids[1])
}

func TestPriorityScore(t *testing.T) {
	assert.Equal(t, 0.0, PriorityScore(0, 0, 0, false))
	assert.Equal(t, 10.0, PriorityScore(0, 0, 0, true))
	assert.InDelta(t, 55.0, PriorityScore(0.5, 0.5, 0.5, true), 1e-9)
}

func TestOrderTypesFrom_LastWriteWins(t *testing.T) {
	raw := table.New("orders", []string{SrcOrderID, SrcOrderType})
	raw.Append([]string{"O1", "B2B"})
	raw.Append([]string{" O1 ", "Marketplace"})
	raw.Append([]string{"O2", ""})

	m := OrderTypesFrom(raw)
	assert.Equal(t, "Marketplace", m["O1"])
	assert.Equal(t, "", m["O2"])
	assert.Empty(t, OrderTypesFrom(table.New("orders", []string{SrcOrderID})))
	assert.Empty(t, OrderTypesFrom(nil))
}

func TestSummarizeAndDashboard(t *testing.T) {
	out, _, err := (&Engine{AsOf: asOf, NewID: seqIDs()}).Derive(threeOrdersA1())
	require.NoError(t, err)

	s := Summarize(out)
	assert.Equal(t, 3, s.Records)
	assert.Equal(t, 2, s.UniqueCustomers)
	assert.Equal(t, 1, s.UniqueSKUs)
	assert.Equal(t, 3000.0, s.TotalValue)
	assert.Equal(t, 15.0, s.Shortage)
	assert.Equal(t, 2, s.ShortOrders)
	assert.Equal(t, 1, s.Stockouts)
	assert.Equal(t, 1, s.HighPriority)
	assert.Equal(t, 2, s.MediumPriority)
	assert.Equal(t, 10, s.MaxAge)
	assert.InDelta(t, 50.0, s.MeanFill, 1e-9)
	assert.Contains(t, s.Markdown(), "- Stockout orders: 1")

	d := Dashboard(out)
	assert.Equal(t, 50.0, d.FillRate)
	assert.Equal(t, 2, d.PendingOrders)
	assert.Equal(t, 1, d.Stockouts)
	assert.Equal(t, 3000.0, d.TotalValue)
}
