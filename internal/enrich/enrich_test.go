package enrich

import (
	"testing"

	"github.com/KaramelBytes/filflo-cli/internal/lookup"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	return &Engine{
		Customers: lookup.Customers{
			"Acme Retail": {Contact: "99", Email: "a@acme.in", Address: "12 MG Road Pune", Pincode: "411001", RateCard: "RC-Gold"},
		},
		Products: lookup.Products{
			"A1": {Name: "Hazelnut Original Latte Bottle Box", Category: "RTD", PricePerUnit: 120.5},
		},
		Rates: lookup.Rates{
			lookup.RateKey("A1", "RC-Gold"): {Price: 99.9, Type: "B2B", Created: "2025-01-01"},
			lookup.RateKey("A1", "RC-Base"): {Price: 110, Type: "B2C"},
		},
	}
}

func orders() *table.Table {
	t := table.New("orders", []string{"Order ID", "Customer", "SKU Code", "Order Status", "Internal Note"})
	t.Append([]string{"O1", "Acme Retail", "A1", "Delivered", "x"})
	t.Append([]string{"O2", "Nobody", "A1", "Pending", "y"})
	t.Append([]string{"O3", "Acme Retail", "Z9", "Pending", "z"})
	return t
}

func TestEnrich_ResolvesRateThroughCustomerRateCard(t *testing.T) {
	out, st := testEngine().Enrich(orders())

	assert.Equal(t, "99.9", out.Value(0, ColRateCardPrice))
	assert.Equal(t, "B2B", out.Value(0, ColRateCardType))
	assert.Equal(t, "120.5", out.Value(0, ColMasterPrice))
	assert.Equal(t, "Hazelnut", out.Value(0, ColFlavor))
	assert.Equal(t, "Bottle", out.Value(0, ColPackageType))
	assert.Equal(t, "a@acme.in", out.Value(0, ColCustomerEmail))

	assert.Equal(t, 3, st.Rows)
	assert.Equal(t, 1, st.CustomerMisses)
	assert.Equal(t, 1, st.ProductMisses)
	// O2 has no rate card, O3 has no rate for Z9
	assert.Equal(t, 2, st.RateMisses)
}

func TestEnrich_CustomerMissYieldsEmptyFields(t *testing.T) {
	out, _ := testEngine().Enrich(orders())

	for _, c := range []string{ColCustomerContact, ColCustomerEmail, ColCustomerAddress, ColCustomerPincode} {
		assert.Equal(t, "", out.Value(1, c), c)
	}
	// product still resolves, rate falls back to zero
	assert.Equal(t, "RTD", out.Value(1, ColCategory))
	assert.Equal(t, "0", out.Value(1, ColRateCardPrice))
}

func TestEnrich_ProductMissDefaults(t *testing.T) {
	out, _ := testEngine().Enrich(orders())
	assert.Equal(t, "", out.Value(2, ColProductName))
	assert.Equal(t, DefaultFlavor, out.Value(2, ColFlavor))
	assert.Equal(t, DefaultPackageType, out.Value(2, ColPackageType))
	assert.Equal(t, "0", out.Value(2, ColMasterPrice))
}

func TestEnrich_RestrictsToCanonicalColumns(t *testing.T) {
	out, st := testEngine().Enrich(orders())

	assert.False(t, out.Has("Internal Note"))
	assert.False(t, out.Has(ColRateCard), "rate card name is not part of the output schema")
	assert.Contains(t, st.MissingColumns, "AWB Number")
	require.Equal(t, "Order ID", out.Header[0])

	// remaining columns follow canonical order
	pos := -1
	for _, h := range out.Header {
		i := indexOf(CanonicalColumns, h)
		require.GreaterOrEqual(t, i, 0, h)
		require.Greater(t, i, pos, h)
		pos = i
	}
}

func TestEnrich_RecordsMisses(t *testing.T) {
	reg := telemetry.NewRegistry()
	e := testEngine()
	e.Telemetry = reg
	e.Enrich(orders())
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.LookupMisses.WithLabelValues("customer")))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.LookupMisses.WithLabelValues("rate")))
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
