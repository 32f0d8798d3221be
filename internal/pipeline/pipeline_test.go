package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/filflo-cli/internal/derive"
	"github.com/KaramelBytes/filflo-cli/internal/lookup"
	"github.com/KaramelBytes/filflo-cli/internal/schema"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersCSV = ` Order ID ,PO Number,Customer,SKU Code,PO Date,Order Status,Order Qty (in Units),Fulfilled/Dispatched Qty (in Units),Order Vs Fulfilled %,Total Invoice Amount With Tax,Order Type
O1,P1,Acme Retail,A1,2025-06-01,Delivered,10,10,100.00%,"₹1,000",B2B
O2,P2,Acme Retail,A1,2025-06-01,Pending,10,5,50.00%,"₹1,000",
O3,P3,Unknown Co,A1,2025-06-01,Pending,10,0,0.00%,"₹1,000",Marketplace
`

const customersCSV = `Customer Name,Contact No,Email Id,Address Line 1,Address Line 2,City,State,Pincode,Rate Card
Acme Retail,99,a@acme.in,12 MG Road,,Pune,MH,411001,RC-Gold
`

const productsCSV = `PRODUCT SKU CODE,PRODUCT NAME,CATEGORY,Price Per Unit
A1,Hazelnut Original Latte Can,RTD,120
`

const ratesCSV = `Product SKU Code,Rate Card Name,Price (₹),Rate Card Type,Created On
A1,RC-Gold,95.5,B2B,2025-01-01
A1,RC-Base,110,B2C,2025-01-01
`

func fixtures(t *testing.T) (Sources, string) {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	return Sources{
		Orders:    write("orders.csv", ordersCSV),
		Customers: write("customers.csv", customersCSV),
		Products:  write("products.csv", productsCSV),
		RateCards: write("rates.csv", ratesCSV),
	}, dir
}

func testPipeline(reg *telemetry.Registry) *Pipeline {
	n := 0
	return &Pipeline{
		AsOf:      time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC),
		NewID:     func() string { n++; return fmt.Sprintf("u%07d", n) },
		Telemetry: reg,
	}
}

func TestRun_EndToEnd(t *testing.T) {
	src, dir := fixtures(t)
	out := Outputs{Enriched: filepath.Join(dir, "enriched.csv"), Enhanced: filepath.Join(dir, "enhanced.csv")}
	reg := telemetry.NewRegistry()

	rep, err := testPipeline(reg).Run(src, out)
	require.NoError(t, err)

	enriched, err := table.LoadCSV(out.Enriched)
	require.NoError(t, err)
	require.Equal(t, 3, enriched.Len())
	assert.Equal(t, "O1", enriched.Value(0, "Order ID"))
	assert.Equal(t, "95.5", enriched.Value(0, "Rate_Card_Price"))
	assert.Equal(t, "Hazelnut", enriched.Value(0, "Flavor"))
	assert.Equal(t, "Can", enriched.Value(0, "Package_Type"))
	assert.Equal(t, "12 MG Road  Pune MH", enriched.Value(0, "Customer_Full_Address"))
	assert.Equal(t, "", enriched.Value(2, "Customer_Email"))
	assert.Equal(t, "0", enriched.Value(2, "Rate_Card_Price"))
	assert.Equal(t, "2025-06-11 08:00:00", enriched.Value(0, schema.ColProcessedAt))
	assert.Equal(t, schema.ColProcessedAt, enriched.Header[len(enriched.Header)-1])
	assert.Contains(t, rep.Build.Missing, "AWB Number")
	assert.False(t, enriched.Has("AWB Number"))

	enhanced, err := table.LoadCSV(out.Enhanced)
	require.NoError(t, err)
	require.Equal(t, derive.Columns, enhanced.Header)
	assert.Equal(t, []string{"0", "5", "10"}, enhanced.Column(derive.ColShortage))
	assert.Equal(t, []string{"0", "0", "1"}, enhanced.Column(derive.ColStockout))
	assert.Equal(t, []string{"B2B", "Standard", "Marketplace"}, enhanced.Column(derive.ColOrderType))
	vel := enhanced.Column(derive.ColVelocity)
	assert.Equal(t, vel[0], vel[2])
	assert.Equal(t, rep.Enhanced.Rows, enhanced.Rows)

	assert.Equal(t, 1, rep.Build.Join.CustomerMisses)
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.SourceRows.WithLabelValues("orders")))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.RowsWritten.WithLabelValues("enhanced")))
}

func TestRun_MissingSourceWritesNothing(t *testing.T) {
	src, dir := fixtures(t)
	src.RateCards = filepath.Join(dir, "nope.csv")
	out := Outputs{Enriched: filepath.Join(dir, "enriched.csv"), Enhanced: filepath.Join(dir, "enhanced.csv")}

	_, err := testPipeline(nil).Run(src, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load rate_cards")
	assert.NoFileExists(t, out.Enriched)
	assert.NoFileExists(t, out.Enhanced)
}

func TestRun_FailedWriteKeepsPreviousArtifacts(t *testing.T) {
	src, dir := fixtures(t)
	enriched := filepath.Join(dir, "enriched.csv")
	require.NoError(t, os.WriteFile(enriched, []byte("previous\n"), 0o644))
	// a regular file where the enhanced output's directory should be
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	out := Outputs{Enriched: enriched, Enhanced: filepath.Join(blocker, "enhanced.csv")}

	_, err := testPipeline(nil).Run(src, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write enhanced")

	b, err := os.ReadFile(enriched)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(b))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}
}

func TestBuild_StrictDuplicates(t *testing.T) {
	src, _ := fixtures(t)
	p := testPipeline(nil)
	in, err := p.LoadSources(src)
	require.NoError(t, err)
	in.Customers.Append([]string{"Acme Retail", "1", "", "", "", "", "", "", "RC-Base"})

	res, err := p.Build(in)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Lookups["customer"].Duplicates)
	// last write wins: Acme now prices on RC-Base
	assert.Equal(t, "110", res.Enriched.Value(0, "Rate_Card_Price"))

	p.Strict = true
	_, err = p.Build(in)
	var dup *lookup.DuplicateKeyError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Acme Retail", dup.Key)
}
