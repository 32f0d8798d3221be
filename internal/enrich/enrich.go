// Package enrich joins order lines with the customer, product and rate-card
// lookups and mines flavor and package type out of product names.
package enrich

import (
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/filflo-cli/internal/logging"
	"github.com/KaramelBytes/filflo-cli/internal/lookup"
	"github.com/KaramelBytes/filflo-cli/internal/schema"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/telemetry"
)

// Order extract columns read by the join.
const (
	ColCustomer = "Customer"
	ColSKU      = "SKU Code"
)

// Attached column labels.
const (
	ColCustomerContact = "Customer_Contact"
	ColCustomerEmail   = "Customer_Email"
	ColCustomerAddress = "Customer_Full_Address"
	ColCustomerPincode = "Customer_Pincode"
	ColRateCard        = "Rate_Card"
	ColProductName     = "Product_Name"
	ColCategory        = "Category"
	ColHSNCode         = "HSN_Code"
	ColTaxSlab         = "Tax_Slab"
	ColMasterPrice     = "Master_Price_Per_Unit"
	ColCaseSize        = "Case_Size"
	ColWeight          = "Weight"
	ColDimension       = "Dimension"
	ColLowerThreshold  = "Lower_Threshold"
	ColUpperThreshold  = "Upper_Threshold"
	ColZeptoSKU        = "Zepto_SKU"
	ColBlinkitSKU      = "Blinkit_SKU"
	ColSwiggySKU       = "Swiggy_SKU"
	ColRateCardPrice   = "Rate_Card_Price"
	ColRateCardType    = "Rate_Card_Type"
	ColRateCardCreated = "Rate_Card_Created"
	ColFlavor          = "Flavor"
	ColPackageType     = "Package_Type"
)

// CanonicalColumns is the ordered output schema of the enriched table.
var CanonicalColumns = []string{
	"Order ID", "PO Number", "Invoice Number", "Customer", "Customer GST",
	"SKU Code", ColProductName, ColCategory, ColFlavor, ColPackageType,
	"PO Date", "Approved Date", "Dispatch Date", "Delivery Date", "Order Status",
	"WH", "Order Qty (Case Units)", "Order Qty (in Units)", "Approved Qty (in Units)",
	"Fulfilled/Dispatched Qty (in Units)", ColMasterPrice, ColRateCardPrice,
	"Total Invoice Amount With Tax", ColRateCardType, ColHSNCode, ColTaxSlab,
	ColCaseSize, ColWeight, ColDimension, ColZeptoSKU, ColBlinkitSKU, ColSwiggySKU,
	ColCustomerContact, ColCustomerEmail, ColCustomerAddress, ColCustomerPincode,
	"Shipping Address", "AWB Number", "Mode of Transport", "Order Vs Fulfilled %",
	"Approved Vs Fulfilled %", ColLowerThreshold, ColUpperThreshold, "GRN Qty (in Units)",
	"Approval Remarks", "WH/Fulfillment Remarks", ColRateCardCreated,
}

var attached = []string{
	ColCustomerContact, ColCustomerEmail, ColCustomerAddress, ColCustomerPincode, ColRateCard,
	ColProductName, ColCategory, ColHSNCode, ColTaxSlab, ColMasterPrice, ColCaseSize,
	ColWeight, ColDimension, ColLowerThreshold, ColUpperThreshold, ColZeptoSKU,
	ColBlinkitSKU, ColSwiggySKU, ColRateCardPrice, ColRateCardType, ColRateCardCreated,
	ColFlavor, ColPackageType,
}

// Engine resolves every order row against the three lookups.
type Engine struct {
	Customers lookup.Customers
	Products  lookup.Products
	Rates     lookup.Rates

	Logger    *zap.Logger
	Telemetry *telemetry.Registry
}

// Stats counts lookup misses and the canonical columns the orders lacked.
type Stats struct {
	Rows           int
	CustomerMisses int
	ProductMisses  int
	RateMisses     int
	MissingColumns []string
}

// Enrich attaches customer, product and rate attributes to every order row
// and restricts the result to CanonicalColumns. Lookup misses never fail a
// row; they fall back to empty strings and zero prices.
func (e *Engine) Enrich(orders *table.Table) (*table.Table, Stats) {
	start := time.Now()
	log := logging.OrNop(e.Logger)

	st := Stats{Rows: orders.Len()}
	cols := make([][]string, len(attached))
	for i := range cols {
		cols[i] = make([]string, orders.Len())
	}

	for r := range orders.Rows {
		cust, ok := e.Customers.Get(orders.Value(r, ColCustomer))
		if !ok {
			st.CustomerMisses++
		}
		sku := orders.Value(r, ColSKU)
		prod, ok := e.Products.Get(sku)
		if !ok {
			st.ProductMisses++
		}
		// the rate card comes from the customer resolved above
		rate, ok := e.Rates.Get(sku, cust.RateCard)
		if !ok {
			st.RateMisses++
		}

		vals := []string{
			cust.Contact, cust.Email, cust.Address, cust.Pincode, cust.RateCard,
			prod.Name, prod.Category, prod.HSNCode, prod.TaxSlab, table.FormatFloat(prod.PricePerUnit),
			prod.CaseSize, prod.Weight, prod.Dimension, prod.LowerThreshold, prod.UpperThreshold,
			prod.ZeptoSKU, prod.BlinkitSKU, prod.SwiggySKU,
			table.FormatFloat(rate.Price), rate.Type, rate.Created,
			ExtractFlavor(prod.Name), ExtractPackageType(prod.Name),
		}
		for i, v := range vals {
			cols[i][r] = v
		}
	}

	out := orders.Select(orders.Header)
	for i, name := range attached {
		out.SetColumn(name, cols[i])
	}

	res := schema.Reconcile(out, CanonicalColumns)
	st.MissingColumns = res.Missing

	e.Telemetry.AddMisses("customer", st.CustomerMisses)
	e.Telemetry.AddMisses("product", st.ProductMisses)
	e.Telemetry.AddMisses("rate", st.RateMisses)
	e.Telemetry.ObserveStage("join", start)
	log.Info("enrichment complete",
		zap.Int("rows", st.Rows),
		zap.Int("customer_misses", st.CustomerMisses),
		zap.Int("product_misses", st.ProductMisses),
		zap.Int("rate_misses", st.RateMisses),
		zap.Strings("missing_columns", st.MissingColumns))
	return res.Table, st
}
