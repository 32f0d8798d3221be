// Package lookup turns the customer, product and rate-card masters into keyed
// maps used by the enrichment join.
//
// Keys are trimmed but otherwise compared verbatim (SKU case is preserved).
// Duplicate keys follow last-write-wins unless Options.Strict is set; either
// way the number of overwritten rows is reported in Stats so the silent
// overwrite is visible to callers.
package lookup

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/filflo-cli/internal/table"
)

// RateKeySeparator joins SKU and rate-card name in a rate key.
const RateKeySeparator = "_"

// Source column labels in the master extracts.
const (
	ColCustomerName = "Customer Name"
	ColContact      = "Contact No"
	ColEmail        = "Email Id"
	ColAddress1     = "Address Line 1"
	ColAddress2     = "Address Line 2"
	ColCity         = "City"
	ColState        = "State"
	ColPincode      = "Pincode"
	ColRateCard     = "Rate Card"

	ColProductSKU     = "PRODUCT SKU CODE"
	ColProductName    = "PRODUCT NAME"
	ColCategory       = "CATEGORY"
	ColHSN            = "HSN CODE"
	ColTaxSlab        = "TAX SLAB"
	ColPricePerUnit   = "Price Per Unit"
	ColCaseSize       = "CASE SIZE"
	ColWeight         = "WEIGHT"
	ColDimension      = "DIMENSION"
	ColLowerThreshold = "LOWER THRESHOLD"
	ColUpperThreshold = "UPPER THRESHOLD"
	ColZeptoSKU       = "ZEPTO SKU"
	ColBlinkitSKU     = "BLINKIT SKU"
	ColSwiggySKU      = "SWIGGY SKU"

	ColRateSKU      = "Product SKU Code"
	ColRateCardName = "Rate Card Name"
	ColRatePrice    = "Price (₹)"
	ColRateType     = "Rate Card Type"
	ColRateCreated  = "Created On"
)

// CustomerBundle is the customer-master slice attached to each order row.
type CustomerBundle struct {
	Contact  string
	Email    string
	Address  string
	Pincode  string
	RateCard string
}

// ProductBundle is the product-master slice attached to each order row.
type ProductBundle struct {
	Name           string
	Category       string
	HSNCode        string
	TaxSlab        string
	PricePerUnit   float64
	CaseSize       string
	Weight         string
	Dimension      string
	LowerThreshold string
	UpperThreshold string
	ZeptoSKU       string
	BlinkitSKU     string
	SwiggySKU      string
}

// RateBundle is the negotiated price for a SKU under one rate card.
type RateBundle struct {
	Price   float64
	Type    string
	Created string
}

// Options controls duplicate handling.
type Options struct {
	// Strict fails the build on the first duplicate key instead of overwriting.
	Strict bool
}

// Stats reports what a build saw.
type Stats struct {
	Rows       int
	Keys       int
	Duplicates int
}

// DuplicateKeyError is returned in strict mode when two master rows share a key.
// Rows are 1-based data row numbers (header excluded).
type DuplicateKeyError struct {
	Table    string
	Key      string
	FirstRow int
	Row      int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s key %q at row %d (first seen at row %d)", e.Table, e.Key, e.Row, e.FirstRow)
}

// Customers maps trimmed customer name to its bundle.
type Customers map[string]CustomerBundle

// Products maps trimmed SKU code to its bundle.
type Products map[string]ProductBundle

// Rates maps RateKey(sku, rateCard) to its bundle.
type Rates map[string]RateBundle

// Get returns the bundle for name; a miss yields the zero bundle and false.
func (c Customers) Get(name string) (CustomerBundle, bool) {
	b, ok := c[CustomerKey(name)]
	return b, ok
}

// Get returns the bundle for sku; a miss yields the zero bundle and false.
func (p Products) Get(sku string) (ProductBundle, bool) {
	b, ok := p[ProductKey(sku)]
	return b, ok
}

// Get returns the rate for (sku, rateCard); a miss yields the zero bundle and false.
func (r Rates) Get(sku, rateCard string) (RateBundle, bool) {
	b, ok := r[RateKey(sku, rateCard)]
	return b, ok
}

// CustomerKey normalizes a customer name for lookup.
func CustomerKey(name string) string { return strings.TrimSpace(name) }

// ProductKey normalizes a SKU code for lookup.
func ProductKey(sku string) string { return strings.TrimSpace(sku) }

// RateKey builds the composite rate-card key. It is the only place the key
// format lives, so build and read sides cannot drift apart.
func RateKey(sku, rateCard string) string {
	return strings.TrimSpace(sku) + RateKeySeparator + strings.TrimSpace(rateCard)
}

// keyTracker implements the duplicate policy shared by the three builders.
type keyTracker struct {
	table  string
	strict bool
	seen   map[string]int
	stats  Stats
}

func newKeyTracker(name string, opt Options) *keyTracker {
	return &keyTracker{table: name, strict: opt.Strict, seen: map[string]int{}}
}

func (k *keyTracker) add(key string, row int) error {
	k.stats.Rows++
	if first, ok := k.seen[key]; ok {
		if k.strict {
			return &DuplicateKeyError{Table: k.table, Key: key, FirstRow: first, Row: row}
		}
		k.stats.Duplicates++
		return nil
	}
	k.seen[key] = row
	k.stats.Keys++
	return nil
}

// BuildCustomers indexes the customer master by trimmed name.
func BuildCustomers(t *table.Table, opt Options) (Customers, Stats, error) {
	out := make(Customers, t.Len())
	kt := newKeyTracker("customer", opt)
	for r := range t.Rows {
		key := CustomerKey(t.Value(r, ColCustomerName))
		if err := kt.add(key, r+1); err != nil {
			return nil, kt.stats, err
		}
		addr := strings.Join([]string{
			t.Value(r, ColAddress1), t.Value(r, ColAddress2), t.Value(r, ColCity), t.Value(r, ColState),
		}, " ")
		out[key] = CustomerBundle{
			Contact:  t.Value(r, ColContact),
			Email:    t.Value(r, ColEmail),
			Address:  strings.TrimSpace(addr),
			Pincode:  t.Value(r, ColPincode),
			RateCard: t.Value(r, ColRateCard),
		}
	}
	return out, kt.stats, nil
}

// BuildProducts indexes the product master by trimmed SKU code.
func BuildProducts(t *table.Table, opt Options) (Products, Stats, error) {
	out := make(Products, t.Len())
	kt := newKeyTracker("product", opt)
	for r := range t.Rows {
		key := ProductKey(t.Value(r, ColProductSKU))
		if err := kt.add(key, r+1); err != nil {
			return nil, kt.stats, err
		}
		out[key] = ProductBundle{
			Name:           t.Value(r, ColProductName),
			Category:       t.Value(r, ColCategory),
			HSNCode:        t.Value(r, ColHSN),
			TaxSlab:        t.Value(r, ColTaxSlab),
			PricePerUnit:   table.NumberOrZero(t.Value(r, ColPricePerUnit)),
			CaseSize:       t.Value(r, ColCaseSize),
			Weight:         t.Value(r, ColWeight),
			Dimension:      t.Value(r, ColDimension),
			LowerThreshold: t.Value(r, ColLowerThreshold),
			UpperThreshold: t.Value(r, ColUpperThreshold),
			ZeptoSKU:       t.Value(r, ColZeptoSKU),
			BlinkitSKU:     t.Value(r, ColBlinkitSKU),
			SwiggySKU:      t.Value(r, ColSwiggySKU),
		}
	}
	return out, kt.stats, nil
}

// BuildRates indexes the rate card by RateKey(sku, rate card name).
func BuildRates(t *table.Table, opt Options) (Rates, Stats, error) {
	out := make(Rates, t.Len())
	kt := newKeyTracker("rate", opt)
	for r := range t.Rows {
		key := RateKey(t.Value(r, ColRateSKU), t.Value(r, ColRateCardName))
		if err := kt.add(key, r+1); err != nil {
			return nil, kt.stats, err
		}
		out[key] = RateBundle{
			Price:   table.NumberOrZero(t.Value(r, ColRatePrice)),
			Type:    t.Value(r, ColRateType),
			Created: t.Value(r, ColRateCreated),
		}
	}
	return out, kt.stats, nil
}
