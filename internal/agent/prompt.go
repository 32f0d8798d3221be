package agent

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/filflo-cli/internal/derive"
		"github.com/KaramelBytes/filflo-cli/internal/table"
)

// Glossary describes the derived table columns to the model.
var Glossary = map[string]string{
	derive.ColUnifiedID:      "unique id of every transaction row",
	derive.ColOrderID:        "original order number",
	derive.ColSKU:            "product stock-keeping unit",
	derive.ColProductName:    "full product name",
	derive.ColCustomer:       "B2B customer name",
	derive.ColOrderStatus:    "current status, e.g. delivered, in_transit, pending",
	derive.ColOrderType:      "order channel, e.g. Blinkit, Standard",
	derive.ColPODate:         "purchase order date (YYYY-MM-DD)",
	derive.ColDeliveryDate:   "delivery date",
	derive.ColTaxableValue:   "monetary value of the row",
	derive.ColOrderQty:       "units ordered",
	derive.ColFulfilledQty:   "units actually sent",
	derive.ColShortage:       "units ordered but not sent, never negative",
	derive.ColFulfillmentPct: "fulfilled share of the order in percent",
	derive.ColInventoryAge:   "days since the PO date",
	derive.ColVelocity:       "per-SKU demand speed, identical on every row of a SKU",
	derive.ColOverstocked:    "1 when slow-moving and old relative to this batch",
	derive.ColUnderstocked:   "1 when fast-moving and short relative to this batch",
	derive.ColStockout:       "1 when nothing was fulfilled",
	derive.ColPriority:       "0-100 triage score combining demand, shortage, value and stockout",
}

const planRules = `You are FilFlo Warehouse Manager, an analyst for warehouse operations data.
Answer by returning ONE JSON object describing a query over the table below. Do not answer in prose.

Plan format:
{"filters":[{"column":"...","op":"eq|ne|gt|gte|lt|lte|contains","value":...}],
 "group_by":["..."],
 "aggregations":[{"column":"...","func":"sum|mean|min|max|count|nunique","as":"..."}],
 "columns":["..."],
 "sort_by":"...","descending":true,"limit":10,
 "methodology":"one plain sentence on how the answer is computed"}

Rules:
- For "top N" questions about SKUs, products or customers, group by the identifier and aggregate first. Never rank raw rows.
- sort_by must name a group_by column or an aggregation output ("as", or func_column) when aggregating.
- columns lists raw columns to show and cannot be combined with aggregations.
- Include the metrics that justify a ranking, e.g. demand_velocity and shortage_qty for understocked items.
- Flags are 0 or 1. Limit is at most 100.
`

const narrateRules = `You are FilFlo Warehouse Manager. The user is a warehouse manager.
Write the final answer in markdown from the computed result only. Do not invent numbers.
Present lists as a clean markdown table with the metrics that justify the ranking.
End with one short, non-technical sentence explaining the methodology.`

func planPrompt(t *table.Table) string {
	var b strings.Builder
	b.WriteString(planRules)
	b.WriteString("\nColumns:\n")
	for _, c := range t.Header {
		if desc, ok := Glossary[c]; ok {
			fmt.Fprintf(&b, "- %s: %s\n", c, desc)
		} else {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	fmt.Fprintf(&b, "\nThe table has %d rows.\n", t.Len())
	return b.String()
}

func narratePrompt(question, methodology string, resultMD string, matched int, truncated bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	fmt.Fprintf(&b, "Rows matching the filters: %d\n", matched)
	if truncated {
		b.WriteString("The result below was cut to the plan's limit.\n")
	}
	b.WriteString("\nResult:\n")
	b.WriteString(resultMD)
	if methodology != "" {
		fmt.Fprintf(&b, "\nMethodology: %s\n", methodology)
	}
	return b.String()
}
