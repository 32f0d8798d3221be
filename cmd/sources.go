package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/filflo-cli/internal/lookup"
	"github.com/KaramelBytes/filflo-cli/internal/pipeline"
)

var (
	srcOrders    string
	srcCustomers string
	srcProducts  string
	srcRateCards string
)

func addSourceFlags(c *cobra.Command) {
	c.Flags().StringVar(&srcOrders, "orders", "", "orders extract (default from config)")
	c.Flags().StringVar(&srcCustomers, "customers", "", "customer master (default from config)")
	c.Flags().StringVar(&srcProducts, "products", "", "product master (default from config)")
	c.Flags().StringVar(&srcRateCards, "rate-cards", "", "rate cards (default from config)")
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func sourcesFromFlags() (pipeline.Sources, error) {
	c, err := requireConfig()
	if err != nil {
		return pipeline.Sources{}, err
	}
	return pipeline.Sources{
		Orders:    orDefault(srcOrders, c.OrdersPath),
		Customers: orDefault(srcCustomers, c.CustomersPath),
		Products:  orDefault(srcProducts, c.ProductsPath),
		RateCards: orDefault(srcRateCards, c.RateCardsPath),
	}, nil
}

func printBuild(b *pipeline.BuildResult) {
	names := make([]string, 0, len(b.Lookups))
	for n := range b.Lookups {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		printLookup(n, b.Lookups[n])
	}
	fmt.Printf("✓ Joined %d order rows (misses: customer %d, product %d, rate %d)\n",
		b.Join.Rows, b.Join.CustomerMisses, b.Join.ProductMisses, b.Join.RateMisses)
	if len(b.Missing) > 0 {
		fmt.Printf("  Columns not in source, omitted: %v\n", b.Missing)
	}
}

func printLookup(name string, st lookup.Stats) {
	fmt.Printf("✓ %s lookup: %d keys from %d rows", name, st.Keys, st.Rows)
	if st.Duplicates > 0 {
		fmt.Printf(" (%d duplicates overwritten)", st.Duplicates)
	}
	fmt.Println()
}
