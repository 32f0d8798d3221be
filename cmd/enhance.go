package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/filflo-cli/internal/derive"
	"github.com/KaramelBytes/filflo-cli/internal/table"
)

var (
	enhIn     string
	enhOrders string
	enhOut    string
	enhQuiet  bool
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Derive shortage, velocity, stock flags and priority from an enriched table",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		enriched, err := table.Load(orDefault(enhIn, cfg.EnrichedPath))
		if err != nil {
			return fmt.Errorf("load enriched: %w", err)
		}
		// order types come from the raw extract when it is around
		var orders *table.Table
		if path := orDefault(enhOrders, cfg.OrdersPath); path != "" {
			if orders, err = table.Load(path); err != nil {
				if cmd.Flags().Changed("orders") {
					return fmt.Errorf("load orders: %w", err)
				}
				orders = nil
			}
		}
		enhanced, st, err := p.Enhance(enriched, orders)
		if err != nil {
			return err
		}
		out := orDefault(enhOut, cfg.EnhancedPath)
		if err := p.Write("enhanced", out, enhanced); err != nil {
			return err
		}
		printDerive(st)
		fmt.Printf("✓ Enhanced table: %d rows → %s\n", enhanced.Len(), out)
		if !enhQuiet {
			fmt.Println()
			fmt.Print(derive.Summarize(enhanced).Markdown())
		}
		return nil
	},
}

func printDerive(st derive.Stats) {
	fmt.Printf("✓ Derived metrics for %d rows (velocity p75 %.2f, age p75 %.2f)\n", st.Rows, st.VelocityP75, st.AgeP75)
	if n := st.BadNumbers + st.BadPercents + st.BadDates; n > 0 {
		fmt.Printf("  Coerced: %d numbers, %d percents, %d dates\n", st.BadNumbers, st.BadPercents, st.BadDates)
	}
	if st.DefaultedTypes > 0 {
		fmt.Printf("  Order type defaulted on %d rows\n", st.DefaultedTypes)
	}
}

func init() {
	rootCmd.AddCommand(enhanceCmd)
	enhanceCmd.Flags().StringVarP(&enhIn, "in", "i", "", "enriched input CSV (default from config)")
	enhanceCmd.Flags().StringVar(&enhOrders, "orders", "", "orders extract for order types (default from config, optional)")
	enhanceCmd.Flags().StringVarP(&enhOut, "out", "o", "", "enhanced output CSV (default from config)")
	enhanceCmd.Flags().BoolVarP(&enhQuiet, "quiet", "q", false, "skip the summary report")
}
