package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/filflo-cli/internal/ingest"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/utils"
)

var (
	ingIn  string
	ingOut string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Clean a raw invoice extract into the compact agent schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		in := orDefault(ingIn, c.InvoicesPath)
		raw, err := table.Load(in)
		if err != nil {
			return fmt.Errorf("load invoices: %w", err)
		}
		cl := &ingest.Cleaner{Logger: logger, Telemetry: metrics}
		cleaned, st, err := cl.Process(raw)
		if err != nil {
			return err
		}
		b, err := cleaned.CSV()
		if err != nil {
			return err
		}
		out := orDefault(ingOut, c.CleanedPath)
		if err := utils.SafeWriteFile(out, b); err != nil {
			return fmt.Errorf("write cleaned: %w", err)
		}
		metrics.SetRowsWritten("cleaned", cleaned.Len())

		fmt.Printf("✓ Cleaned %s → %s\n", st, out)
		reasons := make([]string, 0, len(st.Rejected))
		for r := range st.Rejected {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Printf("  rejected for %s: %d\n", r, st.Rejected[r])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&ingIn, "in", "i", "", "invoice extract CSV (default from config)")
	ingestCmd.Flags().StringVarP(&ingOut, "out", "o", "", "cleaned output CSV (default from config)")
}
