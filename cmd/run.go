package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/filflo-cli/internal/derive"
	"github.com/KaramelBytes/filflo-cli/internal/pipeline"
)

var (
	runEnriched string
	runEnhanced string
	runQuiet    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline: load, join, finalize, derive and write both tables",
	Long: `Runs every stage in memory and writes the enriched and enhanced tables only
after all stages succeed. A missing source aborts the run without output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := sourcesFromFlags()
		if err != nil {
			return err
		}
		p, err := newPipeline()
		if err != nil {
			return err
		}
		out := pipeline.Outputs{
			Enriched: orDefault(runEnriched, cfg.EnrichedPath),
			Enhanced: orDefault(runEnhanced, cfg.EnhancedPath),
		}
		rep, err := p.Run(src, out)
		if err != nil {
			return err
		}
		printBuild(rep.Build)
		printDerive(rep.Derive)
		fmt.Printf("✓ Enriched → %s\n", out.Enriched)
		fmt.Printf("✓ Enhanced → %s\n", out.Enhanced)
		if !runQuiet {
			fmt.Println()
			fmt.Print(derive.Summarize(rep.Enhanced).Markdown())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	addSourceFlags(runCmd)
	runCmd.Flags().StringVar(&runEnriched, "enriched-out", "", "enriched output CSV (default from config)")
	runCmd.Flags().StringVar(&runEnhanced, "enhanced-out", "", "enhanced output CSV (default from config)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "skip the summary report")
}
