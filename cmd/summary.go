package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/filflo-cli/internal/derive"
	"github.com/KaramelBytes/filflo-cli/internal/table"
	"github.com/KaramelBytes/filflo-cli/internal/utils"
)

var sumJSON bool

var summaryCmd = &cobra.Command{
	Use:   "summary [enhanced.csv]",
	Short: "Print the batch report for an enhanced table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		path := c.EnhancedPath
		if len(args) == 1 {
			path = args[0]
		}
		t, err := table.Load(path)
		if err != nil {
			return fmt.Errorf("load enhanced: %w", err)
		}
		if sumJSON {
			b, err := utils.PrettyJSON(derive.Dashboard(t))
			if err != nil {
				return err
			}
			fmt.Println(string(b))
			return nil
		}
		fmt.Print(derive.Summarize(t).Markdown())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().BoolVar(&sumJSON, "json", false, "print dashboard metrics as JSON")
}
