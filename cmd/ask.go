package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/filflo-cli/internal/agent"
	"github.com/KaramelBytes/filflo-cli/internal/ai"
	"github.com/KaramelBytes/filflo-cli/internal/history"
	"github.com/KaramelBytes/filflo-cli/internal/table"
)

var (
	askData     string
	askProvider string
	askModel    string
	askMaxTok   int
	askTemp     float64
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the enhanced table; without a question starts a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ag, err := newAgent(cmd, askData, askProvider, askModel, askMaxTok, askTemp)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if len(args) > 0 {
			fmt.Println(ag.Ask(ctx, strings.Join(args, " ")))
			return nil
		}
		return session(ctx, ag)
	},
}

// newAgent loads the data file and builds the configured runtime. Flags
// override config when changed.
func newAgent(cmd *cobra.Command, data, provider, model string, maxTok int, temp float64) (*agent.Agent, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	t, err := table.Load(orDefault(data, c.EnhancedPath))
	if err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}
	rt, err := newRuntime(provider)
	if err != nil {
		return nil, err
	}
	opt := agent.Options{
		Model:       orDefault(model, c.Model),
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Logger:      logger,
		Telemetry:   metrics,
	}
	if cmd.Flags().Changed("max-tokens") {
		opt.MaxTokens = maxTok
	}
	if cmd.Flags().Changed("temperature") {
		opt.Temperature = temp
	}
	fmt.Printf("✓ Loaded %d records from %s\n", t.Len(), t.Name)
	return agent.New(rt, t, opt), nil
}

func session(ctx context.Context, ag *agent.Agent) error {
	fmt.Println("FilFlo Warehouse Manager. Ask about your warehouse operations; type 'exit' to quit.")
	store := history.NewMemoryStore(history.DefaultMaxTurns)
	const user = "cli"
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !sc.Scan() {
			return sc.Err()
		}
		q := strings.TrimSpace(sc.Text())
		switch strings.ToLower(q) {
		case "":
			continue
		case "exit", "quit":
			fmt.Println("Goodbye!")
			return nil
		}
		turns, _ := store.Recent(ctx, user, 0)
		answer, err := ag.Answer(ctx, q, turns)
		if err != nil {
			fmt.Println(agent.ErrorPrefix + err.Error())
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		now := time.Now()
		_ = store.Append(ctx, user,
			history.Turn{Role: ai.RoleUser, Content: q, Timestamp: now},
			history.Turn{Role: ai.RoleAssistant, Content: answer, Timestamp: now},
		)
		fmt.Println()
		fmt.Println(answer)
	}
}

func addAgentFlags(c *cobra.Command, data, provider, model *string, maxTok *int, temp *float64) {
	c.Flags().StringVarP(data, "data", "d", "", "enhanced table CSV (default from config)")
	c.Flags().StringVar(provider, "provider", "", "LLM provider: openrouter|openai|ollama (default from config)")
	c.Flags().StringVarP(model, "model", "m", "", "model name (default from config)")
	c.Flags().IntVar(maxTok, "max-tokens", 0, "max tokens per reply (default from config)")
	c.Flags().Float64Var(temp, "temperature", 0, "sampling temperature (default from config)")
}

func init() {
	rootCmd.AddCommand(askCmd)
	addAgentFlags(askCmd, &askData, &askProvider, &askModel, &askMaxTok, &askTemp)
}
