package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/filflo-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/filflo-cli/internal/config"
	"github.com/KaramelBytes/filflo-cli/internal/logging"
	"github.com/KaramelBytes/filflo-cli/internal/pipeline"
	"github.com/KaramelBytes/filflo-cli/internal/telemetry"
)

var (
	// Global flags
	cfgFile         string
	debug           bool
	flagAsOf        string
	flagStrict      bool
	flagMetricsFile string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg     *cfgpkg.Global
	logger  = zap.NewNop()
	metrics = telemetry.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:   "filflo",
	Short: "FilFlo CLI: enrich warehouse order extracts and query them in plain language",
	Long: `FilFlo joins order, customer, product and rate-card extracts into one enriched table,
derives demand velocity, shortage, stock flags and priority scores, and answers
questions about the result through an LLM-backed analytical agent.`,
	SilenceUsage: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		path := flagMetricsFile
		if path == "" && cfg != nil {
			path = cfg.MetricsTextfile
		}
		if path == "" {
			return nil
		}
		if err := metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		return nil
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.filflo/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&flagAsOf, "as-of", "", "reference time for inventory age (RFC3339 or YYYY-MM-DD; overrides config)")
	pf.BoolVar(&flagStrict, "strict", false, "fail on duplicate master keys instead of last-write-wins")
	pf.StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus metrics to this file after the command")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	pf.IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	pf.IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	metrics = telemetry.NewRegistry()
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("as-of") {
		cfg.AsOf = flagAsOf
	}
	if f.Changed("strict") {
		cfg.StrictLookups = flagStrict
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}

	l, err := logging.New(cfg.LogEnv, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to build logger: %v\n", err)
		return
	}
	logger = l
}

// requireConfig returns the loaded config, loading it now if startup failed.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

func newPipeline() (*pipeline.Pipeline, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	asOf, err := c.AsOfTime()
	if err != nil {
		return nil, err
	}
	return &pipeline.Pipeline{
		Strict:    c.StrictLookups,
		AsOf:      asOf,
		Logger:    logger,
		Telemetry: metrics,
	}, nil
}

// newRuntime builds the LLM runtime for provider, or the configured one when empty.
func newRuntime(provider string) (ai.Runtime, error) {
	c, err := requireConfig()
	if err != nil {
		return nil, err
	}
	if provider == "" {
		provider = c.Provider
	}
	rc := ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		Retry: ai.Retry{
			MaxAttempts: c.RetryMaxAttempts,
			BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		},
	}
	switch provider {
	case ai.ProviderOpenRouter:
		rc.APIKey = c.APIKey
	case ai.ProviderOpenAI:
		rc.APIKey = c.OpenAIAPIKey
		rc.BaseURL = c.OpenAIBaseURL
	case ai.ProviderOllama:
		rc.Host = c.OllamaHost
		rc.HTTPTimeout = time.Duration(c.OllamaTimeoutSec) * time.Second
		rc.Retry = ai.LocalRetry
	}
	return ai.NewRuntime(provider, rc)
}
