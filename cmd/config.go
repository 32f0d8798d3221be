package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/filflo-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/filflo-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set FilFlo configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("orders_path: %s\n", cfg.OrdersPath)
		fmt.Printf("customers_path: %s\n", cfg.CustomersPath)
		fmt.Printf("products_path: %s\n", cfg.ProductsPath)
		fmt.Printf("rate_cards_path: %s\n", cfg.RateCardsPath)
		fmt.Printf("invoices_path: %s\n", cfg.InvoicesPath)
		fmt.Printf("enriched_path: %s\n", cfg.EnrichedPath)
		fmt.Printf("enhanced_path: %s\n", cfg.EnhancedPath)
		fmt.Printf("cleaned_path: %s\n", cfg.CleanedPath)
		fmt.Printf("strict_lookups: %t\n", cfg.StrictLookups)
		if cfg.AsOf != "" {
			fmt.Printf("as_of: %s\n", cfg.AsOf)
		}
		fmt.Printf("provider: %s\n", cfg.Provider)
		fmt.Printf("model: %s\n", cfg.Model)
		fmt.Printf("api_key: %s\n", mask(cfg.APIKey))
		fmt.Printf("openai_api_key: %s\n", mask(cfg.OpenAIAPIKey))
		fmt.Printf("max_tokens: %d\n", cfg.MaxTokens)
		fmt.Printf("temperature: %.3f\n", cfg.Temperature)
		fmt.Printf("listen_addr: %s\n", cfg.ListenAddr)
		fmt.Printf("rate_limit_per_min: %d\n", cfg.RateLimitPerMin)
		fmt.Printf("history_backend: %s\n", cfg.HistoryBackend)
		if cfg.HistoryBackend == "redis" {
			fmt.Printf("redis_addr: %s\n", cfg.RedisAddr)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := requireConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	paths := map[string]*string{
		"orders_path":     &c.OrdersPath,
		"customers_path":  &c.CustomersPath,
		"products_path":   &c.ProductsPath,
		"rate_cards_path": &c.RateCardsPath,
		"invoices_path":   &c.InvoicesPath,
		"enriched_path":   &c.EnrichedPath,
		"enhanced_path":   &c.EnhancedPath,
		"cleaned_path":    &c.CleanedPath,
		"model":           &c.Model,
		"api_key":         &c.APIKey,
		"openai_base_url": &c.OpenAIBaseURL,
		"ollama_host":     &c.OllamaHost,
		"listen_addr":     &c.ListenAddr,
		"redis_addr":      &c.RedisAddr,
		"log_env":         &c.LogEnv,
	}
	if p, ok := paths[key]; ok {
		*p = val
		return nil
	}
	ints := map[string]*int{
		"max_tokens":         &c.MaxTokens,
		"rate_limit_per_min": &c.RateLimitPerMin,
		"history_max_turns":  &c.HistoryMaxTurns,
		"http_timeout_sec":   &c.HTTPTimeoutSec,
	}
	if p, ok := ints[key]; ok {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*p = i
		return nil
	}
	switch key {
	case "provider":
		v := strings.ToLower(val)
		for _, p := range ai.Providers() {
			if v == p {
				c.Provider = v
				return nil
			}
		}
		return fmt.Errorf("invalid provider: %s (use %s)", val, strings.Join(ai.Providers(), ", "))
	case "history_backend":
		v := strings.ToLower(val)
		if v != "memory" && v != "redis" {
			return fmt.Errorf("invalid history_backend: %s (use memory or redis)", val)
		}
		c.HistoryBackend = v
	case "strict_lookups":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for strict_lookups: %w", err)
		}
		c.StrictLookups = b
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for temperature: %w", err)
		}
		c.Temperature = f
	case "as_of":
		prev := c.AsOf
		c.AsOf = val
		if _, err := c.AsOfTime(); err != nil {
			c.AsOf = prev
			return err
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
