package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Sources
	OrdersPath    string `mapstructure:"orders_path" yaml:"orders_path"`
	CustomersPath string `mapstructure:"customers_path" yaml:"customers_path"`
	ProductsPath  string `mapstructure:"products_path" yaml:"products_path"`
	RateCardsPath string `mapstructure:"rate_cards_path" yaml:"rate_cards_path"`
	InvoicesPath  string `mapstructure:"invoices_path" yaml:"invoices_path"`

	// Outputs
	EnrichedPath string `mapstructure:"enriched_path" yaml:"enriched_path"`
	EnhancedPath string `mapstructure:"enhanced_path" yaml:"enhanced_path"`
	CleanedPath  string `mapstructure:"cleaned_path" yaml:"cleaned_path"`

	// Pipeline behavior
	StrictLookups bool   `mapstructure:"strict_lookups" yaml:"strict_lookups"`
	AsOf          string `mapstructure:"as_of" yaml:"as_of"`

	// Observability
	LogEnv          string `mapstructure:"log_env" yaml:"log_env"`
	MetricsTextfile string `mapstructure:"metrics_textfile" yaml:"metrics_textfile"`

	// Agent
	Provider         string  `mapstructure:"provider" yaml:"provider"`
	Model            string  `mapstructure:"model" yaml:"model"`
	APIKey           string  `mapstructure:"api_key" yaml:"api_key"`
	OpenAIAPIKey     string  `mapstructure:"openai_api_key" yaml:"-"`
	OpenAIBaseURL    string  `mapstructure:"openai_base_url" yaml:"openai_base_url"`
	MaxTokens        int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature"`
	HTTPTimeoutSec   int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int     `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int     `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int     `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	OllamaHost       string  `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int     `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// API server
	ListenAddr      string `mapstructure:"listen_addr" yaml:"listen_addr"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min"`
	HistoryBackend  string `mapstructure:"history_backend" yaml:"history_backend"`
	RedisAddr       string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password" yaml:"-"`
	RedisDB         int    `mapstructure:"redis_db" yaml:"redis_db"`
	HistoryTTLHours int    `mapstructure:"history_ttl_hours" yaml:"history_ttl_hours"`
	HistoryMaxTurns int    `mapstructure:"history_max_turns" yaml:"history_max_turns"`
}

// Dir returns ~/.filflo.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".filflo"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.filflo/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > .env > config file > defaults.
// A .env file in the working directory is loaded first without overriding
// variables already set in the environment.
func Load(cfgFile string) (*Global, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("FILFLO")
	v.AutomaticEnv()
	// provider keys keep their conventional unprefixed names
	_ = v.BindEnv("api_key", "FILFLO_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openai_api_key", "FILFLO_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("redis_password", "FILFLO_REDIS_PASSWORD", "REDIS_PASSWORD")

	v.SetDefault("orders_path", "data/orders.csv")
	v.SetDefault("customers_path", "data/customers.csv")
	v.SetDefault("products_path", "data/products.csv")
	v.SetDefault("rate_cards_path", "data/rate_cards.csv")
	v.SetDefault("invoices_path", "data/invoices.csv")
	v.SetDefault("enriched_path", "comprehensive_filflo_data.csv")
	v.SetDefault("enhanced_path", "filflo_enhanced.csv")
	v.SetDefault("cleaned_path", "filflo_master_data.csv")
	v.SetDefault("strict_lookups", false)
	v.SetDefault("as_of", "")
	v.SetDefault("log_env", "development")
	v.SetDefault("metrics_textfile", "")

	v.SetDefault("provider", "openrouter")
	v.SetDefault("model", "openai/gpt-4o-mini")
	v.SetDefault("max_tokens", 1000)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("openai_base_url", "")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)

	v.SetDefault("listen_addr", ":5000")
	v.SetDefault("rate_limit_per_min", 20)
	v.SetDefault("history_backend", "memory")
	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("history_max_turns", 20)
	v.SetDefault("history_ttl_hours", 24)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// AsOfTime parses AsOf. An empty value returns the zero time, meaning "use
// the wall clock".
func (c *Global) AsOfTime() (time.Time, error) {
	if c.AsOf == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, c.AsOf); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("as_of %q: want RFC3339 or YYYY-MM-DD", c.AsOf)
}
