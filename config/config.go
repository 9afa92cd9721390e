package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the recommendation service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	History   HistoryConfig   `mapstructure:"history"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // end-to-end deadline per run
	DefaultTimeout time.Duration `mapstructure:"default_timeout"` // per gateway call
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model handles each pipeline stage.
type LLMRoutingConfig struct {
	Planning   string `mapstructure:"planning"`   // query generation
	Extraction string `mapstructure:"extraction"` // recipe parsing from snippets
	Reasoning  string `mapstructure:"reasoning"`  // per-pick justification text
	Nutrition  string `mapstructure:"nutrition"`  // per-serving estimates
	Intent     string `mapstructure:"intent"`     // chat message parsing
	Fallback   string `mapstructure:"fallback"`
}

// ModelFor resolves the model for a stage, falling back when unset.
func (r LLMRoutingConfig) ModelFor(stage string) string {
	var m string
	switch stage {
	case "planning":
		m = r.Planning
	case "extraction":
		m = r.Extraction
	case "reasoning":
		m = r.Reasoning
	case "nutrition":
		m = r.Nutrition
	case "intent":
		m = r.Intent
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

// SearchConfig contains web search gateway settings
type SearchConfig struct {
	Provider           string        `mapstructure:"provider"` // tavily, brave, serper
	APIKey             string        `mapstructure:"api_key"`
	MaxResultsPerQuery int           `mapstructure:"max_results_per_query"`
	RecencyDays        int           `mapstructure:"recency_days"`
	DomainAllowlist    []string      `mapstructure:"domain_allowlist"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
}

func (s SearchConfig) Validate() error {
	switch s.Provider {
	case "tavily", "brave", "serper":
	default:
		return fmt.Errorf("search.provider must be one of tavily, brave, serper (got %q)", s.Provider)
	}
	if s.MaxResultsPerQuery <= 0 {
		return fmt.Errorf("search.max_results_per_query must be > 0")
	}
	return nil
}

// PipelineConfig names the orchestration and selection thresholds.
type PipelineConfig struct {
	MinAcceptableCandidates int     `mapstructure:"min_acceptable_candidates"`
	MaxRetries              int     `mapstructure:"max_retries"`
	TopK                    int     `mapstructure:"top_k"`
	MaxQueries              int     `mapstructure:"max_queries"`
	QueryLengthCap          int     `mapstructure:"query_length_cap"`
	TitleSimilarityCutoff   float64 `mapstructure:"title_similarity_cutoff"`
}

func (p PipelineConfig) Validate() error {
	if p.MinAcceptableCandidates < 1 {
		return fmt.Errorf("pipeline.min_acceptable_candidates must be >= 1")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries cannot be negative")
	}
	if p.TopK < 1 {
		return fmt.Errorf("pipeline.top_k must be >= 1")
	}
	if p.QueryLengthCap < 30 {
		return fmt.Errorf("pipeline.query_length_cap must be >= 30")
	}
	if p.TitleSimilarityCutoff <= 0 || p.TitleSimilarityCutoff > 1 {
		return fmt.Errorf("pipeline.title_similarity_cutoff must be in (0,1]")
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	CostTracking bool   `mapstructure:"cost_tracking"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
	LogFile      string `mapstructure:"log_file"`
}

// HistoryConfig configures the session history store. When Redis is not
// configured the server falls back to an in-process store.
type HistoryConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.Host) != "" && strings.TrimSpace(r.Port) != ""
}

// LoadConfig loads config from a JSON file, with SOUSCHEF_* env overrides.
// An empty path searches the usual locations; a missing file is fine and
// leaves the defaults plus environment in effect.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")

	setDefaults(v)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if exe, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(exe))
		}
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("SOUSCHEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = firstEnv("TAVILY_API_KEY", "BRAVE_API_KEY", "SERPER_API_KEY")
	}
	if p, ok := cfg.LLM.Providers["openai"]; ok && p.APIKey == "" {
		p.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.LLM.Providers["openai"] = p
	}

	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.request_timeout", "60s")
	v.SetDefault("general.default_timeout", "20s")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("search.provider", "tavily")
	v.SetDefault("search.max_results_per_query", 3)
	v.SetDefault("search.recency_days", 730)
	v.SetDefault("search.max_retries", 2)
	v.SetDefault("pipeline.min_acceptable_candidates", 2)
	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.top_k", 3)
	v.SetDefault("pipeline.max_queries", 5)
	v.SetDefault("pipeline.query_length_cap", 120)
	v.SetDefault("pipeline.title_similarity_cutoff", 0.3)
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.cost_tracking", true)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.ttl", "24h")
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
