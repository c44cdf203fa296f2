// Package config defines the application configuration, loaded from
// config.yaml and THREATBRIEF_-prefixed environment variables via viper.
// The parsed Config is threaded explicitly into each collaborator's
// constructor; there is no process-wide mutable singleton.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Feeds     FeedsConfig     `mapstructure:"feeds" yaml:"feeds"`
	Stack     StackConfig     `mapstructure:"stack" yaml:"stack"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Report    ReportConfig    `mapstructure:"report" yaml:"report"`
}

// LoggerConfig controls the zap logger setup.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"` // "console" or "json"
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"` // megabytes
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"` // days
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig points at the PostgreSQL instance backing the document
// store and the vector table.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Embedding provider names accepted by the factory.
const (
	ProviderGemini = "gemini"
	ProviderHash   = "hash"
)

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider" yaml:"provider"`
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	Dimension  int           `mapstructure:"dimension" yaml:"dimension"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// FeedsConfig tunes the upstream collectors.
type FeedsConfig struct {
	NVD NVDConfig `mapstructure:"nvd" yaml:"nvd"`
	OTX OTXConfig `mapstructure:"otx" yaml:"otx"`
	RSS RSSConfig `mapstructure:"rss" yaml:"rss"`
}

// NVDConfig tunes the NVD CVE fetcher.
type NVDConfig struct {
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	ResultsPerPage int           `mapstructure:"results_per_page" yaml:"results_per_page"`
	Window         time.Duration `mapstructure:"window" yaml:"window"`
	RatePerSecond  float64       `mapstructure:"rate_per_second" yaml:"rate_per_second"`
}

// OTXConfig tunes the OTX pulse fetcher.
type OTXConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Limit  int    `mapstructure:"limit" yaml:"limit"`
}

// RSSConfig lists the news feeds to poll.
type RSSConfig struct {
	URLs []string `mapstructure:"urls" yaml:"urls"`
}

// StackConfig locates the consumer stack profile.
type StackConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PipelineConfig tunes the correlate and prioritize stages.
type PipelineConfig struct {
	RecentLimit       int           `mapstructure:"recent_limit" yaml:"recent_limit"`
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	MinConfidence     float64       `mapstructure:"min_confidence" yaml:"min_confidence"`
	WorkerConcurrency int           `mapstructure:"worker_concurrency" yaml:"worker_concurrency"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
}

// ReportConfig tunes the brief assembly and output.
type ReportConfig struct {
	TopRiskCount int    `mapstructure:"top_risk_count" yaml:"top_risk_count"`
	NotableCount int    `mapstructure:"notable_count" yaml:"notable_count"`
	Format       string `mapstructure:"format" yaml:"format"` // "markdown" or "json"
	OutputPath   string `mapstructure:"output_path" yaml:"output_path"`
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "threatbrief")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Embedding --
	v.SetDefault("embedding.provider", ProviderHash)
	v.SetDefault("embedding.model", "gemini-embedding-001")
	v.SetDefault("embedding.dimension", 1536)
	v.SetDefault("embedding.api_timeout", "30s")

	// -- Feeds --
	v.SetDefault("feeds.nvd.results_per_page", 50)
	v.SetDefault("feeds.nvd.window", "24h")
	v.SetDefault("feeds.nvd.rate_per_second", 0.5)
	v.SetDefault("feeds.otx.limit", 50)
	v.SetDefault("feeds.rss.urls", []string{
		"https://www.bleepingcomputer.com/feed/",
		"https://feeds.feedburner.com/TheHackersNews",
		"https://www.cisa.gov/cybersecurity-advisories/all.xml",
	})

	// -- Stack --
	v.SetDefault("stack.path", "stack.yaml")

	// -- Pipeline --
	v.SetDefault("pipeline.recent_limit", 200)
	v.SetDefault("pipeline.top_k", 8)
	v.SetDefault("pipeline.min_confidence", 0.35)
	v.SetDefault("pipeline.worker_concurrency", 4)
	v.SetDefault("pipeline.http_timeout", "30s")

	// -- Report --
	v.SetDefault("report.top_risk_count", 5)
	v.SetDefault("report.notable_count", 3)
	v.SetDefault("report.format", "markdown")
	v.SetDefault("report.output_path", "")
}

// NewDefaultConfig returns a Config populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper unmarshals and validates a Config from a viper instance
// that already has defaults, file contents, and env bindings applied.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("embedding.api_key", "THREATBRIEF_EMBEDDING_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("feeds.nvd.api_key", "THREATBRIEF_NVD_API_KEY", "NVD_API_KEY")
	v.BindEnv("feeds.otx.api_key", "THREATBRIEF_OTX_API_KEY", "OTX_API_KEY")
	v.BindEnv("database.url", "THREATBRIEF_DATABASE_URL", "DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Pipeline.RecentLimit <= 0 {
		return fmt.Errorf("pipeline.recent_limit must be a positive integer")
	}
	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("pipeline.top_k must be a positive integer")
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 1 {
		return fmt.Errorf("pipeline.min_confidence must be between 0.0 and 1.0")
	}
	if c.Pipeline.WorkerConcurrency <= 0 {
		return fmt.Errorf("pipeline.worker_concurrency must be a positive integer")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be a positive integer")
	}
	switch c.Embedding.Provider {
	case ProviderGemini, ProviderHash:
	default:
		return fmt.Errorf("unknown embedding provider %q. Supported: [%s %s]", c.Embedding.Provider, ProviderGemini, ProviderHash)
	}
	if c.Report.TopRiskCount < 0 || c.Report.NotableCount < 0 {
		return fmt.Errorf("report counts must not be negative")
	}
	return nil
}
