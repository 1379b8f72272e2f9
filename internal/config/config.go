// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"newswatch/internal/intel"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Source    SourceConfig    `mapstructure:"source"`
	Extractor ExtractorConfig `mapstructure:"extractor"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	DB        DBConfig        `mapstructure:"db"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Events    EventsConfig    `mapstructure:"events"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig selects and parameterizes the extraction source.
type SourceConfig struct {
	Name           string `mapstructure:"name"`
	ListingURL     string `mapstructure:"listing_url"`
	MaxArticles    int    `mapstructure:"max_articles"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ExtractorConfig governs per-URL extraction behavior.
type ExtractorConfig struct {
	MaxAttempts   int    `mapstructure:"max_attempts"`
	RenderEnabled bool   `mapstructure:"render_enabled"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	UserAgent     string `mapstructure:"user_agent"`
}

// LLMConfig points at the inference service.
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// AnalyzerConfig bounds prompt assembly.
type AnalyzerConfig struct {
	MaxContentChars int `mapstructure:"max_content_chars"`
}

// DBConfig controls the article store backend.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
}

// ArchiveConfig controls raw page snapshot persistence.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// EventsConfig holds Pub/Sub metadata for outcome notifications. An
// empty topic disables publishing.
type EventsConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// PipelineConfig governs orchestrator behavior.
type PipelineConfig struct {
	RunOnStart bool `mapstructure:"run_on_start"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("source.name", "nvidia-newsroom")
	v.SetDefault("source.listing_url", "https://nvidianews.nvidia.com/news")
	v.SetDefault("source.max_articles", 5)
	v.SetDefault("source.timeout_seconds", 30)
	v.SetDefault("extractor.max_attempts", 2)
	v.SetDefault("extractor.render_enabled", true)
	v.SetDefault("extractor.nav_timeout_seconds", 30)
	v.SetDefault("extractor.user_agent", "newswatch/1.0")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3")
	v.SetDefault("llm.timeout_seconds", 30)
	v.SetDefault("llm.max_retries", 1)
	v.SetDefault("analyzer.max_content_chars", 16000)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("archive.provider", "memory")
	v.SetDefault("archive.prefix", "snapshots")
	v.SetDefault("pipeline.run_on_start", true)
}

// Validate enforces required values and reasonable limits. A failure
// here is fatal at invocation time, before any pipeline stage runs.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.ListingURL == "" {
		return fmt.Errorf("source.listing_url must be set")
	}
	if c.Source.MaxArticles <= 0 {
		return fmt.Errorf("source.max_articles must be > 0")
	}
	if c.Source.TimeoutSeconds <= 0 {
		return fmt.Errorf("source.timeout_seconds must be > 0")
	}
	if c.Extractor.MaxAttempts <= 0 {
		return fmt.Errorf("extractor.max_attempts must be > 0")
	}
	if c.LLM.BaseURL == "" || c.LLM.Model == "" {
		return fmt.Errorf("llm.base_url and llm.model must be set")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be > 0")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be >= 0")
	}
	if c.Analyzer.MaxContentChars <= 0 {
		return fmt.Errorf("analyzer.max_content_chars must be > 0")
	}
	switch c.DB.Provider {
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown db.provider: %s", c.DB.Provider)
	}
	switch c.Archive.Provider {
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set when archive.provider is local")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set when archive.provider is gcs")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown archive.provider: %s", c.Archive.Provider)
	}
	if c.Events.Topic != "" && c.Events.ProjectID == "" {
		return fmt.Errorf("events.project_id must be set when events.topic is set")
	}
	return nil
}

// SourceSpec converts the loaded source section into the domain type.
func (c Config) SourceSpec() intel.SourceConfig {
	return intel.SourceConfig{
		Name:        c.Source.Name,
		ListingURL:  c.Source.ListingURL,
		MaxArticles: c.Source.MaxArticles,
		Timeout:     time.Duration(c.Source.TimeoutSeconds) * time.Second,
	}
}
