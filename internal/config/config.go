// Package config provides application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	FrontendURL     string        `env:"FRONTEND_URL"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	DBPath          string        `env:"DB_PATH" envDefault:"./data/knowledge.db"`
	CatalogPath     string        `env:"CATALOG_PATH"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	SessionTTL      time.Duration `env:"SESSION_TTL" envDefault:"60m"`
	SweepInterval   time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`
	GRPCHealthPort  string        `env:"GRPC_HEALTH_PORT"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes    int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	Completion      CompletionConfig
	Intent          IntentConfig
	Ingest          IngestConfig
	RateLimit       RateLimitConfig
	ConversationLog ConversationLogConfig
}

// CompletionConfig selects and tunes the completion provider.
type CompletionConfig struct {
	Provider         string        `env:"COMPLETION_PROVIDER" envDefault:"gemini"`
	Model            string        `env:"COMPLETION_MODEL" envDefault:"gemini-1.5-pro"`
	GoogleAPIKey     string        `env:"GOOGLE_API_KEY"`
	OpenRouterAPIKey string        `env:"OPENROUTER_API_KEY"`
	BaseURL          string        `env:"COMPLETION_BASE_URL"`
	Temperature      float64       `env:"COMPLETION_TEMPERATURE" envDefault:"0.5"`
	Timeout          time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"30s"`
	BreakerFailures  uint32        `env:"COMPLETION_BREAKER_FAILURES" envDefault:"3"`
	BreakerCooldown  time.Duration `env:"COMPLETION_BREAKER_COOLDOWN" envDefault:"30s"`
	ContextChunks    int           `env:"COMPLETION_CONTEXT_CHUNKS" envDefault:"4"`
}

// IntentConfig controls the enrollment intent classifier.
type IntentConfig struct {
	WeakTier bool `env:"INTENT_WEAK_TIER" envDefault:"false"`
}

// IngestConfig controls website ingestion at startup.
type IngestConfig struct {
	Enabled      bool          `env:"INGEST_ENABLED" envDefault:"true"`
	URLs         []string      `env:"INGEST_URLS" envSeparator:"," envDefault:"https://datacrumbs.org"`
	Timeout      time.Duration `env:"INGEST_TIMEOUT" envDefault:"15s"`
	ChunkSize    int           `env:"INGEST_CHUNK_SIZE" envDefault:"1000"`
	ChunkOverlap int           `env:"INGEST_CHUNK_OVERLAP" envDefault:"200"`
}

// RateLimitConfig holds the per-visitor token bucket settings.
type RateLimitConfig struct {
	RequestsPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	Burst             int           `env:"RATE_LIMIT_BURST" envDefault:"10"`
	IdleEviction      time.Duration `env:"RATE_LIMIT_IDLE_EVICTION" envDefault:"10m"`
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool   `env:"CONVERSATION_LOG_ENABLED" envDefault:"false"`
	Dir           string `env:"CONVERSATION_LOG_DIR" envDefault:"./data/logs/conversations"`
	GlobalEnabled bool   `env:"CONVERSATION_LOG_GLOBAL_ENABLED" envDefault:"false"`
	GlobalPath    string `env:"CONVERSATION_LOG_GLOBAL_PATH" envDefault:"./data/logs/conversations/all.ndjson"`
	QueueSize     int    `env:"CONVERSATION_LOG_QUEUE_SIZE" envDefault:"1000"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.Completion.Provider = strings.ToLower(strings.TrimSpace(cfg.Completion.Provider))
	cfg.Completion.GoogleAPIKey = strings.TrimSpace(cfg.Completion.GoogleAPIKey)
	cfg.Completion.OpenRouterAPIKey = strings.TrimSpace(cfg.Completion.OpenRouterAPIKey)
	cfg.Ingest.URLs = compact(cfg.Ingest.URLs)
	cfg.AllowedOrigins = compact(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.Completion.Provider {
	case "gemini", "openai", "none":
	default:
		return fmt.Errorf("COMPLETION_PROVIDER must be gemini, openai or none, got %q", c.Completion.Provider)
	}
	if c.Completion.Timeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be > 0")
	}
	if c.Ingest.ChunkSize <= 0 {
		return fmt.Errorf("INGEST_CHUNK_SIZE must be > 0")
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("INGEST_CHUNK_OVERLAP must be >= 0 and smaller than INGEST_CHUNK_SIZE")
	}
	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalEnabled && c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// CompletionEnabled reports whether the selected provider has its API key.
func (c *Config) CompletionEnabled() bool {
	switch c.Completion.Provider {
	case "gemini":
		return c.Completion.GoogleAPIKey != ""
	case "openai":
		return c.Completion.OpenRouterAPIKey != ""
	}
	return false
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
