// Package config provides unified configuration for the auskunft service.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (LLM_BACKEND, OLLAMA_*, WATSONX_*, AUSKUNFT_*)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
//
// The resulting Config is read once at startup and never mutated
// afterwards. Switching the generation backend requires a restart.
package config

import (
	"strings"
	"time"
)

// Config holds all configuration for the auskunft service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	LLM           LLMConfig           `yaml:"llm"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s (streamed answers)
}

// LLMConfig selects the generation backend and carries per-backend settings.
// Exactly one backend is active per process.
type LLMConfig struct {
	Backend string        `yaml:"backend"` // "ollama" or "watsonx", default: "ollama"
	Ollama  OllamaConfig  `yaml:"ollama"`
	Watsonx WatsonxConfig `yaml:"watsonx"`
}

// OllamaConfig holds settings for the local Ollama backend.
type OllamaConfig struct {
	Host            string        `yaml:"host"`             // default: http://localhost:11434
	GenerationModel string        `yaml:"generation_model"` // default: llama3.1:8b
	EnrichmentModel string        `yaml:"enrichment_model"` // defaults to generation_model
	EmbeddingModel  string        `yaml:"embedding_model"`  // default: nomic-embed-text
	Timeout         time.Duration `yaml:"timeout"`          // per-call, default: 120s
}

// WatsonxConfig holds settings for the IBM watsonx.ai backend.
type WatsonxConfig struct {
	APIKey          string        `yaml:"api_key"`
	APIKeyFile      string        `yaml:"api_key_file"` // _file variant for api_key
	ProjectID       string        `yaml:"project_id"`
	URL             string        `yaml:"url"`              // regional endpoint, default: us-south
	GenerationModel string        `yaml:"generation_model"` // default: ibm/granite-13b-chat-v2
	EnrichmentModel string        `yaml:"enrichment_model"` // defaults to generation_model
	EmbeddingModel  string        `yaml:"embedding_model"`  // default: ibm/slate-125m-english-rtrvr
	Timeout         time.Duration `yaml:"timeout"`          // per-call, default: 120s
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Type      string          `yaml:"type"`     // "memory", "postgres", or "sqlite", default: "memory"
	MaxSize   int             `yaml:"max_size"` // for memory store, default: 10000
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Retention RetentionConfig `yaml:"retention"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`  // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"` // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: auskunft.db
}

// RetentionConfig controls the background purge of soft-deleted records.
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled"`  // default: false
	Schedule string        `yaml:"schedule"` // cron expression, default: "@hourly"
	MaxAge   time.Duration `yaml:"max_age"`  // default: 720h
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	TenantID    string `yaml:"tenant_id"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig holds JWT bearer token validation settings for type=jwt.
type JWTConfig struct {
	JWKSURL  string        `yaml:"jwks_url"`
	Issuer   string        `yaml:"issuer"`   // optional, validated when set
	Audience string        `yaml:"audience"` // optional, validated when set
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig holds per-tier request rate limits.
type RateLimitConfig struct {
	Enabled    bool           `yaml:"enabled"`
	DefaultRPM int            `yaml:"default_rpm"` // default: 60 when enabled
	Tiers      map[string]int `yaml:"tiers"`       // tier name -> requests per minute
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig controls the log level and category-based debug output.
// The AUSKUNFT_LOG_LEVEL and AUSKUNFT_DEBUG environment variables
// override these values.
type LoggingConfig struct {
	Level string `yaml:"level"` // ERROR, WARN, INFO, DEBUG, TRACE (default: INFO)
	Debug string `yaml:"debug"` // comma-separated debug categories
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		LLM: LLMConfig{
			Backend: "ollama",
			Ollama: OllamaConfig{
				Host:            "http://localhost:11434",
				GenerationModel: "llama3.1:8b",
				EmbeddingModel:  "nomic-embed-text",
				Timeout:         120 * time.Second,
			},
			Watsonx: WatsonxConfig{
				URL:             "https://us-south.ml.cloud.ibm.com",
				GenerationModel: "ibm/granite-13b-chat-v2",
				EmbeddingModel:  "ibm/slate-125m-english-rtrvr",
				Timeout:         120 * time.Second,
			},
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
			SQLite: SQLiteConfig{
				Path: "auskunft.db",
			},
			Retention: RetentionConfig{
				Schedule: "@hourly",
				MaxAge:   720 * time.Hour,
			},
		},
		Auth: AuthConfig{
			Type: "none",
			RateLimit: RateLimitConfig{
				DefaultRPM: 60,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			Logging: LoggingConfig{
				Level: "INFO",
			},
		},
	}
}

// SelectedBackend returns the normalized backend name, defaulting to "ollama"
// when unset. Matching is case-insensitive and ignores surrounding whitespace.
func (l LLMConfig) SelectedBackend() string {
	b := strings.ToLower(strings.TrimSpace(l.Backend))
	if b == "" {
		return "ollama"
	}
	return b
}

// GenerationModel returns the generation model of the selected backend.
func (l LLMConfig) GenerationModel() string {
	if l.SelectedBackend() == "watsonx" {
		return l.Watsonx.GenerationModel
	}
	return l.Ollama.GenerationModel
}

// EnrichmentModel returns the enrichment model of the selected backend,
// falling back to the generation model when not configured.
func (l LLMConfig) EnrichmentModel() string {
	m := l.Ollama.EnrichmentModel
	if l.SelectedBackend() == "watsonx" {
		m = l.Watsonx.EnrichmentModel
	}
	if m == "" {
		return l.GenerationModel()
	}
	return m
}

// EmbeddingModel returns the embedding model of the selected backend.
func (l LLMConfig) EmbeddingModel() string {
	if l.SelectedBackend() == "watsonx" {
		return l.Watsonx.EmbeddingModel
	}
	return l.Ollama.EmbeddingModel
}
