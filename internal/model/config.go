package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all engine configuration
type Config struct {
	Embedding   EmbeddingConfig   `mapstructure:"embedding" yaml:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store" yaml:"vector_store"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Retry       RetryConfig       `mapstructure:"retry" yaml:"retry"`
	Breaker     BreakerConfig     `mapstructure:"breaker" yaml:"breaker"`
	Scoring     ScoringConfig     `mapstructure:"scoring" yaml:"scoring"`
	History     HistoryConfig     `mapstructure:"history" yaml:"history"`
	Tracing     TracingConfig     `mapstructure:"tracing" yaml:"tracing"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
}

// EmbeddingConfig selects and tunes the embedding provider
type EmbeddingConfig struct {
	Provider          string        `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=openai ollama hash none"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Dimensions        int           `mapstructure:"dimensions" yaml:"dimensions" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxChars          int           `mapstructure:"max_chars" yaml:"max_chars" validate:"gte=0"` // Input truncation before embedding
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
	HTTPProxy         string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy        string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
}

// VectorStoreConfig selects the vector store backend
type VectorStoreConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend" validate:"oneof=memory qdrant sqlite"`
	Host       string `mapstructure:"host" yaml:"host"`
	Port       int    `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Collection string `mapstructure:"collection" yaml:"collection" validate:"required"`
	Path       string `mapstructure:"path" yaml:"path"` // SQLite database file
}

// CacheConfig tunes the embedding cache
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" yaml:"memory_ttl"`
	DiskDir   string        `mapstructure:"disk_dir" yaml:"disk_dir"` // Empty disables the disk layer
	DiskTTL   time.Duration `mapstructure:"disk_ttl" yaml:"disk_ttl"`
}

// ConcurrencyConfig bounds in-flight work
type ConcurrencyConfig struct {
	ChunkWorkers    int `mapstructure:"chunk_workers" yaml:"chunk_workers" validate:"gte=1,lte=64"`
	DocumentWorkers int `mapstructure:"document_workers" yaml:"document_workers" validate:"gte=1,lte=64"`
}

// RetryConfig bounds retry/backoff for provider and store calls
type RetryConfig struct {
	MaxTries        uint          `mapstructure:"max_tries" yaml:"max_tries" validate:"gte=1"`
	InitialInterval time.Duration `mapstructure:"initial_interval" yaml:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
	MaxElapsed      time.Duration `mapstructure:"max_elapsed" yaml:"max_elapsed"`
}

// BreakerConfig tunes the circuit breakers guarding external providers
type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold" yaml:"failure_threshold" validate:"gte=1"`
	Window           time.Duration `mapstructure:"window" yaml:"window"`     // Closed-state counting window
	Cooldown         time.Duration `mapstructure:"cooldown" yaml:"cooldown"` // Open -> half-open delay
	HalfOpenProbes   uint32        `mapstructure:"half_open_probes" yaml:"half_open_probes" validate:"gte=1"`
}

// ScoringConfig tunes the confidence calculation
type ScoringConfig struct {
	SimilarityCeiling float64  `mapstructure:"similarity_ceiling" yaml:"similarity_ceiling" validate:"gt=1"`
	StrategicKeywords []string `mapstructure:"strategic_keywords" yaml:"strategic_keywords"`
	NeighborCount     int      `mapstructure:"neighbor_count" yaml:"neighbor_count" validate:"gte=0"`
}

// HistoryConfig sizes the ingestion report ring
type HistoryConfig struct {
	Size int `mapstructure:"size" yaml:"size" validate:"gte=1"`
}

// TracingConfig configures OpenTelemetry export
type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"` // Empty disables export
	ServiceName  string  `mapstructure:"service_name" yaml:"service_name"`
	SampleRate   float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// LogConfig configures the slog logger
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultStrategicKeywords are the path tokens treated as strategically relevant
var DefaultStrategicKeywords = []string{
	"decision", "decisions", "insight", "insights", "strategy", "strategic",
	"architecture", "breakthrough", "lesson", "lessons", "milestone",
	"roadmap", "plan", "retrospective", "analysis", "proposal",
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Embedding: EmbeddingConfig{
			Provider:          "ollama",
			Model:             "nomic-embed-text",
			BaseURL:           "http://localhost:11434",
			Dimensions:        768,
			Timeout:           30 * time.Second,
			MaxChars:          8000,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		VectorStore: VectorStoreConfig{
			Backend:    "memory",
			Host:       "localhost",
			Port:       6334,
			Collection: "knowledge_consolidator",
			Path:       "consolidator.db",
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			ChunkWorkers:    4,
			DocumentWorkers: 2,
		},
		Retry: RetryConfig{
			MaxTries:        3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			MaxElapsed:      10 * time.Second,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			Window:           time.Minute,
			Cooldown:         30 * time.Second,
			HalfOpenProbes:   1,
		},
		Scoring: ScoringConfig{
			SimilarityCeiling: 30,
			StrategicKeywords: append([]string(nil), DefaultStrategicKeywords...),
			NeighborCount:     5,
		},
		History: HistoryConfig{Size: 20},
		Tracing: TracingConfig{
			ServiceName: "consolidator",
			SampleRate:  1.0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:            ":8088",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

var configValidator = validator.New()

// Validate checks struct constraints and returns an error for hard violations
// plus warnings for settings that work but are probably unintended
func (c *Config) Validate() ([]string, error) {
	if err := configValidator.Struct(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var warnings []string

	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		warnings = append(warnings, "embedding provider 'openai' is configured but api_key is empty")
	}
	if c.VectorStore.Backend == "sqlite" && c.VectorStore.Path == "" {
		warnings = append(warnings, "vector_store backend 'sqlite' has no path, using an in-memory database")
	}
	if c.Concurrency.ChunkWorkers > 8 {
		warnings = append(warnings, fmt.Sprintf("concurrency.chunk_workers %d exceeds the recommended 4-8 range", c.Concurrency.ChunkWorkers))
	}
	if c.Breaker.Cooldown == 0 {
		warnings = append(warnings, "breaker.cooldown is 0, open breakers will probe immediately")
	}
	if c.Retry.MaxElapsed > 0 && c.Retry.MaxElapsed < c.Retry.InitialInterval {
		warnings = append(warnings, "retry.max_elapsed is shorter than retry.initial_interval, only one attempt will run")
	}

	return warnings, nil
}
