// Package config provides configuration management for the application.
//
// Settings are layered: built-in defaults, then an optional YAML file whose
// string values may reference ${VAR} or ${VAR:-default}, then well-known
// environment variables. A .env file in the working directory is loaded into
// the environment first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when Load is called with an empty path.
const DefaultConfigPath = "config.yaml"

// Config holds the application configuration
type Config struct {
	Server     ServerConfig                 `yaml:"server"`
	Logging    LogConfig                    `yaml:"logging"`
	Gateway    GatewayConfig                `yaml:"gateway"`
	Providers  map[string]RawProviderConfig `yaml:"providers"`
	Resilience ResilienceConfig             `yaml:"resilience"`
	History    HistoryConfig                `yaml:"history"`
	Audit      AuditConfig                  `yaml:"audit"`
	Storage    StorageConfig                `yaml:"storage"`
	Metrics    MetricsConfig                `yaml:"metrics"`
	Prompt     PromptConfig                 `yaml:"prompt"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// ChatTimeout bounds one provider call made on behalf of a request. Zero disables it.
	ChatTimeout    time.Duration   `yaml:"chat_timeout"`
	AllowedOrigins []string        `yaml:"allowed_origins"`
	BodyLimit      string          `yaml:"body_limit"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig limits requests per client IP on the /api routes.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Format is "auto", "pretty" or "json".
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// GatewayConfig holds provider selection and streaming settings.
type GatewayConfig struct {
	// Primary is the provider used when a request names none.
	Primary string `yaml:"primary"`
	// ProviderOrder fixes registration order; providers not listed follow in name order.
	ProviderOrder []string `yaml:"provider_order"`
	MaxTokens     int      `yaml:"max_tokens"`
	Temperature   float64  `yaml:"temperature"`
	// BatchSize is the number of deltas merged into one streamed chunk.
	BatchSize int `yaml:"batch_size"`
	// Terminators are single characters that flush a chunk early.
	Terminators string `yaml:"terminators"`
	// EmptyFinal emits an empty final chunk when a stream ends on a flush boundary.
	EmptyFinal bool `yaml:"empty_final"`
}

// RawProviderConfig is one provider entry as written in YAML.
type RawProviderConfig struct {
	Type    string `yaml:"type"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// RetryConfig controls retries of non-streaming provider calls.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	BackoffFactor  float64       `yaml:"backoff_factor"`
	JitterFactor   float64       `yaml:"jitter_factor"`
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int `yaml:"failure_threshold"`
	// SuccessThreshold is the number of probe successes that closes it again
	SuccessThreshold int `yaml:"success_threshold"`
	// Timeout is how long the circuit stays open before a probe is let through
	Timeout time.Duration `yaml:"timeout"`
}

// ResilienceConfig groups retry and circuit breaker settings.
type ResilienceConfig struct {
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// HistoryConfig selects where conversation history lives.
type HistoryConfig struct {
	// Backend is "memory" or "redis".
	Backend     string        `yaml:"backend"`
	MaxMessages int           `yaml:"max_messages"`
	TTL         time.Duration `yaml:"ttl"`
	Redis       RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AuditConfig controls the turn log.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	// LogBodies stores user messages and answers alongside turn metadata.
	LogBodies     bool          `yaml:"log_bodies"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	RetentionDays int           `yaml:"retention_days"`
}

// StorageConfig selects the turn log database.
type StorageConfig struct {
	// Type is "sqlite", "postgresql" or "mongodb".
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// PromptConfig points at the static catalog used to build system prompts.
type PromptConfig struct {
	CatalogPath string `yaml:"catalog_path"`
	StoreName   string `yaml:"store_name"`
}

// DefaultResilience returns the retry and circuit breaker defaults.
func DefaultResilience() ResilienceConfig {
	return ResilienceConfig{
		Retry: RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			BackoffFactor:  2.0,
			JitterFactor:   0.1,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
	}
}

func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "5000",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
			BodyLimit:      "10M",
			RateLimit: RateLimitConfig{
				Enabled:  true,
				Requests: 100,
				Window:   15 * time.Minute,
			},
		},
		Logging: LogConfig{Format: "auto", Level: "info"},
		Gateway: GatewayConfig{
			Primary:       "deepseek",
			ProviderOrder: []string{"gemini", "deepseek", "openai"},
			MaxTokens:     500,
			Temperature:   0.7,
			BatchSize:     5,
			Terminators:   ".!?",
			EmptyFinal:    true,
		},
		Providers:  map[string]RawProviderConfig{},
		Resilience: DefaultResilience(),
		History: HistoryConfig{
			Backend:     "memory",
			MaxMessages: 50,
			TTL:         24 * time.Hour,
			Redis:       RedisConfig{KeyPrefix: "chatbridge:history:"},
		},
		Audit: AuditConfig{
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
			RetentionDays: 30,
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: "data/chatbridge.db"},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: "chatbridge"},
		},
		Metrics: MetricsConfig{Endpoint: "/metrics"},
		Prompt: PromptConfig{
			CatalogPath: "data/furniture_catalog.json",
			StoreName:   "Furniture Store",
		},
	}
}

// Load builds the configuration. An empty path reads DefaultConfigPath when
// it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := buildDefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML expands environment placeholders in every scalar and decodes
// the document over cfg, so absent keys keep their defaults.
func decodeYAML(data []byte, cfg *Config) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root.Kind == 0 {
		return nil
	}
	expandNode(&root)
	return root.Decode(cfg)
}

func expandNode(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode {
		expanded := expandString(n.Value)
		if expanded != n.Value {
			// Re-resolve the tag so "${N:-5}" can land in an int field.
			n.Value = expanded
			n.Tag = ""
			n.Style &^= yaml.DoubleQuotedStyle | yaml.SingleQuotedStyle
		}
		return
	}
	for _, child := range n.Content {
		expandNode(child)
	}
}
