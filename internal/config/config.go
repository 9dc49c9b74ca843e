// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (FOUNDERCHAT_* overrides, secrets)
//  2. Config file (./config.yaml)
//  3. Default values
//
// Secrets (GROQ_API_KEY, OPENAI_API_KEY) are never stored in the struct;
// they are read from the environment at client construction and only their
// presence is checked in Validate.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates a required API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTopK indicates the retrieval depth is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidTimeout indicates a timeout value is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout")
)

// Default model identifiers. Completions run against an OpenAI-compatible
// provider endpoint (Groq by default); embeddings against the OpenAI API.
const (
	DefaultModelName     = "llama-3.1-8b-instant"
	DefaultEmbedderModel = "text-embedding-3-small"
	DefaultProviderURL   = "https://api.groq.com/openai/v1"
)

// Config stores application configuration.
type Config struct {
	// Addr is the host:port the HTTP server binds to.
	Addr string `mapstructure:"addr"`

	// FAQPath is the plain-text knowledge file ingested once at startup.
	// A missing file is logged and skipped, never fatal.
	FAQPath string `mapstructure:"faq_path"`

	// PersistPath stores the vector index on disk when set; empty keeps
	// the index in memory only.
	PersistPath string `mapstructure:"persist_path"`

	// Model configuration
	ModelName       string `mapstructure:"model_name"`
	EmbedderModel   string `mapstructure:"embedder_model"`
	ProviderBaseURL string `mapstructure:"provider_base_url"`

	// TopK is how many knowledge chunks are retrieved per query.
	TopK int `mapstructure:"top_k"`

	// IdleTimeout closes a session that sends no query for this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// StreamStallTimeout bounds the wait for the next completion token
	// within a turn. A stalled provider stream surfaces as a turn error
	// instead of hanging the session.
	StreamStallTimeout time.Duration `mapstructure:"stream_stall_timeout"`

	// HeartbeatInterval is the period of the liveness log line.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// RateBurst is the per-IP token-bucket burst for connection attempts.
	RateBurst int `mapstructure:"rate_burst"`

	// LogLevelName selects the minimum log level: debug, info, warn, error.
	// Unknown values fall back to info.
	LogLevelName string `mapstructure:"log_level"`
}

// LogLevel maps the configured level name to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch c.LogLevelName {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load loads configuration.
// Priority: environment variables > config file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("config file not found, using defaults", "config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8000")
	v.SetDefault("faq_path", "data/faq.txt")
	v.SetDefault("persist_path", "")

	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("provider_base_url", DefaultProviderURL)

	v.SetDefault("top_k", 2)
	v.SetDefault("idle_timeout", "300s")
	v.SetDefault("stream_stall_timeout", "120s")
	v.SetDefault("heartbeat_interval", "10s")
	v.SetDefault("rate_burst", 30)
	v.SetDefault("log_level", "info")
}

// bindEnvVariables binds FOUNDERCHAT_* environment overrides explicitly.
// API keys are deliberately not bound here: clients read them from the
// environment directly and Validate only checks their presence.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "FOUNDERCHAT_ADDR")
	mustBind("faq_path", "FOUNDERCHAT_FAQ_PATH")
	mustBind("persist_path", "FOUNDERCHAT_PERSIST_PATH")
	mustBind("model_name", "FOUNDERCHAT_MODEL_NAME")
	mustBind("embedder_model", "FOUNDERCHAT_EMBEDDER_MODEL")
	mustBind("provider_base_url", "FOUNDERCHAT_PROVIDER_BASE_URL")
	mustBind("log_level", "FOUNDERCHAT_LOG_LEVEL")
}

// Validate checks ranges and required secrets (fail-fast at startup).
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidModelName)
	}
	if c.TopK < 1 || c.TopK > 20 {
		return fmt.Errorf("%w: top_k must be in [1, 20], got %d", ErrInvalidTopK, c.TopK)
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: idle_timeout must be positive, got %s", ErrInvalidTimeout, c.IdleTimeout)
	}
	if c.StreamStallTimeout <= 0 {
		return fmt.Errorf("%w: stream_stall_timeout must be positive, got %s", ErrInvalidTimeout, c.StreamStallTimeout)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat_interval must be positive, got %s", ErrInvalidTimeout, c.HeartbeatInterval)
	}

	if os.Getenv("GROQ_API_KEY") == "" {
		return fmt.Errorf("%w: GROQ_API_KEY is not set", ErrMissingAPIKey)
	}
	if os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set (required for embeddings)", ErrMissingAPIKey)
	}

	return nil
}
