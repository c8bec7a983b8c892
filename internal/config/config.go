package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ErrInvalidConfig is wrapped by every validation failure returned from Load.
var ErrInvalidConfig = errors.New("invalid config")

const EnvProduction = "production"

// Config holds all configuration for the application.
type Config struct {
	Port        string `koanf:"port"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`

	// MockAI disables the model call and returns synthetic assessments.
	MockAI        bool          `koanf:"mock_ai"`
	GoogleAPIKey  string        `koanf:"google_api_key"`
	GeminiModel   string        `koanf:"gemini_model"`
	GeminiBaseURL string        `koanf:"gemini_base_url"`
	ModelTimeout  time.Duration `koanf:"model_timeout"`

	ProbeTimeout     time.Duration `koanf:"probe_timeout"`
	EventsCacheTTL   time.Duration `koanf:"events_cache_ttl"`
	EventsRateLimit  int           `koanf:"events_rate_limit"`
	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
	CORSOrigins      []string      `koanf:"cors_origins"`
}

// Defaults returns the configuration used when nothing overrides a field.
func Defaults() *Config {
	return &Config{
		Port:             "3000",
		Environment:      "development",
		LogLevel:         "info",
		GeminiModel:      "gemini-1.5-flash",
		GeminiBaseURL:    "https://generativelanguage.googleapis.com",
		ModelTimeout:     15 * time.Second,
		ProbeTimeout:     2 * time.Second,
		EventsCacheTTL:   30 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
	}
}

// knownKeys are the environment variables Load reads, lower-cased.
var knownKeys = map[string]bool{
	"port": true, "environment": true, "log_level": true,
	"database_url": true, "redis_url": true,
	"mock_ai": true, "google_api_key": true, "gemini_model": true,
	"gemini_base_url": true, "model_timeout": true, "probe_timeout": true,
	"events_cache_ttl": true, "events_rate_limit": true,
	"breaker_threshold": true, "breaker_cooldown": true, "cors_origins": true,
	"node_env": true,
}

// Load builds a Config by layering defaults, an optional YAML file named by
// CONFIG_FILE, and environment variables (highest precedence).
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !knownKeys[key] {
			return ""
		}
		return key
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	// NODE_ENV is still honoured for deployments carried over from the Node service.
	if !k.Exists("environment") && k.String("node_env") != "" {
		cfg.Environment = k.String("node_env")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList expands comma-separated entries, as env vars deliver the whole
// list as one string, and drops blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL is required", ErrInvalidConfig)
	}
	if c.RedisURL == "" {
		return fmt.Errorf("%w: REDIS_URL is required", ErrInvalidConfig)
	}
	if !c.MockAI && c.GoogleAPIKey == "" {
		return fmt.Errorf("%w: GOOGLE_API_KEY is required unless MOCK_AI is enabled", ErrInvalidConfig)
	}
	if c.ModelTimeout <= 0 {
		return fmt.Errorf("%w: MODEL_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("%w: PROBE_TIMEOUT must be positive", ErrInvalidConfig)
	}
	if c.EventsRateLimit < 0 || c.BreakerThreshold < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

// IsProduction reports whether internal error detail must be hidden from clients.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}
