package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for prepstack-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional spec cache)
	Redis RedisConfig `yaml:"redis"`

	// AI provider configuration for the coaching LLM
	AI AIConfig `yaml:"ai"`

	// SpecSeedDir is a directory of YAML design-spec files loaded at startup.
	// Empty disables seeding.
	SpecSeedDir string `yaml:"spec_seed_dir" env:"SPEC_SEED_DIR" env-default:""`

	// MigrationsPath is the directory containing SQL migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of JWKS URLs.
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed list from JWKSEndpointsStr (not from config file).
	JWKSEndpoints []string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"prepstack"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"prepstack_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	// ConnMaxLifetimeMin and ConnMaxIdleMin bound pooled connection reuse,
	// in minutes. Zero keeps the driver defaults.
	ConnMaxLifetimeMin int `yaml:"conn_max_lifetime_minutes" env:"PGCONN_MAX_LIFETIME_MINUTES" env-default:"60"`
	ConnMaxIdleMin     int `yaml:"conn_max_idle_minutes" env:"PGCONN_MAX_IDLE_MINUTES" env-default:"30"`
}

// RedisConfig holds Redis configuration for the design-spec cache.
// An empty host disables Redis entirely.
type RedisConfig struct {
	Host            string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port            int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password        string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB              int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	SpecCacheTTLMin int    `yaml:"spec_cache_ttl_minutes" env:"REDIS_SPEC_CACHE_TTL_MINUTES" env-default:"30"`
}

// AIConfig holds LLM provider configuration.
// Provider selects the API family; BaseURL allows OpenAI-compatible local
// endpoints (vLLM, Ollama, etc.). Leave BaseURL empty to use the selected
// provider's default endpoint.
type AIConfig struct {
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	BaseURL  string `yaml:"base_url" env:"AI_BASE_URL" env-default:""`
	APIKey   string `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML

	// Model is the primary coaching model; FallbackModel is the cheaper model
	// used for the single bounded retry after a truncated or empty completion.
	Model         string `yaml:"model" env:"AI_MODEL" env-default:"gpt-4o"`
	FallbackModel string `yaml:"fallback_model" env:"AI_FALLBACK_MODEL" env-default:"gpt-4o-mini"`

	// MaxTokens is the completion budget for primary calls;
	// FallbackMaxTokens is the reduced budget used on the retry.
	MaxTokens         int     `yaml:"max_tokens" env:"AI_MAX_TOKENS" env-default:"1024"`
	FallbackMaxTokens int     `yaml:"fallback_max_tokens" env:"AI_FALLBACK_MAX_TOKENS" env-default:"512"`
	Temperature       float64 `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.7"`
}

// Supported AI providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	if err := cfg.AI.validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set.
	// Use HTTPS scheme if TLS is configured.
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func (a *AIConfig) validate() error {
	switch a.Provider {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q (supported: %s, %s)", a.Provider, ProviderOpenAI, ProviderAnthropic)
	}
	if a.Model == "" {
		return fmt.Errorf("model is required")
	}
	if a.FallbackModel == "" {
		return fmt.Errorf("fallback_model is required")
	}
	if a.FallbackMaxTokens > a.MaxTokens {
		return fmt.Errorf("fallback_max_tokens (%d) must not exceed max_tokens (%d)", a.FallbackMaxTokens, a.MaxTokens)
	}
	return nil
}

// parseJWKSEndpoints parses the comma-separated JWKS endpoint list.
func parseJWKSEndpoints(value string) []string {
	if value == "" {
		return nil
	}

	var endpoints []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			endpoints = append(endpoints, trimmed)
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Addr returns the host:port address for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsConfigured returns true if Redis caching is enabled.
func (c *RedisConfig) IsConfigured() bool {
	return c.Host != ""
}
