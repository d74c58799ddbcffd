package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// chdirWithConfig writes yamlContent as config.yaml in a temp directory and
// makes it the working directory for the rest of the test.
func chdirWithConfig(t *testing.T, yamlContent string) {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})
}

const minimalConfigYAML = `
port: "3443"
env: "test"
database:
  host: "localhost"
`

func TestLoad_EnvOverridesYAML(t *testing.T) {
	chdirWithConfig(t, `
port: "3443"
env: "test"
database:
  host: "db.example.com"
  user: "coachuser"
`)

	os.Unsetenv("PGHOST")
	os.Unsetenv("BASE_URL")

	t.Setenv("PORT", "4443")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "4443" {
		t.Errorf("expected Port=4443 (from env), got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("expected Env=production (from env), got %s", cfg.Env)
	}
	if cfg.Version != "test-version" {
		t.Errorf("expected Version=test-version, got %s", cfg.Version)
	}

	// BaseURL auto-derives from the effective port.
	if cfg.BaseURL != "http://localhost:4443" {
		t.Errorf("expected BaseURL=http://localhost:4443 (auto-derived), got %s", cfg.BaseURL)
	}

	// YAML values survive where no env var is set.
	if cfg.Database.Host != "db.example.com" {
		t.Errorf("expected Database.Host=db.example.com (from yaml), got %s", cfg.Database.Host)
	}
	if cfg.Database.User != "coachuser" {
		t.Errorf("expected Database.User=coachuser (from yaml), got %s", cfg.Database.User)
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdirWithConfig(t, minimalConfigYAML)

	os.Unsetenv("BASE_URL")
	os.Unsetenv("AI_PROVIDER")
	os.Unsetenv("AI_BASE_URL")
	os.Unsetenv("AI_MODEL")
	os.Unsetenv("AI_FALLBACK_MODEL")
	os.Unsetenv("PGMAX_CONNECTIONS")
	os.Unsetenv("PGCONN_MAX_LIFETIME_MINUTES")
	os.Unsetenv("PGCONN_MAX_IDLE_MINUTES")

	cfg, err := Load("test-version")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AI.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.AI.Provider)
	}
	// An empty base URL defers to the selected provider's default endpoint.
	if cfg.AI.BaseURL != "" {
		t.Errorf("expected empty default BaseURL, got %q", cfg.AI.BaseURL)
	}
	if cfg.AI.FallbackMaxTokens != 512 {
		t.Errorf("expected FallbackMaxTokens=512 (default), got %d", cfg.AI.FallbackMaxTokens)
	}
	if cfg.Database.MaxConnections != 25 {
		t.Errorf("expected MaxConnections=25 (default), got %d", cfg.Database.MaxConnections)
	}
	if cfg.Database.ConnMaxLifetimeMin != 60 {
		t.Errorf("expected ConnMaxLifetimeMin=60 (default), got %d", cfg.Database.ConnMaxLifetimeMin)
	}
	if cfg.Database.ConnMaxIdleMin != 30 {
		t.Errorf("expected ConnMaxIdleMin=30 (default), got %d", cfg.Database.ConnMaxIdleMin)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	originalDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() {
		os.Chdir(originalDir)
	})

	_, err = Load("test-version")
	if err == nil {
		t.Error("expected error when config.yaml is missing")
	}
}

func TestLoad_UnknownAIProviderRejected(t *testing.T) {
	chdirWithConfig(t, minimalConfigYAML)

	t.Setenv("AI_PROVIDER", "bedrock")

	_, err := Load("test-version")
	if err == nil {
		t.Fatal("expected error for unknown AI provider, got nil")
	}
	if !strings.Contains(err.Error(), "bedrock") {
		t.Errorf("expected error to name the provider, got: %v", err)
	}
}

func TestAIConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AIConfig
		wantErr string
	}{
		{
			name: "valid openai",
			cfg: AIConfig{
				Provider:          ProviderOpenAI,
				Model:             "gpt-4o",
				FallbackModel:     "gpt-4o-mini",
				MaxTokens:         1024,
				FallbackMaxTokens: 512,
			},
		},
		{
			name: "valid anthropic without base url",
			cfg: AIConfig{
				Provider:          ProviderAnthropic,
				Model:             "claude-sonnet-4-20250514",
				FallbackModel:     "claude-3-5-haiku-20241022",
				MaxTokens:         1024,
				FallbackMaxTokens: 512,
			},
		},
		{
			name:    "unknown provider",
			cfg:     AIConfig{Provider: "gemini", Model: "m", FallbackModel: "m"},
			wantErr: "unknown provider",
		},
		{
			name:    "missing model",
			cfg:     AIConfig{Provider: ProviderOpenAI, FallbackModel: "m"},
			wantErr: "model is required",
		},
		{
			name:    "missing fallback model",
			cfg:     AIConfig{Provider: ProviderOpenAI, Model: "m"},
			wantErr: "fallback_model is required",
		},
		{
			name: "fallback budget above primary budget",
			cfg: AIConfig{
				Provider:          ProviderOpenAI,
				Model:             "gpt-4o",
				FallbackModel:     "gpt-4o-mini",
				MaxTokens:         512,
				FallbackMaxTokens: 1024,
			},
			wantErr: "must not exceed max_tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate() failed: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseJWKSEndpoints(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{name: "empty", value: "", want: nil},
		{name: "single", value: "https://auth.example.com/jwks", want: []string{"https://auth.example.com/jwks"}},
		{
			name:  "comma list with whitespace",
			value: " https://a.example.com/jwks , https://b.example.com/jwks ,",
			want:  []string{"https://a.example.com/jwks", "https://b.example.com/jwks"},
		},
		{name: "only separators", value: " , ,", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseJWKSEndpoints(tt.value)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseJWKSEndpoints(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "coach",
		Password: "s3cret",
		Database: "prepstack_engine",
		SSLMode:  "require",
	}

	got := cfg.ConnectionString()
	want := "host=db.internal port=5433 user=coach password=s3cret dbname=prepstack_engine sslmode=require"
	if got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

func TestRedisConfig(t *testing.T) {
	cfg := RedisConfig{Host: "cache.internal", Port: 6380}
	if got := cfg.Addr(); got != "cache.internal:6380" {
		t.Errorf("Addr() = %q, want cache.internal:6380", got)
	}
	if !cfg.IsConfigured() {
		t.Error("expected IsConfigured()=true with a host set")
	}

	empty := RedisConfig{Port: 6379}
	if empty.IsConfigured() {
		t.Error("expected IsConfigured()=false with no host")
	}
}
