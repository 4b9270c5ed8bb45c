package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test inside an empty directory so no stray config.yaml
// or .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "deepseek", cfg.Gateway.Primary)
	assert.Equal(t, []string{"gemini", "deepseek", "openai"}, cfg.Gateway.ProviderOrder)
	assert.Equal(t, 500, cfg.Gateway.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Gateway.Temperature, 1e-9)
	assert.Equal(t, 5, cfg.Gateway.BatchSize)
	assert.Equal(t, ".!?", cfg.Gateway.Terminators)
	assert.True(t, cfg.Gateway.EmptyFinal)
	assert.Equal(t, 100, cfg.Server.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.Server.RateLimit.Window)
	assert.Equal(t, "memory", cfg.History.Backend)
	assert.False(t, cfg.Audit.Enabled)
	assert.Empty(t, cfg.Providers)
}

func TestLoad_YAMLWithPlaceholders(t *testing.T) {
	dir := chdirTemp(t)
	content := `
server:
  port: "${TEST_PORT_DEFAULTS:-9999}"
  chat_timeout: 45s
gateway:
  primary: gemini
  batch_size: ${TEST_BATCH:-3}
providers:
  gemini:
    type: gemini
    api_key: "${TEST_GEMINI_KEY:-default-key}"
    model: gemini-1.5-flash
`
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "9999", cfg.Server.Port)
		assert.Equal(t, 45*time.Second, cfg.Server.ChatTimeout)
		assert.Equal(t, "gemini", cfg.Gateway.Primary)
		assert.Equal(t, 3, cfg.Gateway.BatchSize)
		assert.Equal(t, "default-key", cfg.Providers["gemini"].APIKey)
		assert.Equal(t, "gemini-1.5-flash", cfg.Providers["gemini"].Model)
		assert.Equal(t, 500, cfg.Gateway.MaxTokens, "absent keys keep defaults")
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("TEST_PORT_DEFAULTS", "1111")
		t.Setenv("TEST_GEMINI_KEY", "real-key")
		t.Setenv("TEST_BATCH", "7")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "1111", cfg.Server.Port)
		assert.Equal(t, 7, cfg.Gateway.BatchSize)
		assert.Equal(t, "real-key", cfg.Providers["gemini"].APIKey)
	})
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	chdirTemp(t)
	_, err := Load("missing.yaml")
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PRIMARY_LLM=OpenAI\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("PRIMARY_LLM") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Gateway.Primary)
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:    "PORT override",
			envVars: map[string]string{"PORT": "3000"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "3000", cfg.Server.Port)
			},
		},
		{
			name:    "storage overrides",
			envVars: map[string]string{"STORAGE_TYPE": "postgresql", "POSTGRES_URL": "postgres://localhost/test", "POSTGRES_MAX_CONNS": "20"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgresql", cfg.Storage.Type)
				assert.Equal(t, "postgres://localhost/test", cfg.Storage.PostgreSQL.URL)
				assert.Equal(t, 20, cfg.Storage.PostgreSQL.MaxConns)
			},
		},
		{
			name:    "bool overrides",
			envVars: map[string]string{"METRICS_ENABLED": "true", "AUDIT_ENABLED": "1", "RATE_LIMIT_ENABLED": "false"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Metrics.Enabled)
				assert.True(t, cfg.Audit.Enabled)
				assert.False(t, cfg.Server.RateLimit.Enabled)
			},
		},
		{
			name:    "duration overrides",
			envVars: map[string]string{"CHAT_TIMEOUT": "30", "RATE_LIMIT_WINDOW": "1m"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 30*time.Second, cfg.Server.ChatTimeout)
				assert.Equal(t, time.Minute, cfg.Server.RateLimit.Window)
			},
		},
		{
			name:    "allowed origins list",
			envVars: map[string]string{"ALLOWED_ORIGINS": "https://a.example, https://b.example,"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
			},
		},
		{
			name:    "history backend",
			envVars: map[string]string{"HISTORY_BACKEND": "redis", "REDIS_URL": "redis://localhost:6379/0"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "redis", cfg.History.Backend)
				assert.Equal(t, "redis://localhost:6379/0", cfg.History.Redis.URL)
			},
		},
		{
			name:    "no env vars set preserves defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "5000", cfg.Server.Port)
				assert.Equal(t, "sqlite", cfg.Storage.Type)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg := buildDefaultConfig()
			require.NoError(t, applyEnvOverrides(cfg))
			tt.check(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "lots")
	t.Setenv("METRICS_ENABLED", "maybe")

	err := applyEnvOverrides(buildDefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_REQUESTS")
	assert.Contains(t, err.Error(), "METRICS_ENABLED")
}

func TestExpandString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{"empty string", "", nil, ""},
		{"no placeholders", "simple-string", nil, "simple-string"},
		{"simple variable", "${CB_API_KEY}", map[string]string{"CB_API_KEY": "sk-12345"}, "sk-12345"},
		{"variable in middle", "prefix-${CB_API_KEY}-suffix", map[string]string{"CB_API_KEY": "sk-1"}, "prefix-sk-1-suffix"},
		{"multiple variables", "${CB_SCHEME}://${CB_HOST}", map[string]string{"CB_SCHEME": "https", "CB_HOST": "api.example.com"}, "https://api.example.com"},
		{"default used when missing", "${CB_API_KEY:-default-key}", nil, "default-key"},
		{"default used when empty", "${CB_API_KEY:-default-key}", map[string]string{"CB_API_KEY": ""}, "default-key"},
		{"unresolved kept", "${CB_MISSING}", nil, "${CB_MISSING}"},
		{"default with colon", "${CB_URL:-http://localhost:8080}", nil, "http://localhost:8080"},
		{"empty default", "${CB_OPTIONAL:-}", nil, ""},
		{"unterminated", "${CB_OPEN", nil, "${CB_OPEN"},
		{"mixed", "${CB_A}-${CB_B}-${CB_C:-c}", map[string]string{"CB_A": "a"}, "a-${CB_B}-c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expected, expandString(tt.input))
		})
	}
}
