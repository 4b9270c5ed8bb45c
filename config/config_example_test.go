package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ExampleFile(t *testing.T) {
	for _, key := range []string{"PRIMARY_LLM", "OPENAI_MODEL", "REDIS_URL", "GEMINI_API_KEY", "PORT", "STORAGE_TYPE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("config.example.yaml")
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Server.ChatTimeout)
	assert.Equal(t, "deepseek", cfg.Gateway.Primary)
	assert.Equal(t, 5, cfg.Gateway.BatchSize)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Providers["openai"].Model)
	assert.Equal(t, "${GEMINI_API_KEY}", cfg.Providers["gemini"].APIKey)
	assert.Equal(t, "redis://localhost:6379/0", cfg.History.Redis.URL)
	assert.Equal(t, 24*time.Hour, cfg.History.TTL)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 3, cfg.Resilience.Retry.MaxRetries)
}
