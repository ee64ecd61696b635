package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENGINE_PORT", "ENVIRONMENT", "LOG_LEVEL",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"TERRAFORM_ADAPTER_URL", "KUBERNETES_ADAPTER_URL", "HELM_ADAPTER_URL",
		"FS_ADAPTER_URL", "GENERATOR_ADAPTER_URL", "STATE_ADAPTER_URL",
		"MAX_TOKENS_PER_TASK", "ROLLBACK_BACKUP_DIR",
		"EXECUTOR_MAX_RETRIES", "EXECUTOR_RETRY_BASE_MS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_AppliesDefaultsWhenEnvUnset(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "http://localhost:9001", cfg.TerraformURL)
	assert.Equal(t, 4096, cfg.MaxTokensPerTask)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBaseInterval)
}

func TestLoad_HonorsEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("TERRAFORM_ADAPTER_URL", "http://terraform.internal:9001")
	t.Setenv("EXECUTOR_MAX_RETRIES", "5")
	t.Setenv("EXECUTOR_RETRY_BASE_MS", "250")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, "http://terraform.internal:9001", cfg.TerraformURL)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBaseInterval)
}

func TestLoad_IgnoresUnparseableIntegers(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}
