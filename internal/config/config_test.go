package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"
log_level = "debug"

[server]
port = 9001
api_key = "sekrit"

[pipeline]
result_ttl = "2m"

[chains]
[chains.rpc_overrides]
"1" = "https://eth.example.com"
solana = "https://sol.example.com"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Server.APIKey)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.ResultTTL.Duration)
	assert.Equal(t, "https://eth.example.com", cfg.Chains.RPCOverrides["1"])
	assert.Equal(t, "https://sol.example.com", cfg.Chains.RPCOverrides["solana"])

	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Pipeline.AggregateTTL.Duration)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("TRUSTSCOPE_SERVER_PORT", "7777")
	t.Setenv("TRUSTSCOPE_REDIS_ENABLED", "true")
	t.Setenv("TRUSTSCOPE_REDIS_ADDR", "redis:6379")
	t.Setenv("TRUSTSCOPE_AI_ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("TRUSTSCOPE_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TRUSTSCOPE_PIPELINE_RESULT_TTL", "90s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "sk-test", cfg.AI.AnthropicAPIKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.ResultTTL.Duration)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Server.Port = 0
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		`unknown mode "bogus"`,
		`unknown log_level "loud"`,
		"server: port must be 1-65535",
		"redis: addr must not be empty",
		"notify: telegram_chat_id is required",
	} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %q", want, msg)
	}
}

func TestValidatePostgresPoolBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Enabled = true
	cfg.Postgres.PoolMinConns = 20
	cfg.Postgres.PoolMaxConns = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool_min_conns must not exceed pool_max_conns")
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
