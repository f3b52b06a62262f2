package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRUSTSCOPE_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load. An empty path skips
// the file and uses defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRUSTSCOPE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Market ──
	setStr(&cfg.Market.CoinGeckoURL, "TRUSTSCOPE_MARKET_COINGECKO_URL")
	setStr(&cfg.Market.CoinbaseURL, "TRUSTSCOPE_MARKET_COINBASE_URL")
	setStr(&cfg.Market.CryptoCompareURL, "TRUSTSCOPE_MARKET_CRYPTOCOMPARE_URL")

	// ── AI ──
	setStr(&cfg.AI.AnthropicAPIKey, "TRUSTSCOPE_AI_ANTHROPIC_API_KEY")
	setStr(&cfg.AI.AnthropicAPIKey, "ANTHROPIC_API_KEY") // compatibility alias
	setStr(&cfg.AI.OpenAIAPIKey, "TRUSTSCOPE_AI_OPENAI_API_KEY")
	setStr(&cfg.AI.OpenAIAPIKey, "OPENAI_API_KEY") // compatibility alias
	setStr(&cfg.AI.OllamaURL, "TRUSTSCOPE_AI_OLLAMA_URL")
	setStr(&cfg.AI.Model, "TRUSTSCOPE_AI_MODEL")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.ResultTTL, "TRUSTSCOPE_PIPELINE_RESULT_TTL")
	setDuration(&cfg.Pipeline.AggregateTTL, "TRUSTSCOPE_PIPELINE_AGGREGATE_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRUSTSCOPE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRUSTSCOPE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRUSTSCOPE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRUSTSCOPE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRUSTSCOPE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRUSTSCOPE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRUSTSCOPE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRUSTSCOPE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRUSTSCOPE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRUSTSCOPE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRUSTSCOPE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRUSTSCOPE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRUSTSCOPE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRUSTSCOPE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRUSTSCOPE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRUSTSCOPE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRUSTSCOPE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRUSTSCOPE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRUSTSCOPE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRUSTSCOPE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRUSTSCOPE_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRUSTSCOPE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRUSTSCOPE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRUSTSCOPE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRUSTSCOPE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRUSTSCOPE_S3_FORCE_PATH_STYLE")

	// ── Audit ──
	setStr(&cfg.Audit.Dir, "TRUSTSCOPE_AUDIT_DIR")
	setDuration(&cfg.Audit.ArchiveInterval, "TRUSTSCOPE_AUDIT_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRUSTSCOPE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRUSTSCOPE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRUSTSCOPE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRUSTSCOPE_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRUSTSCOPE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRUSTSCOPE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRUSTSCOPE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRUSTSCOPE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRUSTSCOPE_MODE")
	setStr(&cfg.LogLevel, "TRUSTSCOPE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
