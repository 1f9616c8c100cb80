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
// built-in defaults, applies VYAPAR_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VYAPAR_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "VYAPAR_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "VYAPAR_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "VYAPAR_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "VYAPAR_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "VYAPAR_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "VYAPAR_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "VYAPAR_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "VYAPAR_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "VYAPAR_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "VYAPAR_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VYAPAR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VYAPAR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VYAPAR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VYAPAR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VYAPAR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VYAPAR_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "VYAPAR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VYAPAR_S3_REGION")
	setStr(&cfg.S3.Bucket, "VYAPAR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VYAPAR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VYAPAR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VYAPAR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VYAPAR_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "VYAPAR_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Retention, "VYAPAR_ARCHIVE_RETENTION")
	setDuration(&cfg.Archive.Interval, "VYAPAR_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "VYAPAR_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "VYAPAR_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VYAPAR_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "VYAPAR_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "VYAPAR_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "VYAPAR_SERVER_RATE_WINDOW")

	// ── Negotiation ──
	setDuration(&cfg.Negotiation.TTL, "VYAPAR_NEGOTIATION_TTL")
	setDuration(&cfg.Negotiation.SweepInterval, "VYAPAR_NEGOTIATION_SWEEP_INTERVAL")
	setInt(&cfg.Negotiation.DefaultQuantity, "VYAPAR_NEGOTIATION_DEFAULT_QUANTITY")

	// ── Translate ──
	setStr(&cfg.Translate.BaseURL, "VYAPAR_TRANSLATE_BASE_URL")
	setStr(&cfg.Translate.APIKey, "VYAPAR_TRANSLATE_API_KEY")

	// ── Speech ──
	setStr(&cfg.Speech.BaseURL, "VYAPAR_SPEECH_BASE_URL")
	setStr(&cfg.Speech.APIKey, "VYAPAR_SPEECH_API_KEY")
	setStr(&cfg.Speech.Voice, "VYAPAR_SPEECH_VOICE")

	// ── Payment ──
	setStr(&cfg.Payment.BaseURL, "VYAPAR_PAYMENT_BASE_URL")
	setStr(&cfg.Payment.KeyID, "VYAPAR_PAYMENT_KEY_ID")
	setStr(&cfg.Payment.Secret, "VYAPAR_PAYMENT_SECRET")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "VYAPAR_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "VYAPAR_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "VYAPAR_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "VYAPAR_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Storage, "VYAPAR_STORAGE")
	setStr(&cfg.Cache, "VYAPAR_CACHE")
	setStr(&cfg.Mode, "VYAPAR_MODE")
	setStr(&cfg.LogLevel, "VYAPAR_LOG_LEVEL")
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
