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
// built-in defaults, applies KOLWAGER_* environment variable overrides, and
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

// applyEnvOverrides reads well-known KOLWAGER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "KOLWAGER_DATABASE_DSN")
	setStr(&cfg.Database.Host, "KOLWAGER_DATABASE_HOST")
	setInt(&cfg.Database.Port, "KOLWAGER_DATABASE_PORT")
	setStr(&cfg.Database.Database, "KOLWAGER_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "KOLWAGER_DATABASE_USER")
	setStr(&cfg.Database.Password, "KOLWAGER_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "KOLWAGER_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "KOLWAGER_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "KOLWAGER_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "KOLWAGER_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KOLWAGER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KOLWAGER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KOLWAGER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KOLWAGER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KOLWAGER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KOLWAGER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "KOLWAGER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KOLWAGER_S3_REGION")
	setStr(&cfg.S3.Bucket, "KOLWAGER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KOLWAGER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KOLWAGER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KOLWAGER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KOLWAGER_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "KOLWAGER_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Retention, "KOLWAGER_ARCHIVE_RETENTION")
	setDuration(&cfg.Archive.Interval, "KOLWAGER_ARCHIVE_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "KOLWAGER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "KOLWAGER_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "KOLWAGER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "KOLWAGER_SERVER_RATE_LIMIT_WINDOW")

	// ── Admin ──
	setStr(&cfg.Admin.APIKey, "KOLWAGER_ADMIN_API_KEY")
	setStr(&cfg.Admin.EncryptedKeyPath, "KOLWAGER_ADMIN_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Admin.KeyPassword, "KOLWAGER_ADMIN_KEY_PASSWORD")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KOLWAGER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KOLWAGER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KOLWAGER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "KOLWAGER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "KOLWAGER_MODE")
	setStr(&cfg.LogLevel, "KOLWAGER_LOG_LEVEL")
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
