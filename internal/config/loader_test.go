package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "memory"
log_level = "debug"

[server]
port = 9100
rate_limit = 60
rate_limit_window = "30s"

[archive]
enabled = true
retention = "720h"
interval = "15m"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Server.RateLimitWindow.Duration)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, 720*time.Hour, cfg.Archive.Retention.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "kolwager", cfg.Database.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mode = "serve"

[database]
host = "db.internal"
`)

	t.Setenv("KOLWAGER_DATABASE_HOST", "db.override")
	t.Setenv("KOLWAGER_DATABASE_PASSWORD", "hunter2")
	t.Setenv("KOLWAGER_SERVER_PORT", "9200")
	t.Setenv("KOLWAGER_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("KOLWAGER_ARCHIVE_RETENTION", "48h")
	t.Setenv("KOLWAGER_MODE", "memory")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.override", cfg.Database.Host)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 48*time.Hour, cfg.Archive.Retention.Duration)
	assert.Equal(t, "memory", cfg.Mode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	t.Run("bad mode", func(t *testing.T) {
		c := Defaults()
		c.Mode = "cluster"
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown mode")
	})

	t.Run("memory mode skips database checks", func(t *testing.T) {
		c := Defaults()
		c.Mode = "memory"
		c.Database.Host = ""
		c.Redis.Addr = ""
		require.NoError(t, c.Validate())
	})

	t.Run("serve mode requires database", func(t *testing.T) {
		c := Defaults()
		c.Database.Host = ""
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database: host")
	})

	t.Run("archive requires bucket", func(t *testing.T) {
		c := Defaults()
		c.Archive.Enabled = true
		c.S3.Bucket = ""
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "s3: bucket")
	})

	t.Run("encrypted key needs password", func(t *testing.T) {
		c := Defaults()
		c.Admin.EncryptedKeyPath = "/etc/kolwager/admin.key"
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key_password")
	})

	t.Run("bad port", func(t *testing.T) {
		c := Defaults()
		c.Server.Port = 0
		require.Error(t, c.Validate())
	})
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "secret"
	cfg.Redis.Password = "secret"
	cfg.S3.SecretKey = "secret"
	cfg.Admin.APIKey = "secret"
	cfg.Notify.TelegramToken = "secret"

	red := RedactedConfig(&cfg)
	assert.NotContains(t, red.Database.Password, "secret")
	assert.NotContains(t, red.Redis.Password, "secret")
	assert.NotContains(t, red.S3.SecretKey, "secret")
	assert.NotContains(t, red.Admin.APIKey, "secret")
	assert.NotContains(t, red.Notify.TelegramToken, "secret")

	// The original is untouched.
	assert.Equal(t, "secret", cfg.Database.Password)
}
