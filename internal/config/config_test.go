package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, lvl)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HERDBOOK_RECORD_STORE_DRIVER", "postgres")
	t.Setenv("HERDBOOK_POSTGRES_DSN", "postgres://localhost/herd")
	t.Setenv("HERDBOOK_CACHE_DRIVER", "blob")
	t.Setenv("HERDBOOK_BLOB_DRIVER", "s3")
	t.Setenv("HERDBOOK_BLOB_S3_BUCKET", "herd-cache")
	t.Setenv("HERDBOOK_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("HERDBOOK_CACHE_TTL", "90s")
	t.Setenv("HERDBOOK_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.RecordStoreDriver)
	assert.Equal(t, "postgres://localhost/herd", cfg.PostgresDSN)
	assert.Equal(t, "herd-cache", cfg.BlobS3Bucket)
	assert.True(t, cfg.BlobS3PathStyle)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HERDBOOK_CACHE_DRIVER=sqlite\nHERDBOOK_SQLITE_PATH=/tmp/herd.db\nHERDBOOK_CACHE_KEY=from-file\n"), 0o600))
	t.Setenv("HERDBOOK_CACHE_KEY", "from-env")
	t.Cleanup(func() {
		_ = os.Unsetenv("HERDBOOK_CACHE_DRIVER")
		_ = os.Unsetenv("HERDBOOK_SQLITE_PATH")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.CacheDriver)
	assert.Equal(t, "/tmp/herd.db", cfg.SQLitePath)
	assert.Equal(t, "from-env", cfg.CacheKey)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown record store": func(c *Config) { c.RecordStoreDriver = "mongo" },
		"postgres without dsn": func(c *Config) { c.RecordStoreDriver = "postgres" },
		"unknown cache":        func(c *Config) { c.CacheDriver = "redis" },
		"unknown blob":         func(c *Config) { c.CacheDriver, c.BlobDriver = "blob", "tape" },
		"s3 without bucket":    func(c *Config) { c.CacheDriver, c.BlobDriver = "blob", "s3" },
		"zero ttl":             func(c *Config) { c.CacheTTL = 0 },
		"zero probe timeout":   func(c *Config) { c.ReachabilityTimeout = 0 },
		"bad log level":        func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Setenv("HERDBOOK_CACHE_DRIVER", "redis")
	_, err := Load()
	assert.Error(t, err)
}
