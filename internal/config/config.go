// Package config loads herdbook settings from the environment and optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "HERDBOOK"

const (
	defaultRecordStoreDriver   = "memory"
	defaultCacheDriver         = "memory"
	defaultSQLitePath          = "herdbook.db"
	defaultCacheKey            = "herdbook.cache"
	defaultCacheTTL            = 5 * time.Minute
	defaultBlobDriver          = "fs"
	defaultBlobFSRoot          = "./blobdata"
	defaultBlobS3Region        = "us-east-1"
	defaultReachabilityTimeout = 3 * time.Second
	defaultLogLevel            = "info"
)

// Config is the resolved configuration.
type Config struct {
	RecordStoreDriver   string        `mapstructure:"record_store_driver"`
	PostgresDSN         string        `mapstructure:"postgres_dsn"`
	CacheDriver         string        `mapstructure:"cache_driver"`
	SQLitePath          string        `mapstructure:"sqlite_path"`
	CacheKey            string        `mapstructure:"cache_key"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	BlobDriver          string        `mapstructure:"blob_driver"`
	BlobFSRoot          string        `mapstructure:"blob_fs_root"`
	BlobS3Bucket        string        `mapstructure:"blob_s3_bucket"`
	BlobS3Region        string        `mapstructure:"blob_s3_region"`
	BlobS3Endpoint      string        `mapstructure:"blob_s3_endpoint"`
	BlobS3PathStyle     bool          `mapstructure:"blob_s3_path_style"`
	ReachabilityURL     string        `mapstructure:"reachability_url"`
	ReachabilityTimeout time.Duration `mapstructure:"reachability_timeout"`
	LogLevel            string        `mapstructure:"log_level"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		RecordStoreDriver:   defaultRecordStoreDriver,
		CacheDriver:         defaultCacheDriver,
		SQLitePath:          defaultSQLitePath,
		CacheKey:            defaultCacheKey,
		CacheTTL:            defaultCacheTTL,
		BlobDriver:          defaultBlobDriver,
		BlobFSRoot:          defaultBlobFSRoot,
		BlobS3Region:        defaultBlobS3Region,
		ReachabilityTimeout: defaultReachabilityTimeout,
		LogLevel:            defaultLogLevel,
	}
}

// Load reads the given .env files (missing files are skipped), then the
// HERDBOOK_* environment, and validates the result. Variables already present
// in the environment win over .env entries.
func Load(envFiles ...string) (*Config, error) {
	for _, path := range envFiles {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	def := Default()
	v.SetDefault("record_store_driver", def.RecordStoreDriver)
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("cache_driver", def.CacheDriver)
	v.SetDefault("sqlite_path", def.SQLitePath)
	v.SetDefault("cache_key", def.CacheKey)
	v.SetDefault("cache_ttl", def.CacheTTL)
	v.SetDefault("blob_driver", def.BlobDriver)
	v.SetDefault("blob_fs_root", def.BlobFSRoot)
	v.SetDefault("blob_s3_bucket", "")
	v.SetDefault("blob_s3_region", def.BlobS3Region)
	v.SetDefault("blob_s3_endpoint", "")
	v.SetDefault("blob_s3_path_style", false)
	v.SetDefault("reachability_url", "")
	v.SetDefault("reachability_timeout", def.ReachabilityTimeout)
	v.SetDefault("log_level", def.LogLevel)

	cfg := &Config{
		RecordStoreDriver:   v.GetString("record_store_driver"),
		PostgresDSN:         v.GetString("postgres_dsn"),
		CacheDriver:         v.GetString("cache_driver"),
		SQLitePath:          v.GetString("sqlite_path"),
		CacheKey:            v.GetString("cache_key"),
		CacheTTL:            v.GetDuration("cache_ttl"),
		BlobDriver:          v.GetString("blob_driver"),
		BlobFSRoot:          v.GetString("blob_fs_root"),
		BlobS3Bucket:        v.GetString("blob_s3_bucket"),
		BlobS3Region:        v.GetString("blob_s3_region"),
		BlobS3Endpoint:      v.GetString("blob_s3_endpoint"),
		BlobS3PathStyle:     v.GetBool("blob_s3_path_style"),
		ReachabilityURL:     v.GetString("reachability_url"),
		ReachabilityTimeout: v.GetDuration("reachability_timeout"),
		LogLevel:            v.GetString("log_level"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names and their required settings.
func (c *Config) Validate() error {
	switch c.RecordStoreDriver {
	case "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("postgres_dsn is required for the postgres record store")
		}
	default:
		return fmt.Errorf("unknown record_store_driver %q", c.RecordStoreDriver)
	}
	switch c.CacheDriver {
	case "memory", "sqlite":
	case "blob":
		switch c.BlobDriver {
		case "fs", "memory":
		case "s3":
			if c.BlobS3Bucket == "" {
				return errors.New("blob_s3_bucket is required for the s3 blob driver")
			}
		default:
			return fmt.Errorf("unknown blob_driver %q", c.BlobDriver)
		}
	default:
		return fmt.Errorf("unknown cache_driver %q", c.CacheDriver)
	}
	if c.CacheTTL <= 0 {
		return errors.New("cache_ttl must be positive")
	}
	if c.ReachabilityTimeout <= 0 {
		return errors.New("reachability_timeout must be positive")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
