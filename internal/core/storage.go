package core

import (
	"context"
	"errors"
	"fmt"

	"herdbook/internal/blob"
	"herdbook/internal/cache"
	"herdbook/internal/config"
	"herdbook/internal/gateway"
	"herdbook/internal/infra/persistence/memory"
	"herdbook/internal/infra/persistence/postgres"
	"herdbook/internal/infra/persistence/sqlite"
	"herdbook/internal/lifecycle"
	"herdbook/internal/reachability"
	"herdbook/pkg/domain"
)

// StorageDriver identifies a remote record store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// CacheDriver identifies where the offline cache entry is persisted.
type CacheDriver string

const (
	CacheMemory CacheDriver = "memory" // process memory
	CacheSQLite CacheDriver = "sqlite" // embedded sqlite file
	CacheBlob   CacheDriver = "blob"   // blob store (fs / s3 / memory)
)

// cacheBlobPrefix is the object key prefix of the cache entry in blob storage.
const cacheBlobPrefix = "cache/"

// OpenRecordStore selects the remote record store backend.
func OpenRecordStore(ctx context.Context, cfg config.Config) (domain.RecordStore, func() error, error) {
	switch StorageDriver(cfg.RecordStoreDriver) {
	case "", StorageMemory:
		return memory.NewStore(), noopClose, nil
	case StoragePostgres:
		ps, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return ps, ps.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %s", cfg.RecordStoreDriver)
	}
}

// OpenCacheKV selects the persisted cache backend.
func OpenCacheKV(ctx context.Context, cfg config.Config) (cache.KV, func() error, error) {
	switch CacheDriver(cfg.CacheDriver) {
	case "", CacheMemory:
		return cache.NewMemoryKV(), noopClose, nil
	case CacheSQLite:
		st, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case CacheBlob:
		store, err := blob.Open(ctx, blob.Config{
			Driver: blob.Driver(cfg.BlobDriver),
			FSRoot: cfg.BlobFSRoot,
			S3: blob.S3Config{
				Bucket:    cfg.BlobS3Bucket,
				Region:    cfg.BlobS3Region,
				Endpoint:  cfg.BlobS3Endpoint,
				PathStyle: cfg.BlobS3PathStyle,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		return cache.NewBlobKV(store, cacheBlobPrefix), noopClose, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %s", cfg.CacheDriver)
	}
}

// OpenMonitor returns an HTTP probe when a reachability URL is configured and
// an always-online monitor otherwise.
func OpenMonitor(cfg config.Config) reachability.Monitor {
	if cfg.ReachabilityURL == "" {
		return reachability.Static(true)
	}
	return reachability.NewHTTPProbe(cfg.ReachabilityURL, reachability.WithTimeout(cfg.ReachabilityTimeout))
}

// Open wires a Service from cfg. The returned close function releases the
// record store and cache backends.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Service, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	lvl, _ := cfg.Level()
	records, closeRecords, err := OpenRecordStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open record store: %w", err)
	}
	kv, closeKV, err := OpenCacheKV(ctx, cfg)
	if err != nil {
		_ = closeRecords()
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	o := defaultServiceOptions()
	for _, opt := range opts {
		opt(&o)
	}
	entry := cache.New(kv, cache.WithKey(cfg.CacheKey), cache.WithTTL(cfg.CacheTTL), cache.WithClock(o.clock.Now))
	opts = append(opts, func(o *serviceOptions) { o.logger = o.logger.Level(lvl) })
	svc := NewService(gateway.New(records), OpenMonitor(cfg), entry, lifecycle.NewCoordinator(nil), opts...)
	closeAll := func() error {
		return errors.Join(closeKV(), closeRecords())
	}
	return svc, closeAll, nil
}

func noopClose() error { return nil }
