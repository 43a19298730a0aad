// Package cache holds the offline cache bundle: one persisted entry carrying
// every synchronized collection and a single write timestamp.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"herdbook/pkg/domain"
)

const (
	// DefaultKey is the storage key of the bundle.
	DefaultKey = "herdbook.cache"
	// DefaultTTL bounds how long a bundle may serve offline reads.
	DefaultTTL = 5 * time.Minute
)

// Bundle is the persisted entry. Timestamp is epoch milliseconds of the last write.
type Bundle struct {
	Data      map[domain.Collection]json.RawMessage `json:"data"`
	Timestamp int64                                 `json:"timestamp"`
}

// Age returns how old the bundle is at now, in whole milliseconds.
func (b Bundle) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-b.Timestamp) * time.Millisecond
}

// ErrCorruptBundle marks a stored entry that cannot be decoded.
var ErrCorruptBundle = errors.New("cache: corrupt bundle")

// Cache reads and merges the bundle. Read-modify-write cycles are serialized.
type Cache struct {
	kv    KV
	key   string
	ttl   time.Duration
	nowFn func() time.Time
	mu    sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(c *Cache) {
		if key != "" {
			c.key = key
		}
	}
}

// WithTTL overrides the freshness window. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.nowFn = now
		}
	}
}

// New wraps kv. A nil kv uses a fresh MemoryKV.
func New(kv KV, opts ...Option) *Cache {
	if kv == nil {
		kv = NewMemoryKV()
	}
	c := &Cache{kv: kv, key: DefaultKey, ttl: DefaultTTL, nowFn: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the storage key.
func (c *Cache) Key() string { return c.key }

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Load returns the stored bundle; ok is false when none exists.
func (c *Cache) Load(ctx context.Context) (Bundle, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Cache) load(ctx context.Context) (Bundle, bool, error) {
	payload, ok, err := c.kv.Get(ctx, c.key)
	if err != nil || !ok {
		return Bundle{}, false, err
	}
	var bundle Bundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return Bundle{}, false, fmt.Errorf("%w: %v", ErrCorruptBundle, err)
	}
	return bundle, true, nil
}

// Fresh decodes the cached slice for collection into dst when the bundle is
// younger than the TTL. A missing bundle, a stale bundle, or a bundle without
// that slice report false.
func (c *Cache) Fresh(ctx context.Context, collection domain.Collection, dst any) (bool, error) {
	bundle, ok, err := c.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	if bundle.Age(c.nowFn()) >= c.ttl {
		return false, nil
	}
	raw, ok := bundle.Data[collection]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: decode %s: %v", ErrCorruptBundle, collection, err)
	}
	return true, nil
}

// Store merges items as the slice for collection, keeping the other slices,
// and stamps the bundle with the current time. A corrupt entry is replaced.
func (c *Cache) Store(ctx context.Context, collection domain.Collection, items any) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	bundle, _, err := c.load(ctx)
	if err != nil && !errors.Is(err, ErrCorruptBundle) {
		return err
	}
	if bundle.Data == nil {
		bundle.Data = make(map[domain.Collection]json.RawMessage, len(domain.Collections()))
	}
	bundle.Data[collection] = raw
	bundle.Timestamp = c.nowFn().UnixMilli()
	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return c.kv.Set(ctx, c.key, payload)
}

// Clear removes the bundle.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Delete(ctx, c.key)
}
