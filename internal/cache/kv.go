package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"herdbook/internal/blob"
)

// KV is the persisted key/value storage holding the cache entry. The sqlite
// store in internal/infra/persistence/sqlite satisfies it directly.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryKV is a process-local KV for tests and ephemeral sessions.
type MemoryKV struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryKV returns an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{items: make(map[string][]byte)}
}

// Get returns a copy of the payload stored under key.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(payload), true, nil
}

// Set stores a copy of payload under key.
func (m *MemoryKV) Set(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = bytes.Clone(payload)
	return nil
}

// Delete removes key.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// BlobKV stores each key as one blob object.
type BlobKV struct {
	store  blob.Store
	prefix string
}

// NewBlobKV adapts a blob store; keys are written under prefix.
func NewBlobKV(store blob.Store, prefix string) *BlobKV {
	return &BlobKV{store: store, prefix: prefix}
}

func (b *BlobKV) objectKey(key string) string { return b.prefix + key }

// Get reads the blob for key.
func (b *BlobKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	_, rc, err := b.store.Get(ctx, b.objectKey(key))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache blob: %w", err)
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("read cache blob: %w", err)
	}
	return payload, true, nil
}

// Set overwrites the blob for key.
func (b *BlobKV) Set(ctx context.Context, key string, payload []byte) error {
	_, err := b.store.Put(ctx, b.objectKey(key), bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Overwrite:   true,
	})
	if err != nil {
		return fmt.Errorf("write cache blob: %w", err)
	}
	return nil
}

// Delete removes the blob for key.
func (b *BlobKV) Delete(ctx context.Context, key string) error {
	if _, err := b.store.Delete(ctx, b.objectKey(key)); err != nil {
		return fmt.Errorf("delete cache blob: %w", err)
	}
	return nil
}
