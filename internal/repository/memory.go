package repository

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemorySettingsCache is the in-process fallback tier.
type MemorySettingsCache struct {
	entries sync.Map
	ttl     time.Duration
}

func NewMemorySettingsCache(ttl time.Duration) *MemorySettingsCache {
	return &MemorySettingsCache{ttl: ttl}
}

func (m *MemorySettingsCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, ok := m.entries.Load(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	entry := val.(memoryEntry)
	if m.ttl > 0 && time.Now().After(entry.expiresAt) {
		m.entries.Delete(key)
		return nil, ErrCacheMiss
	}
	return entry.payload, nil
}

func (m *MemorySettingsCache) Set(ctx context.Context, key string, payload []byte) error {
	m.entries.Store(key, memoryEntry{
		payload:   append([]byte(nil), payload...),
		expiresAt: time.Now().Add(m.ttl),
	})
	return nil
}

func (m *MemorySettingsCache) Invalidate(ctx context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}
