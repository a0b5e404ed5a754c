package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const memoryCacheSize = 16_384

type MemoryProvider struct {
	entries *lru.Cache[string, memoryEntry]
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryProvider() (*MemoryProvider, error) {
	entries, err := lru.New[string, memoryEntry](memoryCacheSize)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{entries: entries}, nil
}

func (m *MemoryProvider) Get(_ context.Context, key string) (string, error) {
	entry, ok := m.entries.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		m.entries.Remove(key)
		return "", ErrNotFound
	}
	return entry.value, nil
}

func (m *MemoryProvider) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.entries.Add(key, memoryEntry{value: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

func (m *MemoryProvider) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
