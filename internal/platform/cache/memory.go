package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

// MemoryClient is an in-process Client used by tests and local development
// when no Redis server is available.
type MemoryClient struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryClient constructs an empty in-memory cache.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Client.
func (c *MemoryClient) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}
	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set implements Client.
func (c *MemoryClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// Delete implements Client.
func (c *MemoryClient) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	return nil
}

// DeleteByPattern implements Client using path.Match glob semantics, which
// cover the "prefix:*" patterns used by the key scheme.
func (c *MemoryClient) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return err
		}
		if matched {
			delete(c.entries, key)
		}
	}
	return nil
}

// Close implements Client.
func (c *MemoryClient) Close() error { return nil }

// Len reports the number of live entries. Intended for tests.
func (c *MemoryClient) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ Client = (*MemoryClient)(nil)
