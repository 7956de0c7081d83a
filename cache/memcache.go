package cache

import (
	"encoding/json"
	"sync"
	"time"
)

// MemCache is an in-memory Store guarded by a mutex, safe for concurrent
// request handlers. Snapshots live for the lifetime of the process.
type MemCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemCache creates an empty in-memory store.
func NewMemCache() *MemCache {
	return &MemCache{entries: make(map[string]Entry)}
}

// Read implements Store.
func (mc *MemCache) Read(key string, ttl time.Duration) (*Entry, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, exists := mc.entries[key]
	if !exists {
		return nil, false
	}
	if ttl > 0 && entry.Age(time.Now()) > ttl {
		return &entry, false
	}
	return &entry, true
}

// Write implements Store.
func (mc *MemCache) Write(key string, data json.RawMessage) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.entries[key] = Entry{Timestamp: time.Now().Unix(), Data: append(json.RawMessage(nil), data...)}
	return nil
}
