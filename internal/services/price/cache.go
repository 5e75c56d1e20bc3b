// Package price provides quotes, symbol search, and daily price series with
// caching and dual-source fallback.
package price

import (
	"sync"
	"time"
)

// Cache is an advisory key-value store with per-entry timestamps. Correctness
// never depends on it — only latency and upstream call volume. Implementations
// can swap the in-process map for an external cache without changing the
// service contract.
type Cache interface {
	// Get returns the stored value and its set time. ok is false on miss.
	Get(key string) (value interface{}, setAt time.Time, ok bool)

	// Set stores a value with the given timestamp.
	Set(key string, value interface{}, setAt time.Time)
}

// memoryCache is a mutex-guarded in-process Cache.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value interface{}
	setAt time.Time
}

// NewMemoryCache creates an in-process Cache.
func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string]memoryEntry)}
}

func (c *memoryCache) Get(key string) (interface{}, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, time.Time{}, false
	}
	return e.value, e.setAt, true
}

func (c *memoryCache) Set(key string, value interface{}, setAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, setAt: setAt}
}
