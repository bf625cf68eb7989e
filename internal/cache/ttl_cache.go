package cache

import (
	"log/slog"
	"sync"
	"time"
)

// CacheEntry represents a cached item with expiration time
type CacheEntry struct {
	Value     interface{}
	ExpiresAt time.Time
}

// TTLCache implements a thread-safe cache with TTL (Time To Live) functionality.
// It backs idempotency checks: results of completed operations are cached
// under their idempotency key for the TTL window.
type TTLCache struct {
	items         map[string]*CacheEntry
	mutex         sync.RWMutex
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan bool
}

// NewTTLCache creates a new TTL cache with specified TTL and cleanup interval
func NewTTLCache(ttl, cleanupInterval time.Duration) *TTLCache {
	cache := &TTLCache{
		items:       make(map[string]*CacheEntry),
		ttl:         ttl,
		stopCleanup: make(chan bool),
	}

	cache.cleanupTicker = time.NewTicker(cleanupInterval)
	go cache.cleanupExpiredEntries()

	slog.Info("TTL cache initialized",
		"ttl", ttl.String(),
		"cleanup_interval", cleanupInterval.String())

	return cache
}

// Set stores a value in the cache with TTL
func (c *TTLCache) Set(key string, value interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items[key] = &CacheEntry{
		Value:     value,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Get retrieves a value from the cache if it exists and hasn't expired
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}

	return entry.Value, true
}

// Delete removes a specific key from the cache
func (c *TTLCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, key)
}

// Size returns the current number of items in the cache (including expired ones)
func (c *TTLCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.items)
}

// Stop stops the cleanup goroutine and cleans up resources
func (c *TTLCache) Stop() {
	if c.cleanupTicker != nil {
		c.cleanupTicker.Stop()
	}
	close(c.stopCleanup)
}

// cleanupExpiredEntries runs periodically to remove expired entries
func (c *TTLCache) cleanupExpiredEntries() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.performCleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// performCleanup removes expired entries from the cache
func (c *TTLCache) performCleanup() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range c.items {
		if now.After(entry.ExpiresAt) {
			delete(c.items, key)
			removed++
		}
	}

	if removed > 0 {
		slog.Debug("Cache cleanup completed",
			"expired_entries", removed,
			"remaining_entries", len(c.items))
	}
}

// GetStats returns cache statistics
func (c *TTLCache) GetStats() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	now := time.Now()
	activeCount := 0
	for _, entry := range c.items {
		if now.Before(entry.ExpiresAt) {
			activeCount++
		}
	}

	return map[string]interface{}{
		"total_entries":  len(c.items),
		"active_entries": activeCount,
		"ttl_duration":   c.ttl.String(),
	}
}
