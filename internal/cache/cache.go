// Package cache provides the response cache used by the generation pipeline.
//
// The cache is an explicit injected service rather than ambient global state,
// so tests get per-instance isolation and multiple engines can run side by
// side. Keys bind the normalized message to the agent, intent, language and
// the agent's personality hash, so reconfiguring an agent invalidates its
// stale answers.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a cached reply stays valid.
const DefaultTTL = 6 * time.Hour

// Cache is the response cache consumed by the generation pipeline.
type Cache interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Key builds the cache key from the request dimensions. The message text is
// normalized (lowercased, whitespace collapsed) so trivial variations hit.
func Key(text, agentID, intent, language, personalityHash string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(agentID))
	h.Write([]byte{0})
	h.Write([]byte(intent))
	h.Write([]byte{0})
	h.Write([]byte(language))
	h.Write([]byte{0})
	h.Write([]byte(personalityHash))
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache is a concurrency-safe in-process TTL cache. Expired entries are
// dropped lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a cache with the given TTL; zero means DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value if present and unexpired.
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", false
	}
	return e.value, true
}

// Set stores the value under the key with the configured TTL.
func (c *MemoryCache) Set(key, value string) {
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
