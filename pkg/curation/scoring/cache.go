package scoring

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Cache stores complete scoring results. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Put(ctx context.Context, key string, result *Result) error
}

// CacheKey derives the cache key for a phrase scored in a category from a
// source. The phrase is compared case-insensitively.
func CacheKey(phrase, category, source string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(strings.ToLower(strings.TrimSpace(phrase))))
	h.Write([]byte{0})
	h.Write([]byte(category))
	h.Write([]byte{0})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is a process-local Cache
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Result
}

// NewMemoryCache creates an empty cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Result)}
}

// Get returns a copy of the cached result
func (c *MemoryCache) Get(_ context.Context, key string) (*Result, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

// Put stores a copy of result
func (c *MemoryCache) Put(_ context.Context, key string, result *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *result
	return nil
}

// Len returns the number of cached entries
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
