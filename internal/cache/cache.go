// Package cache provides an in-memory TTL cache with ETag support for API
// responses.
package cache

import (
	"crypto/md5"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLs per response kind.
const (
	TTLHistory = 15 * time.Minute // Provider-backed historical series
	TTLMembers = 30 * time.Second // Dashboard member list
)

type entry struct {
	data []byte
	etag string
}

// Cache is a thread-safe in-memory TTL cache. A disabled cache stores nothing.
type Cache struct {
	c       *gocache.Cache
	enabled bool
}

// New creates a new cache. Pass enabled=false to create a no-op cache.
func New(enabled bool) *Cache {
	c := &Cache{enabled: enabled}
	if enabled {
		c.c = gocache.New(TTLHistory, 5*time.Minute)
	}
	return c
}

// Get retrieves a cached value. Returns data, etag, and whether the entry was found.
func (c *Cache) Get(key string) (data []byte, etag string, ok bool) {
	if !c.enabled {
		return nil, "", false
	}
	v, found := c.c.Get(key)
	if !found {
		return nil, "", false
	}
	e := v.(entry)
	return e.data, e.etag, true
}

// Set stores a value with a TTL and returns its ETag.
func (c *Cache) Set(key string, data []byte, ttl time.Duration) string {
	etag := ComputeETag(data)
	if c.enabled {
		c.c.Set(key, entry{data: data, etag: etag}, ttl)
	}
	return etag
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	if c.enabled {
		c.c.Delete(key)
	}
}

// Flush removes every entry.
func (c *Cache) Flush() {
	if c.enabled {
		c.c.Flush()
	}
}

// Stats returns cache statistics.
func (c *Cache) Stats() map[string]any {
	keys := 0
	if c.enabled {
		keys = c.c.ItemCount()
	}
	return map[string]any{
		"enabled":    c.enabled,
		"total_keys": keys,
	}
}

// ComputeETag generates a weak ETag from response data using MD5.
func ComputeETag(data []byte) string {
	hash := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, hash[:8])
}

// CheckETagMatch checks if If-None-Match header matches the current ETag.
func CheckETagMatch(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	// Single-etag comparison only.
	return ifNoneMatch == etag
}
