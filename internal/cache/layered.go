package cache

import (
	"bytes"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultMemoryEntries bounds the in-process layer. A batch run touches
// each document once, so older replies are served from disk.
const DefaultMemoryEntries = 1024

// MemoryCache holds enrichment replies in process memory, capped at
// maxEntries. When full it sweeps expired replies and otherwise drops new
// keys. Values are copied in and out since replies are decoded in place.
type MemoryCache struct {
	items      *gocache.Cache
	maxEntries int
}

// NewMemoryCache creates a memory cache. maxEntries <= 0 means unbounded.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	return &MemoryCache{
		items:      gocache.New(ttl, max(ttl, time.Minute)),
		maxEntries: maxEntries,
	}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.items.Get(key)
	if !found {
		return nil, false
	}
	b, ok := val.([]byte)
	if !ok {
		return nil, false
	}
	return bytes.Clone(b), true
}

// Set stores value; ttl 0 uses the cache default
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	if c.full(key) {
		return nil
	}
	c.items.Set(key, bytes.Clone(value), ttl)
	return nil
}

func (c *MemoryCache) full(key string) bool {
	if c.maxEntries <= 0 {
		return false
	}
	if _, exists := c.items.Get(key); exists {
		return false
	}
	if c.items.ItemCount() < c.maxEntries {
		return false
	}
	c.items.DeleteExpired()
	return c.items.ItemCount() >= c.maxEntries
}

// Len reports the number of held replies, expired ones included until swept
func (c *MemoryCache) Len() int { return c.items.ItemCount() }

func (c *MemoryCache) Delete(key string) error {
	c.items.Delete(key)
	return nil
}

func (c *MemoryCache) Clear() error {
	c.items.Flush()
	return nil
}

// LayeredCache reads memory first, then disk, promoting disk hits
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a memory+disk cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, DefaultMemoryEntries),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}
	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}
	return nil, false
}

// Set writes both layers. The memory layer keeps its own default TTL so a
// long disk TTL does not pin entries in memory.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, 0); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}
