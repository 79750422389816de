package campaigns

import (
	"sync"
	"time"
)

// Cache holds the active campaign list so per-customer evaluation does not
// hit the store on every request
type Cache interface {
	// Get returns cached campaigns, or nil on a miss or after expiry
	Get() []*Campaign

	// Set stores campaigns in the cache
	Set(campaigns []*Campaign)

	// Invalidate clears the cache, forcing a refresh on next Get
	Invalidate()
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Zero means entries never expire and only mutations invalidate them.
	TTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// InMemoryCache is a Cache guarded by a RWMutex
type InMemoryCache struct {
	campaigns []*Campaign
	cachedAt  time.Time
	config    CacheConfig
	valid     bool
	mu        sync.RWMutex
}

func NewInMemoryCache(config CacheConfig) *InMemoryCache {
	return &InMemoryCache{config: config}
}

func (c *InMemoryCache) Get() []*Campaign {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return nil
	}
	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return nil
	}

	out := make([]*Campaign, len(c.campaigns))
	copy(out, c.campaigns)
	return out
}

func (c *InMemoryCache) Set(campaigns []*Campaign) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.campaigns = make([]*Campaign, len(campaigns))
	copy(c.campaigns, campaigns)
	c.cachedAt = time.Now()
	c.valid = true
}

func (c *InMemoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.campaigns = nil
}
