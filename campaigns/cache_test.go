package campaigns

import (
	"testing"
	"time"
)

func TestInMemoryCache(t *testing.T) {
	cache := NewInMemoryCache(DefaultCacheConfig())

	if cache.Get() != nil {
		t.Error("Empty cache should miss")
	}

	cache.Set([]*Campaign{newCampaign("c1", StatusActive)})
	got := cache.Get()
	if len(got) != 1 || got[0].ID != "c1" {
		t.Errorf("Get() = %v, want [c1]", campaignIDs(got))
	}

	cache.Invalidate()
	if cache.Get() != nil {
		t.Error("Invalidated cache should miss")
	}
}

func TestInMemoryCacheEmptyListIsHit(t *testing.T) {
	cache := NewInMemoryCache(DefaultCacheConfig())
	cache.Set(nil)

	got := cache.Get()
	if got == nil {
		t.Fatal("Caching no campaigns should still be a hit")
	}
	if len(got) != 0 {
		t.Errorf("Expected no campaigns, got %d", len(got))
	}
}

func TestInMemoryCacheTTL(t *testing.T) {
	cache := NewInMemoryCache(CacheConfig{TTL: 10 * time.Millisecond})
	cache.Set([]*Campaign{newCampaign("c1", StatusActive)})

	if cache.Get() == nil {
		t.Fatal("Fresh entry should hit")
	}

	time.Sleep(20 * time.Millisecond)
	if cache.Get() != nil {
		t.Error("Expired entry should miss")
	}
}
