package services

import (
	"fmt"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	cache := NewCacheServiceWithConfig(1*time.Minute, 10)

	cache.Set("key", "value")

	got, found := cache.Get("key")
	if !found {
		t.Fatal("expected cached value")
	}
	if got != "value" {
		t.Errorf("expected %q, got %v", "value", got)
	}

	if _, found := cache.Get("missing"); found {
		t.Error("expected miss for unknown key")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache := NewCacheServiceWithConfig(1*time.Minute, 10)

	cache.SetWithTTL("key", "value", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, found := cache.Get("key"); found {
		t.Error("expected entry to expire")
	}
}

func TestCacheEviction(t *testing.T) {
	cache := NewCacheServiceWithConfig(1*time.Minute, 3)

	// The first entry expires soonest, so it is the eviction candidate
	cache.SetWithTTL("first", 1, 1*time.Minute)
	cache.SetWithTTL("second", 2, 2*time.Minute)
	cache.SetWithTTL("third", 3, 3*time.Minute)
	cache.SetWithTTL("fourth", 4, 4*time.Minute)

	if cache.Size() != 3 {
		t.Errorf("expected cache size capped at 3, got %d", cache.Size())
	}
	if _, found := cache.Get("first"); found {
		t.Error("expected the soonest-expiring entry to be evicted")
	}
	if _, found := cache.Get("fourth"); !found {
		t.Error("expected the newest entry to be present")
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	cache := NewCacheServiceWithConfig(1*time.Minute, 10)

	cache.Set("a", 1)
	cache.Set("b", 2)

	cache.Delete("a")
	if _, found := cache.Get("a"); found {
		t.Error("expected deleted key to be gone")
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("expected empty cache after clear, got %d entries", cache.Size())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	cache := NewCacheServiceWithConfig(1*time.Minute, 1000)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(worker int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("w%d-k%d", worker, j)
				cache.Set(key, j)
				cache.Get(key)
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
