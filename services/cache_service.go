package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/propscan/hmo-backend/models"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Data      interface{}
	ExpiresAt time.Time
}

// IsExpired checks if the cache entry has expired
func (ce *CacheEntry) IsExpired() bool {
	return time.Now().After(ce.ExpiresAt)
}

// CacheService provides an in-memory TTL cache shared by the read paths.
// It supports:
// - TTL per entry with automatic cleanup
// - Thread-safe operations with read/write locks
// - FIFO eviction when the size cap is reached
type CacheService struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	defaultTTL time.Duration
	maxSize    int
}

// NewCacheService creates a new cache service with default TTL
func NewCacheService() *CacheService {
	cs := &CacheService{
		cache:      make(map[string]*CacheEntry),
		defaultTTL: 5 * time.Minute,
		maxSize:    1000,
	}

	go cs.cleanupExpired()

	return cs
}

// NewCacheServiceWithConfig creates a cache service with custom configuration
func NewCacheServiceWithConfig(defaultTTL time.Duration, maxSize int) *CacheService {
	cs := &CacheService{
		cache:      make(map[string]*CacheEntry),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
	}

	go cs.cleanupExpired()

	return cs
}

// Get retrieves a value from cache
func (cs *CacheService) Get(key string) (interface{}, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	entry, exists := cs.cache[key]
	if !exists || entry.IsExpired() {
		return nil, false
	}

	return entry.Data, true
}

// Set stores a value in cache with default TTL
func (cs *CacheService) Set(key string, value interface{}) {
	cs.SetWithTTL(key, value, cs.defaultTTL)
}

// SetWithTTL stores a value in cache with custom TTL
func (cs *CacheService) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if len(cs.cache) >= cs.maxSize {
		cs.evictOldest()
	}

	cs.cache[key] = &CacheEntry{
		Data:      value,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// evictOldest removes the entry expiring soonest (simple FIFO eviction)
func (cs *CacheService) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range cs.cache {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(cs.cache, oldestKey)
	}
}

// Delete removes a value from cache
func (cs *CacheService) Delete(key string) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	delete(cs.cache, key)
}

// Clear removes all values from cache
func (cs *CacheService) Clear() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache = make(map[string]*CacheEntry)
}

// Size returns the number of items in cache
func (cs *CacheService) Size() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	return len(cs.cache)
}

// cleanupExpired removes expired entries from cache
func (cs *CacheService) cleanupExpired() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cs.mutex.Lock()
		for key, entry := range cs.cache {
			if entry.IsExpired() {
				delete(cs.cache, key)
			}
		}
		cs.mutex.Unlock()
	}
}

// CachedPropertyService wraps the property and market services with caching
type CachedPropertyService struct {
	propertyService *PropertyService
	marketService   *MarketService
	cache           *CacheService
}

// NewCachedPropertyService creates a new cached property service
func NewCachedPropertyService(propertyService *PropertyService, marketService *MarketService, cache *CacheService) *CachedPropertyService {
	return &CachedPropertyService{
		propertyService: propertyService,
		marketService:   marketService,
		cache:           cache,
	}
}

// GetProperties returns listings for a filter, using cache when possible.
// Only unfiltered or city-only queries are cached; narrower filters change
// too often to be worth the invalidation traffic.
func (cps *CachedPropertyService) GetProperties(ctx context.Context, filter PropertyFilter) ([]models.Property, error) {
	cacheable := filter.Area == "" && filter.MinRent == 0 && filter.MaxRent == 0 && !filter.OnlyAvailable && filter.Offset == 0
	cacheKey := fmt.Sprintf("properties:%s:%d", filter.City, filter.Limit)

	if cacheable {
		if cached, found := cps.cache.Get(cacheKey); found {
			if properties, ok := cached.([]models.Property); ok {
				return properties, nil
			}
		}
	}

	properties, err := cps.propertyService.GetProperties(ctx, filter)
	if err != nil {
		return nil, err
	}

	if cacheable {
		// Listing sets move slowly between scrape runs
		cps.cache.SetWithTTL(cacheKey, properties, 5*time.Minute)
	}

	return properties, nil
}

// GetPropertyByID returns a single property, using cache when possible
func (cps *CachedPropertyService) GetPropertyByID(ctx context.Context, id string) (*models.Property, error) {
	cacheKey := fmt.Sprintf("property:%s", id)

	if cached, found := cps.cache.Get(cacheKey); found {
		if property, ok := cached.(*models.Property); ok {
			return property, nil
		}
	}

	property, err := cps.propertyService.GetPropertyByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if property != nil {
		// Individual listings are fetched repeatedly from detail views
		cps.cache.SetWithTTL(cacheKey, property, 10*time.Minute)
	}

	return property, nil
}

// GetCities returns the city list, using cache when possible
func (cps *CachedPropertyService) GetCities(ctx context.Context) ([]string, error) {
	cacheKey := "filter_cities"

	if cached, found := cps.cache.Get(cacheKey); found {
		if cities, ok := cached.([]string); ok {
			return cities, nil
		}
	}

	cities, err := cps.marketService.GetCities(ctx)
	if err != nil {
		return nil, err
	}

	// The city set only changes when the scraper finds a new market
	cps.cache.SetWithTTL(cacheKey, cities, 30*time.Minute)

	return cities, nil
}

// GetAreas returns the area list for a city, using cache when possible
func (cps *CachedPropertyService) GetAreas(ctx context.Context, city string) ([]string, error) {
	cacheKey := fmt.Sprintf("filter_areas:%s", city)

	if cached, found := cps.cache.Get(cacheKey); found {
		if areas, ok := cached.([]string); ok {
			return areas, nil
		}
	}

	areas, err := cps.marketService.GetAreas(ctx, city)
	if err != nil {
		return nil, err
	}

	cps.cache.SetWithTTL(cacheKey, areas, 30*time.Minute)

	return areas, nil
}

// GetCityStats returns city statistics, using cache when possible
func (cps *CachedPropertyService) GetCityStats(ctx context.Context, city string) (*models.CityStats, error) {
	cacheKey := fmt.Sprintf("city_stats:%s", city)

	if cached, found := cps.cache.Get(cacheKey); found {
		if stats, ok := cached.(*models.CityStats); ok {
			return stats, nil
		}
	}

	stats, err := cps.marketService.GetCityStats(ctx, city)
	if err != nil {
		return nil, err
	}

	cps.cache.SetWithTTL(cacheKey, stats, 10*time.Minute)

	return stats, nil
}

// InvalidatePropertyCache removes property-related cache entries
func (cps *CachedPropertyService) InvalidatePropertyCache(propertyID string) {
	cps.cache.Delete(fmt.Sprintf("property:%s", propertyID))

	// List caches may contain the updated listing; drop them wholesale
	cps.cache.Clear()
}

// InvalidateAllCache drops every cached entry
func (cps *CachedPropertyService) InvalidateAllCache() {
	cps.cache.Clear()
}

// GetCacheStats returns cache statistics
func (cps *CachedPropertyService) GetCacheStats() map[string]interface{} {
	return map[string]interface{}{
		"size": cps.cache.Size(),
		"type": "in-memory",
	}
}

// WarmupCache pre-loads frequently accessed data into cache
func (cps *CachedPropertyService) WarmupCache(ctx context.Context) error {
	cities, err := cps.GetCities(ctx)
	if err != nil {
		return fmt.Errorf("failed to warmup city cache: %w", err)
	}

	if _, err := cps.GetProperties(ctx, PropertyFilter{Limit: 100}); err != nil {
		return fmt.Errorf("failed to warmup property cache: %w", err)
	}

	for _, city := range cities {
		if _, err := cps.GetCityStats(ctx, city); err != nil {
			return fmt.Errorf("failed to warmup stats cache for %s: %w", city, err)
		}
	}

	return nil
}
