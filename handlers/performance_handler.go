package handlers

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/propscan/hmo-backend/services"
)

type PerformanceHandler struct {
	DB                    *sql.DB
	PropertyService       *services.PropertyService
	CachedPropertyService *services.CachedPropertyService
	ScrapingService       *services.ListingScrapingService
	MarketService         *services.MarketService
}

func NewPerformanceHandler(db *sql.DB, propertyService *services.PropertyService, cachedPropertyService *services.CachedPropertyService, scrapingService *services.ListingScrapingService, marketService *services.MarketService) *PerformanceHandler {
	return &PerformanceHandler{
		DB:                    db,
		PropertyService:       propertyService,
		CachedPropertyService: cachedPropertyService,
		ScrapingService:       scrapingService,
		MarketService:         marketService,
	}
}

// GetPerformanceMetrics returns current performance metrics
func (h *PerformanceHandler) GetPerformanceMetrics(c *fiber.Ctx) error {
	ctx := context.Background()

	// Test query performance
	metrics := make(map[string]interface{})

	// Test 1: browse query performance
	start := time.Now()
	properties, err := h.PropertyService.GetProperties(ctx, services.PropertyFilter{Limit: 50})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to test GetProperties: " + err.Error(),
		})
	}
	metrics["get_properties"] = map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
		"count":       len(properties),
		"cached":      false,
	}

	// Test 2: cached query performance
	if h.CachedPropertyService != nil {
		start = time.Now()
		cachedProperties, err := h.CachedPropertyService.GetProperties(ctx, services.PropertyFilter{Limit: 50})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Failed to test cached GetProperties: " + err.Error(),
			})
		}
		metrics["get_properties_cached"] = map[string]interface{}{
			"duration_ms": time.Since(start).Milliseconds(),
			"count":       len(cachedProperties),
			"cached":      true,
		}

		// Cache statistics
		metrics["cache_stats"] = h.CachedPropertyService.GetCacheStats()
	}

	// Test 3: database connection pool stats
	dbStats := h.DB.Stats()
	metrics["database_stats"] = map[string]interface{}{
		"open_connections":     dbStats.OpenConnections,
		"in_use":               dbStats.InUse,
		"idle":                 dbStats.Idle,
		"wait_count":           dbStats.WaitCount,
		"wait_duration_ms":     dbStats.WaitDuration.Milliseconds(),
		"max_idle_closed":      dbStats.MaxIdleClosed,
		"max_idle_time_closed": dbStats.MaxIdleTimeClosed,
		"max_lifetime_closed":  dbStats.MaxLifetimeClosed,
	}

	// Test 4: scraper field extraction rates
	if h.ScrapingService != nil {
		extraction := h.ScrapingService.ExtractionMetrics()
		metrics["extraction_stats"] = map[string]interface{}{
			"rent_success_rate":     extraction.GetRentSuccessRate(),
			"postcode_success_rate": extraction.GetPostcodeSuccessRate(),
			"requests_made":         h.ScrapingService.RequestCount(),
		}
	}

	// Test 5: per-service operation counters
	metrics["property_service_stats"] = h.PropertyService.GetMetricsSnapshot()
	if h.MarketService != nil {
		metrics["market_service_stats"] = h.MarketService.GetMetricsSnapshot()
	}

	// Test 6: index usage statistics
	indexStats, err := h.getIndexUsageStats(ctx)
	if err != nil {
		metrics["index_stats_error"] = err.Error()
	} else {
		metrics["index_stats"] = indexStats
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    metrics,
	})
}

// RunPerformanceTest runs a comprehensive performance test
func (h *PerformanceHandler) RunPerformanceTest(c *fiber.Ctx) error {
	ctx := context.Background()

	results := make(map[string]interface{})

	// Start the run from clean extraction/utility counters
	h.PropertyService.UtilityService.ResetMetrics()

	// Test 1: query performance under load
	iterations := 10
	var totalDuration time.Duration

	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, err := h.PropertyService.GetProperties(ctx, services.PropertyFilter{Limit: 50})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Performance test failed: " + err.Error(),
			})
		}
		totalDuration += time.Since(start)
	}

	avgDuration := totalDuration / time.Duration(iterations)
	results["load_test"] = map[string]interface{}{
		"iterations":        iterations,
		"total_duration_ms": totalDuration.Milliseconds(),
		"avg_duration_ms":   avgDuration.Milliseconds(),
		"queries_per_sec":   float64(iterations) / totalDuration.Seconds(),
	}

	// Test 2: cache performance comparison
	if h.CachedPropertyService != nil {
		// Clear cache first
		h.CachedPropertyService.InvalidateAllCache()

		// Test uncached performance
		start := time.Now()
		_, err := h.CachedPropertyService.GetProperties(ctx, services.PropertyFilter{Limit: 50})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Cache test failed: " + err.Error(),
			})
		}
		uncachedDuration := time.Since(start)

		// Test cached performance
		start = time.Now()
		_, err = h.CachedPropertyService.GetProperties(ctx, services.PropertyFilter{Limit: 50})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Cache test failed: " + err.Error(),
			})
		}
		cachedDuration := time.Since(start)

		speedup := float64(uncachedDuration) / float64(cachedDuration)

		results["cache_performance"] = map[string]interface{}{
			"uncached_duration_ms": uncachedDuration.Milliseconds(),
			"cached_duration_ms":   cachedDuration.Milliseconds(),
			"speedup_factor":       speedup,
		}
	}

	// Test 3: query plan analysis
	queryPlans, err := h.analyzeQueryPlans(ctx)
	if err != nil {
		results["query_plan_error"] = err.Error()
	} else {
		results["query_plans"] = queryPlans
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    results,
	})
}

// ClearCache clears all cached data
func (h *PerformanceHandler) ClearCache(c *fiber.Ctx) error {
	if h.CachedPropertyService != nil {
		h.CachedPropertyService.InvalidateAllCache()
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Cache cleared successfully",
		})
	}

	return c.JSON(fiber.Map{
		"success": false,
		"message": "Cache service not available",
	})
}

// WarmupCache pre-loads frequently accessed data
func (h *PerformanceHandler) WarmupCache(c *fiber.Ctx) error {
	if h.CachedPropertyService != nil {
		ctx := context.Background()
		start := time.Now()

		err := h.CachedPropertyService.WarmupCache(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Cache warmup failed: " + err.Error(),
			})
		}

		duration := time.Since(start)

		return c.JSON(fiber.Map{
			"success":     true,
			"message":     "Cache warmed up successfully",
			"duration_ms": duration.Milliseconds(),
		})
	}

	return c.JSON(fiber.Map{
		"success": false,
		"message": "Cache service not available",
	})
}

// getIndexUsageStats retrieves database index usage statistics
func (h *PerformanceHandler) getIndexUsageStats(ctx context.Context) ([]map[string]interface{}, error) {
	query := `
		SELECT
			schemaname,
			relname as table_name,
			indexrelname as index_name,
			idx_scan as scans,
			idx_tup_read as tuples_read,
			idx_tup_fetch as tuples_fetched
		FROM pg_stat_user_indexes
		WHERE relname IN ('properties', 'rent_snapshots', 'availability_events')
		ORDER BY relname, idx_scan DESC
	`

	rows, err := h.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []map[string]interface{}

	for rows.Next() {
		var schema, table, index string
		var scans, tuplesRead, tuplesFetched int64

		if err := rows.Scan(&schema, &table, &index, &scans, &tuplesRead, &tuplesFetched); err != nil {
			return nil, err
		}

		stats = append(stats, map[string]interface{}{
			"schema":         schema,
			"table":          table,
			"index":          index,
			"scans":          scans,
			"tuples_read":    tuplesRead,
			"tuples_fetched": tuplesFetched,
		})
	}

	return stats, nil
}

// analyzeQueryPlans analyzes execution plans for key queries
func (h *PerformanceHandler) analyzeQueryPlans(ctx context.Context) (map[string][]string, error) {
	queries := map[string]string{
		"browse_properties": `
			EXPLAIN (FORMAT TEXT)
			SELECT *
			FROM properties
			WHERE city = 'Manchester' AND status = 'AVAILABLE'
			ORDER BY rent_pcm ASC
			LIMIT 50
		`,
		"price_trends": `
			EXPLAIN (FORMAT TEXT)
			SELECT rent_pcm, status, recorded_at
			FROM rent_snapshots
			WHERE property_id = '00000000-0000-0000-0000-000000000000'
			ORDER BY recorded_at ASC
		`,
	}

	plans := make(map[string][]string)

	for name, query := range queries {
		rows, err := h.DB.QueryContext(ctx, query)
		if err != nil {
			plans[name] = []string{"Error: " + err.Error()}
			continue
		}

		var planLines []string
		for rows.Next() {
			var line string
			if err := rows.Scan(&line); err != nil {
				rows.Close()
				return nil, err
			}
			planLines = append(planLines, line)
		}
		rows.Close()

		plans[name] = planLines
	}

	return plans, nil
}
