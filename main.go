package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/propscan/hmo-backend/config"
	"github.com/propscan/hmo-backend/database"
	"github.com/propscan/hmo-backend/handlers"
	"github.com/propscan/hmo-backend/jobs"
	"github.com/propscan/hmo-backend/services"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	// Connect to database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate("database/schema.sql"); err != nil {
		log.Printf("Migration warning: %v", err)
	}

	// Validate schema and create any missing indexes
	if err := database.ValidateAndOptimizeSchema(); err != nil {
		log.Printf("Schema validation warning: %v", err)
	}

	cacheConfig := config.DefaultCacheConfig()

	// Scraper configuration, with city list overridable from environment
	scraperConfig := services.NewDefaultListingScraperConfiguration()
	scraperConfig.RequestRateLimit = config.DefaultRateLimitConfig().MinimumRequestDelay()
	if cfg.ScraperBaseURL != "" {
		scraperConfig.BaseURL = cfg.ScraperBaseURL
	}
	if cfg.ScraperCities != "" {
		var cities []string
		for _, city := range strings.Split(cfg.ScraperCities, ",") {
			if trimmed := strings.TrimSpace(city); trimmed != "" {
				cities = append(cities, trimmed)
			}
		}
		if len(cities) > 0 {
			scraperConfig.SearchCities = cities
		}
	}

	// Core services
	propertyService := services.NewPropertyService(database.DB)
	marketService := services.NewMarketService(database.DB)
	scrapingService := services.NewListingScrapingService(scraperConfig)
	analysisService := services.NewAnalysisService(scrapingService, propertyService)
	dealService := services.NewDealService()
	exportService := services.NewExportService(propertyService)

	// Calculator state persists to Redis when configured, in-process otherwise
	var stateStore services.StateStore
	if cfg.RedisAddr != "" {
		redisStore := services.NewRedisStateStore(cfg.RedisAddr, cfg.RedisPassword)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			log.Printf("Redis unavailable (%v), falling back to in-memory calculator state", err)
			stateStore = services.NewMemoryStateStore()
		} else {
			log.Printf("Calculator state persisting to Redis at %s", cfg.RedisAddr)
			stateStore = redisStore
		}
		cancel()
	} else {
		stateStore = services.NewMemoryStateStore()
	}
	stateService := services.NewCalcStateServiceWithWindow(stateStore, cfg.GetStateTTL())

	// Read-through caching layer
	cacheService := services.NewCacheServiceWithConfig(cacheConfig.DefaultTTL, cacheConfig.MaxSize)
	cachedPropertyService := services.NewCachedPropertyService(propertyService, marketService, cacheService)

	utilityService := services.NewUtilityService()

	log.Println("HMO backend services initialized:")
	log.Printf("  - Listing scraper (base URL: %s, cities: %v)",
		scraperConfig.BaseURL, scraperConfig.SearchCities)
	log.Printf("  - Calculator state (TTL: %v)", cfg.GetStateTTL())
	log.Printf("  - Read cache (TTL: %v, max size: %d)",
		cacheConfig.DefaultTTL, cacheConfig.MaxSize)
	log.Printf("  - Stale letting threshold: %v", cfg.GetStaleLettingThreshold())

	// Background jobs
	dailyJob := jobs.NewDailyListingUpdateJob(scrapingService, propertyService, utilityService)
	snapshotJob := jobs.NewRentSnapshotJob(propertyService)
	availabilityJob := jobs.NewAvailabilityCheckJob(propertyService, cfg.GetStaleLettingThreshold())
	warmupJob := jobs.NewCacheWarmupJob(cachedPropertyService)

	// Handlers
	propertyHandler := handlers.NewPropertyHandler(propertyService, cachedPropertyService, exportService)
	filterHandler := handlers.NewFilterHandler(cachedPropertyService)
	marketHandler := handlers.NewMarketHandler(marketService, cachedPropertyService)
	calculatorHandler := handlers.NewCalculatorHandler(dealService, stateService, marketService, utilityService)
	analysisHandler := handlers.NewAnalysisHandler(analysisService)
	adminHandler := handlers.NewAdminHandler(propertyService, dailyJob)
	performanceHandler := handlers.NewPerformanceHandler(database.DB, propertyService, cachedPropertyService, scrapingService, marketService)

	// Warmup cache on startup
	go func() {
		time.Sleep(2 * time.Second) // Wait for database to be ready
		if err := cachedPropertyService.WarmupCache(context.Background()); err != nil {
			log.Printf("Cache warmup failed: %v", err)
		} else {
			log.Println("Cache warmed up successfully")
		}
	}()

	// Start background jobs
	go func() {
		// Run immediately on startup
		go dailyJob.Run()

		dailyTicker := time.NewTicker(8 * time.Hour)
		snapshotTicker := time.NewTicker(24 * time.Hour)
		availabilityTicker := time.NewTicker(6 * time.Hour)
		warmupTicker := time.NewTicker(12 * time.Hour)

		for {
			select {
			case <-dailyTicker.C:
				dailyJob.Run()
			case <-snapshotTicker.C:
				snapshotJob.Run()
			case <-availabilityTicker.C:
				availabilityJob.Run()
			case <-warmupTicker.C:
				warmupJob.Run()
			}
		}
	}()

	// Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := database.HealthCheck(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":    "degraded",
				"error":     err.Error(),
				"timestamp": time.Now().Unix(),
			})
		}
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// Routes
	api := app.Group("/api")

	// Property Routes
	api.Get("/properties", propertyHandler.GetProperties)
	api.Get("/properties/export", propertyHandler.ExportProperties)
	api.Get("/properties/:id/price-trends", propertyHandler.GetPriceTrends)
	api.Get("/properties/:id/analytics", propertyHandler.GetPropertyAnalytics)
	api.Get("/properties/:id/trends", propertyHandler.GetTrends)
	api.Get("/properties/:id/availability-timeline", propertyHandler.GetAvailabilityTimeline)
	api.Get("/properties/:id", propertyHandler.GetPropertyByID)
	api.Post("/properties/update", analysisHandler.StartRefresh)

	// Filter Routes
	api.Get("/filters/cities", filterHandler.GetCities)
	api.Get("/filters/areas/:city", filterHandler.GetAreas)

	// Market Routes
	api.Get("/cities/:city/stats", marketHandler.GetCityStats)
	api.Get("/cities/:city/market-timing", marketHandler.GetMarketTiming)
	api.Get("/cities/:city/velocity-metrics", marketHandler.GetVelocityMetrics)

	// Analysis Routes
	api.Get("/analysis/:task_id", analysisHandler.GetTask)

	// Calculator Routes
	api.Post("/calculator/brrr", calculatorHandler.DeriveBRRR)
	api.Put("/calculator/brrr/state", calculatorHandler.SaveBRRRState)
	api.Get("/calculator/brrr/state", calculatorHandler.LoadBRRRState)
	api.Post("/calculator/deal", calculatorHandler.DeriveQuickDeal)

	// Admin Routes
	admin := api.Group("/admin")
	admin.Use(adminAuth(cfg.AdminToken))
	admin.Post("/properties", adminHandler.CreateProperty)
	admin.Post("/refresh", adminHandler.TriggerRefresh)
	admin.Get("/updates", adminHandler.GetRecentUpdates)

	// Performance Routes
	perf := api.Group("/performance")
	perf.Get("/metrics", performanceHandler.GetPerformanceMetrics)
	perf.Post("/test", performanceHandler.RunPerformanceTest)
	perf.Delete("/cache", performanceHandler.ClearCache)
	perf.Post("/cache/warmup", performanceHandler.WarmupCache)

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// adminAuth guards admin routes with a shared token. An empty configured
// token disables the admin surface entirely.
func adminAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" || c.Get("X-Admin-Token") != token {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Unauthorized",
			})
		}
		return c.Next()
	}
}
