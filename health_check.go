//go:build ignore

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/propscan/hmo-backend/config"
	"github.com/propscan/hmo-backend/database"
	"github.com/propscan/hmo-backend/services"
)

func main() {
	fmt.Printf("🏥 HMO Backend Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	// Quick tests
	healthScore := 0
	totalTests := 4

	// Test 1: Listing site
	fmt.Print("📡 Listing Site: ")
	scraper := services.NewListingScrapingService(services.NewDefaultListingScraperConfiguration())
	if summaries, err := scraper.FetchListingIndex("Manchester"); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		fmt.Printf("✅ OK (%d listings)\n", len(summaries))
		healthScore++
	}

	// Test 2: Database
	fmt.Print("🗄️  Database: ")
	cfg := config.LoadConfig()
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		fmt.Println("✅ OK")
		healthScore++
		database.Close()
	}

	// Test 3: Database data
	fmt.Print("📊 Database Data: ")
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		propertyService := services.NewPropertyService(database.DB)
		ctx := context.Background()
		if properties, err := propertyService.GetProperties(ctx, services.PropertyFilter{Limit: 10}); err != nil {
			fmt.Printf("❌ FAILED (%v)\n", err)
		} else {
			fmt.Printf("✅ OK (%d listings)\n", len(properties))
			healthScore++
		}
		database.Close()
	}

	// Test 4: Market stats
	fmt.Print("📈 Market Stats: ")
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		marketService := services.NewMarketService(database.DB)
		ctx := context.Background()
		if cities, err := marketService.GetCities(ctx); err != nil {
			fmt.Printf("❌ FAILED (%v)\n", err)
		} else {
			fmt.Printf("✅ OK (%d cities)\n", len(cities))
			healthScore++
		}
		database.Close()
	}

	// Overall health
	fmt.Println(strings.Repeat("-", 50))
	healthPercent := float64(healthScore) / float64(totalTests) * 100

	if healthScore == totalTests {
		fmt.Printf("🎉 SYSTEM HEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else if healthScore >= totalTests/2 {
		fmt.Printf("⚠️  SYSTEM DEGRADED: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else {
		fmt.Printf("❌ SYSTEM UNHEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	}

	fmt.Printf("⏰ Check completed at: %s\n", time.Now().Format("15:04:05"))
}
