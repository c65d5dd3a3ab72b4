package tests

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	_ "github.com/lib/pq"
	"github.com/propscan/hmo-backend/config"
	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/services"
	"github.com/propscan/hmo-backend/shared"
	"github.com/xuri/excelize/v2"
)

// SimpleIntegrationTestSuite provides basic integration testing using only public interfaces
type SimpleIntegrationTestSuite struct {
	db              *sql.DB
	propertyService *services.PropertyService
	exportService   *services.ExportService
	utilityService  *services.UtilityService
}

// SetupSimpleIntegrationTestSuite initializes the simple integration test environment
func SetupSimpleIntegrationTestSuite(t *testing.T) *SimpleIntegrationTestSuite {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://localhost/hmo_backend_test?sslmode=disable"
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Skipping simple integration tests - database not available: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Skipf("Skipping simple integration tests - database ping failed: %v", err)
		return nil
	}

	propertyService := services.NewPropertyService(db)

	return &SimpleIntegrationTestSuite{
		db:              db,
		propertyService: propertyService,
		exportService:   services.NewExportService(propertyService),
		utilityService:  services.NewUtilityService(),
	}
}

// TeardownSimpleIntegrationTestSuite cleans up the simple integration test environment
func (suite *SimpleIntegrationTestSuite) TeardownSimpleIntegrationTestSuite() {
	if suite.db == nil {
		return
	}

	suite.db.Exec(`DELETE FROM rent_snapshots WHERE property_id IN (SELECT id FROM properties WHERE listing_id LIKE 'simple:%')`)
	suite.db.Exec(`DELETE FROM availability_events WHERE property_id IN (SELECT id FROM properties WHERE listing_id LIKE 'simple:%')`)
	suite.db.Exec(`DELETE FROM property_update_log WHERE property_id IN (SELECT id FROM properties WHERE listing_id LIKE 'simple:%')`)
	suite.db.Exec(`DELETE FROM properties WHERE listing_id LIKE 'simple:%'`)
	suite.db.Close()
}

// TestSimpleEndToEndDataFlowConsistency tests basic end-to-end data flow
// consistency from raw listing text through persistence and read back.
func TestSimpleEndToEndDataFlowConsistency(t *testing.T) {
	suite := SetupSimpleIntegrationTestSuite(t)
	if suite == nil {
		return
	}
	defer suite.TeardownSimpleIntegrationTestSuite()

	ctx := context.Background()
	counter := 0

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("Raw listing text flows through cleaning, persistence and read-back consistently", prop.ForAll(
		func(rawAddress string, rawCity string, rentText string) bool {
			// Step 1: clean the scraped text the way the scraper does
			address := suite.utilityService.CleanListingText(rawAddress)
			city := suite.utilityService.NormalizeCityName(rawCity)
			rent := suite.utilityService.ExtractRentPCM(rentText)

			// Unusable listings are rejected upstream; nothing to verify
			if address == "" || city == "" {
				return true
			}

			counter++
			listing := models.Property{
				ListingID: fmt.Sprintf("simple:flow-%d", counter),
				Address:   address,
				City:      city,
				RentPCM:   rent,
				Status:    models.StatusAvailable,
				Source:    "integration-test",
			}

			// Step 2: persist
			if err := suite.propertyService.UpsertProperty(ctx, listing); err != nil {
				t.Logf("upsert failed for address %q: %v", address, err)
				return false
			}

			// Step 3: read back and compare
			stored, err := suite.propertyService.GetPropertyByListingID(ctx, listing.ListingID)
			if err != nil || stored == nil {
				t.Logf("readback failed: %v", err)
				return false
			}

			if stored.Address != address {
				t.Logf("address changed across persistence: %q vs %q", stored.Address, address)
				return false
			}
			if stored.City != city {
				t.Logf("city changed across persistence: %q vs %q", stored.City, city)
				return false
			}
			if (stored.RentPCM == nil) != (rent == nil) {
				t.Logf("rent presence changed across persistence")
				return false
			}

			// Step 4: cleaning is idempotent over what was stored
			if suite.utilityService.CleanListingText(stored.Address) != stored.Address {
				t.Logf("stored address not a cleaning fixpoint: %q", stored.Address)
				return false
			}

			return true
		},
		gen.RegexMatch(`[a-zA-Z0-9 ,]{1,60}`),
		gen.RegexMatch(`[a-zA-Z ]{1,20}`),
		gen.OneConstOf("£650 pcm", "£120 pw", "ask agent", "550", ""),
	))

	properties.TestingRun(t)
}

// TestExportedWorkbookMatchesDatabase verifies the XLSX export against the
// rows it was generated from.
func TestExportedWorkbookMatchesDatabase(t *testing.T) {
	suite := SetupSimpleIntegrationTestSuite(t)
	if suite == nil {
		return
	}
	defer suite.TeardownSimpleIntegrationTestSuite()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rent := 500.0 + float64(i)*50
		listing := models.Property{
			ListingID: fmt.Sprintf("simple:export-%d", i),
			Address:   fmt.Sprintf("%d Export Lane, Exportham", i),
			City:      "Exportham",
			RentPCM:   &rent,
			Status:    models.StatusAvailable,
			Source:    "integration-test",
		}
		if err := suite.propertyService.UpsertProperty(ctx, listing); err != nil {
			t.Fatalf("seed upsert failed: %v", err)
		}
	}

	content, filename, err := suite.exportService.ExportProperties(ctx, services.PropertyFilter{City: "Exportham"})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.HasPrefix(filename, "hmo-listings-") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("unexpected export filename: %s", filename)
	}

	workbook, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("exported workbook is not readable: %v", err)
	}
	defer workbook.Close()

	rows, err := workbook.GetRows("Listings")
	if err != nil {
		t.Fatalf("failed to read Listings sheet: %v", err)
	}
	// Header row plus one row per listing
	if len(rows) != 4 {
		t.Errorf("expected 4 rows in export, got %d", len(rows))
	}
}

// TestServiceConfigurationDefaults checks the shared configuration surface
// the services are wired with.
func TestServiceConfigurationDefaults(t *testing.T) {
	scraperConfig := shared.NewListingScraperConfig()
	if scraperConfig.HTTPRequestTimeout <= 0 {
		t.Errorf("invalid scraper timeout: %v", scraperConfig.HTTPRequestTimeout)
	}
	if scraperConfig.BaseURL == "" {
		t.Error("expected a scraper base URL")
	}

	listingConfig := services.NewDefaultListingScraperConfiguration()
	if len(listingConfig.SearchCities) == 0 {
		t.Error("expected default search cities")
	}
	if listingConfig.RequestRateLimit <= 0 {
		t.Error("expected a politeness rate limit")
	}

	utilityService := services.NewUtilityService()
	if utilityService.GetServiceMetrics() == nil {
		t.Error("expected utility service metrics to be initialized")
	}

	// Politeness settings resolve to the gap the scraper is wired with:
	// 2 req/s plus a 500ms politeness delay is a 1s minimum gap
	rateLimit := config.DefaultRateLimitConfig()
	if rateLimit.MinimumRequestDelay() != time.Second {
		t.Errorf("expected 1s minimum request delay, got %v", rateLimit.MinimumRequestDelay())
	}
}
