package tests

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	_ "github.com/lib/pq"
	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/services"
)

// IntegrationPropertyTestSuite provides property-based integration testing
type IntegrationPropertyTestSuite struct {
	db              *sql.DB
	propertyService *services.PropertyService
	dealService     *services.DealService
	utilityService  *services.UtilityService
}

// SetupIntegrationPropertyTestSuite initializes the property test environment
func SetupIntegrationPropertyTestSuite(t *testing.T) *IntegrationPropertyTestSuite {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		dbURL = "postgres://localhost/hmo_backend_test?sslmode=disable"
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Skipping integration property tests - database not available: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Skipf("Skipping integration property tests - database ping failed: %v", err)
		return nil
	}

	return &IntegrationPropertyTestSuite{
		db:              db,
		propertyService: services.NewPropertyService(db),
		dealService:     services.NewDealService(),
		utilityService:  services.NewUtilityService(),
	}
}

// TeardownIntegrationPropertyTestSuite cleans up the property test environment
func (suite *IntegrationPropertyTestSuite) TeardownIntegrationPropertyTestSuite() {
	if suite.db == nil {
		return
	}

	suite.db.Exec(`DELETE FROM rent_snapshots WHERE property_id IN (SELECT id FROM properties WHERE listing_id LIKE 'propgen:%')`)
	suite.db.Exec(`DELETE FROM availability_events WHERE property_id IN (SELECT id FROM properties WHERE listing_id LIKE 'propgen:%')`)
	suite.db.Exec(`DELETE FROM property_update_log WHERE property_id IN (SELECT id FROM properties WHERE listing_id LIKE 'propgen:%')`)
	suite.db.Exec(`DELETE FROM properties WHERE listing_id LIKE 'propgen:%'`)
	suite.db.Close()
}

// TestListingRoundTripProperties checks that arbitrary listing data survives
// the upsert and read paths unchanged.
func TestListingRoundTripProperties(t *testing.T) {
	suite := SetupIntegrationPropertyTestSuite(t)
	if suite == nil {
		return
	}
	defer suite.TeardownIntegrationPropertyTestSuite()

	ctx := context.Background()
	counter := 0

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("For any rent and bed count, a saved listing reads back identically", prop.ForAll(
		func(rent float64, beds int) bool {
			counter++
			rent = math.Round(rent*100) / 100

			listing := models.Property{
				ListingID: fmt.Sprintf("propgen:roundtrip-%d", counter),
				Address:   fmt.Sprintf("%d Generated Street, Roundtripton", counter),
				City:      "Roundtripton",
				RentPCM:   &rent,
				Beds:      &beds,
				Status:    models.StatusAvailable,
				Source:    "integration-test",
			}

			if err := suite.propertyService.UpsertProperty(ctx, listing); err != nil {
				t.Logf("upsert failed for rent=%f beds=%d: %v", rent, beds, err)
				return false
			}

			stored, err := suite.propertyService.GetPropertyByListingID(ctx, listing.ListingID)
			if err != nil || stored == nil {
				t.Logf("readback failed: %v", err)
				return false
			}

			if stored.RentPCM == nil || math.Abs(*stored.RentPCM-rent) > 0.01 {
				t.Logf("rent did not survive round trip: %v vs %f", stored.RentPCM, rent)
				return false
			}
			if stored.Beds == nil || *stored.Beds != beds {
				t.Logf("beds did not survive round trip: %v vs %d", stored.Beds, beds)
				return false
			}
			return true
		},
		gen.Float64Range(1, 5000),
		gen.IntRange(1, 12),
	))

	properties.Property("Upsert is idempotent for identical payloads", prop.ForAll(
		func(rent float64) bool {
			counter++
			rent = math.Round(rent*100) / 100

			listing := models.Property{
				ListingID: fmt.Sprintf("propgen:idem-%d", counter),
				Address:   fmt.Sprintf("%d Idempotent Road, Roundtripton", counter),
				City:      "Roundtripton",
				RentPCM:   &rent,
				Status:    models.StatusAvailable,
				Source:    "integration-test",
			}

			if err := suite.propertyService.UpsertProperty(ctx, listing); err != nil {
				return false
			}
			if err := suite.propertyService.UpsertProperty(ctx, listing); err != nil {
				return false
			}

			// The same payload twice must not create duplicate rows
			var count int
			if err := suite.db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM properties WHERE listing_id = $1`, listing.ListingID).Scan(&count); err != nil {
				return false
			}
			return count == 1
		},
		gen.Float64Range(1, 5000),
	))

	properties.TestingRun(t)
}

// TestCrossServiceConsistencyProperties checks that text processing behaves
// consistently wherever it is reached from.
func TestCrossServiceConsistencyProperties(t *testing.T) {
	suite := SetupIntegrationPropertyTestSuite(t)
	if suite == nil {
		return
	}
	defer suite.TeardownIntegrationPropertyTestSuite()

	properties := gopter.NewProperties(nil)

	properties.Property("Text normalization agrees between the shared and service-owned instances", prop.ForAll(
		func(text string) bool {
			direct := suite.utilityService.NormalizeTextContent(text)
			viaProperty := suite.propertyService.UtilityService.NormalizeTextContent(text)
			return direct == viaProperty
		},
		gen.AnyString(),
	))

	properties.Property("City normalization is stable and title-cased", prop.ForAll(
		func(city string) bool {
			normalized := suite.utilityService.NormalizeCityName(city)
			if normalized != suite.utilityService.NormalizeCityName(normalized) {
				return false
			}
			for _, word := range strings.Fields(normalized) {
				first := rune(word[0])
				if first >= 'a' && first <= 'z' {
					return false
				}
			}
			return true
		},
		gen.RegexMatch(`[a-zA-Z ]{1,30}`),
	))

	properties.Property("Listing keys are stable for the same source data", prop.ForAll(
		func(source, ref, address string) bool {
			first := suite.utilityService.GenerateListingKey(source, ref, address)
			second := suite.utilityService.GenerateListingKey(source, ref, address)
			return first == second
		},
		gen.RegexMatch(`[a-zA-Z]{1,10}`),
		gen.RegexMatch(`[a-zA-Z0-9]{0,10}`),
		gen.RegexMatch(`[a-zA-Z0-9 ]{1,40}`),
	))

	properties.TestingRun(t)
}

// TestDealDerivationAgainstStoredRents checks the calculator's rent seeding
// path against figures actually persisted to the database.
func TestDealDerivationAgainstStoredRents(t *testing.T) {
	suite := SetupIntegrationPropertyTestSuite(t)
	if suite == nil {
		return
	}
	defer suite.TeardownIntegrationPropertyTestSuite()

	ctx := context.Background()
	marketService := services.NewMarketService(suite.db)

	for i, rent := range []float64{520, 580, 640} {
		listing := models.Property{
			ListingID: fmt.Sprintf("propgen:seed-%d", i),
			Address:   fmt.Sprintf("%d Seed Street, Seedham", i),
			City:      "Seedham",
			RentPCM:   &rent,
			Status:    models.StatusAvailable,
			Source:    "integration-test",
		}
		if err := suite.propertyService.UpsertProperty(ctx, listing); err != nil {
			t.Fatalf("seed upsert failed: %v", err)
		}
	}

	avgRent, err := marketService.GetAverageRentPerRoom(ctx, "Seedham")
	if err != nil {
		t.Fatalf("average rent lookup failed: %v", err)
	}
	if math.Abs(avgRent-580) > 1 {
		t.Fatalf("expected average rent near 580, got %f", avgRent)
	}

	results := suite.dealService.DeriveQuickDeal(models.QuickDealInputs{
		City:          "Seedham",
		PurchasePrice: 200000,
		Rooms:         4,
		InterestRate:  5,
		MortgageType:  models.MortgageInterestOnly,
		LTV:           75,
	}, avgRent)

	if math.Abs(results.SeededRentPerRoom-avgRent) > 0.01 {
		t.Errorf("expected seeded rent %f, got %f", avgRent, results.SeededRentPerRoom)
	}
	if math.Abs(results.GrossIncomePCM-avgRent*4) > 0.01 {
		t.Errorf("expected gross income %f, got %f", avgRent*4, results.GrossIncomePCM)
	}
}
