package jobs

import (
	"context"
	"time"

	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/services"
	"github.com/sirupsen/logrus"
)

type DailyListingUpdateJob struct {
	ScrapingService *services.ListingScrapingService
	PropertyService *services.PropertyService
	UtilityService  *services.UtilityService
}

func NewDailyListingUpdateJob(scrapingService *services.ListingScrapingService, propertyService *services.PropertyService, utilityService *services.UtilityService) *DailyListingUpdateJob {
	return &DailyListingUpdateJob{
		ScrapingService: scrapingService,
		PropertyService: propertyService,
		UtilityService:  utilityService,
	}
}

func (j *DailyListingUpdateJob) Run() {
	logrus.Info("Starting Daily Listing Update Job")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	logrus.Info("Fetching listing indexes for configured cities...")
	summaries, err := j.ScrapingService.FetchAllListings()
	if err != nil {
		logrus.Errorf("Failed to run Daily Listing Update Job: failed to fetch listing indexes: %v", err)
		return
	}

	logrus.Infof("Fetched %d listings for processing", len(summaries))

	successCount := 0
	failureCount := 0
	partialSuccessCount := 0

	for i, summary := range summaries {
		logrus.WithFields(logrus.Fields{
			"listing_index":  i + 1,
			"total_listings": len(summaries),
			"title":          summary.Title,
		}).Infof("Processing listing %d/%d: %s", i+1, len(summaries), summary.Title)

		property, err := j.ScrapingService.ScrapeListingDetails(summary)
		if err != nil {
			logrus.Errorf("Failed to scrape details for %s: %v", summary.Title, err)
			failureCount++
			continue
		}

		completeness := j.analyzeDataCompleteness(property)
		j.logFieldPopulation(property, completeness)

		if err := j.PropertyService.UpsertProperty(ctx, *property); err != nil {
			logrus.Errorf("Failed to upsert listing %s: %v", summary.Title, err)
			failureCount++
			continue
		}

		if completeness.CriticalFieldsComplete {
			if completeness.OverallCompleteness >= 80.0 {
				successCount++
				logrus.Infof("Successfully saved listing %s with %.1f%% data completeness",
					property.Address, completeness.OverallCompleteness)
			} else {
				partialSuccessCount++
				logrus.Warnf("Partially saved listing %s with %.1f%% data completeness (missing optional fields)",
					property.Address, completeness.OverallCompleteness)
			}
		} else {
			partialSuccessCount++
			logrus.Warnf("Saved listing %s with incomplete critical data (%.1f%% completeness)",
				property.Address, completeness.OverallCompleteness)
		}

		// Be nice to the server with progressive delays
		if i < len(summaries)-1 {
			sleepDuration := 2 * time.Second
			if failureCount > successCount {
				sleepDuration = 5 * time.Second
			}
			time.Sleep(sleepDuration)
		}
	}

	totalProcessed := successCount + partialSuccessCount + failureCount
	if totalProcessed == 0 {
		logrus.Warn("Daily Listing Update Job completed with nothing to process")
		return
	}

	logrus.WithFields(logrus.Fields{
		"total_processed":      totalProcessed,
		"full_success":         successCount,
		"partial_success":      partialSuccessCount,
		"failures":             failureCount,
		"full_success_rate":    float64(successCount) / float64(totalProcessed) * 100,
		"overall_success_rate": float64(successCount+partialSuccessCount) / float64(totalProcessed) * 100,
	}).Infof("Daily Listing Update Job completed: %d full success, %d partial success, %d failed out of %d total (%.1f%% overall success rate)",
		successCount, partialSuccessCount, failureCount, totalProcessed,
		float64(successCount+partialSuccessCount)/float64(totalProcessed)*100)
}

// DataCompleteness represents the completeness analysis of a listing record
type DataCompleteness struct {
	TotalFields            int      `json:"total_fields"`
	PopulatedFields        int      `json:"populated_fields"`
	CriticalFields         int      `json:"critical_fields"`
	CriticalFieldsComplete bool     `json:"critical_fields_complete"`
	OverallCompleteness    float64  `json:"overall_completeness"`
	CriticalCompleteness   float64  `json:"critical_completeness"`
	MissingCriticalFields  []string `json:"missing_critical_fields"`
	MissingOptionalFields  []string `json:"missing_optional_fields"`
}

// analyzeDataCompleteness analyzes the completeness of scraped listing data
func (j *DailyListingUpdateJob) analyzeDataCompleteness(property *models.Property) DataCompleteness {
	// Critical fields drive browse, filter and market queries
	criticalFields := map[string]interface{}{
		"listing_id": property.ListingID,
		"address":    property.Address,
		"city":       property.City,
		"rent_pcm":   property.RentPCM,
	}

	allFields := map[string]interface{}{
		"listing_id":     property.ListingID,
		"address":        property.Address,
		"city":           property.City,
		"area":           property.Area,
		"postcode":       property.Postcode,
		"rent_pcm":       property.RentPCM,
		"beds":           property.Beds,
		"rooms_let":      property.RoomsLet,
		"property_type":  property.PropertyType,
		"bills_included": property.BillsIncluded,
		"ensuite":        property.Ensuite,
		"available_from": property.AvailableFrom,
		"url":            property.URL,
		"description":    property.Description,
	}

	populatedFields := 0
	criticalFieldsComplete := 0
	var missingCriticalFields []string
	var missingOptionalFields []string

	for fieldName, value := range criticalFields {
		if j.isFieldPopulated(value) {
			criticalFieldsComplete++
		} else {
			missingCriticalFields = append(missingCriticalFields, fieldName)
		}
	}

	for fieldName, value := range allFields {
		if j.isFieldPopulated(value) {
			populatedFields++
		} else {
			if _, isCritical := criticalFields[fieldName]; !isCritical {
				missingOptionalFields = append(missingOptionalFields, fieldName)
			}
		}
	}

	overallCompleteness := float64(populatedFields) / float64(len(allFields)) * 100
	criticalCompleteness := float64(criticalFieldsComplete) / float64(len(criticalFields)) * 100
	allCriticalComplete := criticalFieldsComplete == len(criticalFields)

	return DataCompleteness{
		TotalFields:            len(allFields),
		PopulatedFields:        populatedFields,
		CriticalFields:         len(criticalFields),
		CriticalFieldsComplete: allCriticalComplete,
		OverallCompleteness:    overallCompleteness,
		CriticalCompleteness:   criticalCompleteness,
		MissingCriticalFields:  missingCriticalFields,
		MissingOptionalFields:  missingOptionalFields,
	}
}

// isFieldPopulated checks if a field has meaningful data using utility service
func (j *DailyListingUpdateJob) isFieldPopulated(value interface{}) bool {
	switch v := value.(type) {
	case string:
		return v != "" && !j.UtilityService.IsNotAvailable(v)
	case *string:
		return v != nil && *v != "" && !j.UtilityService.IsNotAvailable(*v)
	case *int:
		return v != nil
	case *float64:
		return v != nil
	case *bool:
		return v != nil
	case *time.Time:
		return v != nil
	case []byte:
		return len(v) > 0
	case nil:
		return false
	default:
		return true // Assume populated for unknown types
	}
}

// logFieldPopulation logs field population status
func (j *DailyListingUpdateJob) logFieldPopulation(property *models.Property, completeness DataCompleteness) {
	logrus.WithFields(logrus.Fields{
		"address":               property.Address,
		"overall_completeness":  completeness.OverallCompleteness,
		"critical_completeness": completeness.CriticalCompleteness,
		"populated_fields":      completeness.PopulatedFields,
		"total_fields":          completeness.TotalFields,
		"critical_fields_ok":    completeness.CriticalFieldsComplete,
	}).Infof("Listing %s data analysis: %.1f%% complete",
		property.Address, completeness.OverallCompleteness)

	if len(completeness.MissingCriticalFields) > 0 {
		logrus.WithFields(logrus.Fields{
			"address":        property.Address,
			"missing_fields": completeness.MissingCriticalFields,
		}).Warnf("Listing %s missing critical fields: %v", property.Address, completeness.MissingCriticalFields)
	}

	if len(completeness.MissingOptionalFields) > 5 {
		logrus.WithFields(logrus.Fields{
			"address":        property.Address,
			"missing_count":  len(completeness.MissingOptionalFields),
			"missing_fields": completeness.MissingOptionalFields,
		}).Debugf("Listing %s missing %d optional fields", property.Address, len(completeness.MissingOptionalFields))
	}
}
