package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly/v2"
	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/shared"
	"github.com/sirupsen/logrus"
)

// ListingScraperConfiguration holds configuration parameters for the listing scraper
type ListingScraperConfiguration struct {
	BaseURL            string        // Target listing site base URL
	HTTPRequestTimeout time.Duration // Maximum time to wait for HTTP responses
	RequestRateLimit   time.Duration // Minimum delay between consecutive requests
	MaxRetryAttempts   int           // Maximum number of retry attempts for failed requests
	SearchCities       []string      // Cities whose indexes are crawled each run
}

// NewDefaultListingScraperConfiguration returns production-ready default configuration
func NewDefaultListingScraperConfiguration() *ListingScraperConfiguration {
	return &ListingScraperConfiguration{
		BaseURL:            "https://www.spareroom.co.uk",
		HTTPRequestTimeout: 30 * time.Second,
		RequestRateLimit:   1 * time.Second,
		MaxRetryAttempts:   3,
		SearchCities:       []string{"Manchester", "Leeds", "Liverpool", "Sheffield", "Birmingham"},
	}
}

// ListingSummary is one search-index result pending a detail scrape
type ListingSummary struct {
	Title     string
	DetailURL string
	City      string
	SourceRef string
	RentText  string
}

// ListingScrapingService crawls an HMO listing site and normalizes results
// into property records. The index pages are static HTML fetched through
// colly; detail pages that render through JavaScript fall back to chromedp.
type ListingScrapingService struct {
	configuration     *ListingScraperConfiguration
	utilityService    *UtilityService
	rateLimiter       *shared.HTTPRequestRateLimiter
	clientFactory     *shared.HTTPClientFactory
	serviceMetrics    *shared.ServiceMetrics
	extractionMetrics *shared.ExtractionMetrics
	isolationHandler  *shared.ErrorIsolationHandler
}

// NewListingScrapingService creates a scraping service; nil config uses defaults
func NewListingScrapingService(configuration *ListingScraperConfiguration) *ListingScrapingService {
	if configuration == nil {
		configuration = NewDefaultListingScraperConfiguration()
	}

	return &ListingScrapingService{
		configuration:     configuration,
		utilityService:    NewUtilityService(),
		rateLimiter:       shared.NewHTTPRequestRateLimiter(configuration.RequestRateLimit),
		clientFactory:     shared.NewHTTPClientFactory(configuration.HTTPRequestTimeout),
		serviceMetrics:    shared.NewServiceMetrics("Listing_Scraper"),
		extractionMetrics: shared.NewExtractionMetrics(),
		isolationHandler:  shared.NewErrorIsolationHandler("Listing_Scraper", 0.5),
	}
}

// ExtractionMetrics exposes field-extraction counters for reporting
func (s *ListingScrapingService) ExtractionMetrics() *shared.ExtractionMetrics {
	return s.extractionMetrics
}

// RequestCount reports how many outbound requests the crawl has made
func (s *ListingScrapingService) RequestCount() int64 {
	return s.rateLimiter.GetRequestCount()
}

// Configuration returns the active scraper configuration
func (s *ListingScrapingService) Configuration() *ListingScraperConfiguration {
	return s.configuration
}

// FetchListingIndex crawls the search-index pages for a city and returns the
// listing summaries found there.
func (s *ListingScrapingService) FetchListingIndex(city string) ([]ListingSummary, error) {
	startTime := time.Now()

	logger := logrus.WithFields(logrus.Fields{
		"component": "ListingScrapingService",
		"method":    "FetchListingIndex",
		"city":      city,
	})

	searchURL := fmt.Sprintf("%s/flatshare/?search=%s&mode=list", s.configuration.BaseURL, url.QueryEscape(city))

	var summaries []ListingSummary
	var scrapeErr error

	c := colly.NewCollector()
	c.SetRequestTimeout(s.configuration.HTTPRequestTimeout)

	c.OnRequest(func(r *colly.Request) {
		s.rateLimiter.EnforceRateLimit()
		r.Headers.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		r.Headers.Set("Accept-Language", "en-GB,en;q=0.9")
		logger.WithField("url", r.URL.String()).Debug("Fetching listing index page")
	})

	c.OnHTML("article.listing-result, li.listing-result", func(e *colly.HTMLElement) {
		title := s.utilityService.CleanListingText(e.ChildText("h2, .listing-title"))
		href := e.ChildAttr("a[href]", "href")
		if title == "" || href == "" {
			return
		}

		summary := ListingSummary{
			Title:     title,
			DetailURL: e.Request.AbsoluteURL(href),
			City:      s.utilityService.NormalizeCityName(city),
			SourceRef: e.Attr("data-listing-id"),
			RentText:  s.utilityService.CleanListingText(e.ChildText(".listingPrice, .listing-price")),
		}

		summaries = append(summaries, summary)
	})

	c.OnError(func(r *colly.Response, err error) {
		scrapeErr = shared.NewServiceError(
			shared.ErrorCategoryNetwork,
			"INDEX_SCRAPE_FAILED",
			fmt.Sprintf("Failed to fetch listing index for %s", city),
			"Listing_Scraper",
			"FetchListingIndex",
			true,
			err,
		)
	})

	if err := c.Visit(searchURL); err != nil && scrapeErr == nil {
		scrapeErr = fmt.Errorf("failed to visit listing index: %w", err)
	}
	c.Wait()

	processingTime := time.Since(startTime)
	if s.serviceMetrics != nil {
		s.serviceMetrics.RecordRequest(scrapeErr == nil, processingTime)
	}

	if scrapeErr != nil {
		return nil, scrapeErr
	}

	logger.WithFields(logrus.Fields{
		"listings_found":  len(summaries),
		"processing_time": processingTime,
	}).Info("Fetched listing index")

	return summaries, nil
}

// ScrapeListingDetails fetches and parses one listing detail page into a
// property record. Pages without the expected markers are refetched through
// a headless browser before parsing.
func (s *ListingScrapingService) ScrapeListingDetails(summary ListingSummary) (*models.Property, error) {
	logger := logrus.WithFields(logrus.Fields{
		"component": "ListingScrapingService",
		"method":    "ScrapeListingDetails",
		"url":       summary.DetailURL,
	})

	doc, err := s.fetchDocument(summary.DetailURL)
	if err != nil {
		return nil, err
	}

	// JS-rendered pages ship an empty shell; retry through chromedp
	if doc.Find(".feature-list, .key-features, table").Length() == 0 {
		logger.Debug("Static fetch returned no detail markup, retrying with headless browser")
		doc, err = s.fetchRenderedDocument(summary.DetailURL)
		if err != nil {
			return nil, err
		}
	}

	parseStarted := time.Now()
	property := s.extractPropertyFromDocument(doc, summary)
	s.utilityService.RecordOperation("extract_property", property.RentPCM != nil, time.Since(parseStarted))

	logger.WithFields(logrus.Fields{
		"address": property.Address,
		"city":    property.City,
	}).Debug("Scraped listing details")

	return property, nil
}

// fetchDocument fetches a page over plain HTTP with retry and parses it
func (s *ListingScrapingService) fetchDocument(pageURL string) (*goquery.Document, error) {
	s.rateLimiter.EnforceRateLimit()

	client := s.clientFactory.CreateOptimizedHTTPClient(s.configuration.HTTPRequestTimeout)

	request, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build listing request: %w", err)
	}
	shared.SetBrowserLikeHeaders(request, "text/html,application/xhtml+xml")

	response, err := shared.ExecuteHTTPRequestWithRetry(client, request, s.configuration.MaxRetryAttempts)
	if err != nil {
		return nil, shared.NewScrapeError(
			shared.ErrorCategoryNetwork,
			"DETAIL_FETCH_FAILED",
			"Failed to fetch listing detail page",
			"ScrapeListingDetails",
			err,
		)
	}
	defer response.Body.Close()

	doc, err := goquery.NewDocumentFromReader(response.Body)
	if err != nil {
		return nil, shared.NewScrapeError(
			shared.ErrorCategoryExtraction,
			"DETAIL_PARSE_FAILED",
			"Failed to parse listing detail page",
			"ScrapeListingDetails",
			err,
		)
	}

	return doc, nil
}

// fetchRenderedDocument loads a page in headless Chrome and parses the
// rendered HTML.
func (s *ListingScrapingService) fetchRenderedDocument(pageURL string) (*goquery.Document, error) {
	s.rateLimiter.EnforceRateLimit()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, s.configuration.HTTPRequestTimeout)
	defer cancel()

	var renderedHTML string
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(1920, 1080),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &renderedHTML, chromedp.ByQuery),
	)
	if err != nil {
		wrappedError := shared.NewScrapeError(
			shared.ErrorCategoryNetwork,
			"CHROMEDP_SCRAPING_FAILED",
			"Failed to render listing page with chromedp",
			"ScrapeListingDetails",
			err,
		)
		wrappedError.LogError()
		return nil, wrappedError
	}

	return goquery.NewDocumentFromReader(strings.NewReader(renderedHTML))
}

// extractPropertyFromDocument maps a parsed listing page onto a property record
func (s *ListingScrapingService) extractPropertyFromDocument(doc *goquery.Document, summary ListingSummary) *models.Property {
	address := s.utilityService.CleanListingText(doc.Find(".listing-location, .property-address, h1 + .location").First().Text())
	if address == "" {
		address = summary.Title
	}

	property := &models.Property{
		ListingID: s.utilityService.GenerateListingKey("spareroom", summary.SourceRef, address),
		Address:   address,
		City:      summary.City,
		Source:    "spareroom",
		Status:    models.StatusAvailable,
	}

	if detailURL := summary.DetailURL; detailURL != "" {
		property.URL = &detailURL
	}

	property.Beds = s.utilityService.ExtractBedCount(summary.Title)

	if description := s.utilityService.CleanListingText(doc.Find(".detaildesc, .listing-description").First().Text()); description != "" {
		property.Description = &description
	}

	// Key-feature rows carry the structured fields; labels are matched
	// fuzzily so markup variants across listing templates still resolve
	rows := s.utilityService.ParseFeatureRows(doc)

	if row, ok := s.featureRow(rows, "available_from"); ok {
		property.AvailableFrom = s.utilityService.ParseDate(row.Value)
	}
	if row, ok := s.featureRow(rows, "bills_included"); ok {
		included := strings.Contains(strings.ToLower(row.Value), "yes") ||
			strings.Contains(strings.ToLower(row.Value), "included")
		property.BillsIncluded = &included
	}
	if row, ok := s.featureRow(rows, "ensuite"); ok {
		ensuite := strings.Contains(strings.ToLower(row.Value), "yes")
		property.Ensuite = &ensuite
	}
	if row, ok := s.featureRow(rows, "property_type"); ok {
		property.PropertyType = s.utilityService.NormalizeString(row.Value)
	}
	if row, ok := s.featureRow(rows, "area"); ok {
		property.Area = s.utilityService.NormalizeString(row.Value)
	}
	if row, ok := s.featureRow(rows, "beds"); ok {
		if beds := s.utilityService.ExtractBedCount(row.Value + " bed"); beds != nil {
			property.Beds = beds
		}
	}

	// Rent: detail page price block first, then the feature table, then the
	// index snippet
	rentText := s.utilityService.CleanListingText(doc.Find(".room-list__price, .listingPrice, .price").First().Text())
	property.RentPCM = s.utilityService.ExtractRentPCM(rentText)
	if property.RentPCM == nil {
		if row, ok := s.featureRow(rows, "rent"); ok {
			property.RentPCM = s.utilityService.ExtractRentPCM(row.Value)
		}
	}
	if property.RentPCM == nil {
		property.RentPCM = s.utilityService.ExtractRentPCM(summary.RentText)
	}
	s.extractionMetrics.RecordRentAttempt(property.RentPCM != nil)

	property.Postcode = s.utilityService.ExtractPostcode(address)
	if property.Postcode == nil {
		if row, ok := s.featureRow(rows, "postcode"); ok {
			property.Postcode = s.utilityService.ExtractPostcode(row.Value)
		}
	}
	s.extractionMetrics.RecordPostcodeAttempt(property.Postcode != nil)

	return property
}

// featureRow resolves one named field against the parsed feature rows
func (s *ListingScrapingService) featureRow(rows []TableRow, field string) (TableRow, bool) {
	return s.utilityService.FindTableRowByLabel(rows, s.utilityService.GetTargetLabelsForField(field))
}

// FetchAllListings crawls every configured city and returns the combined
// summaries. The daily update job drives this.
func (s *ListingScrapingService) FetchAllListings() ([]ListingSummary, error) {
	var combined []ListingSummary
	var failures []string

	for _, city := range s.configuration.SearchCities {
		// Per-city fetches run behind the circuit breaker so a broken site
		// stops the crawl early instead of hammering every city in turn
		result, err := s.isolationHandler.ExecuteWithCircuitBreaker("fetch_listing_index", func() (interface{}, error) {
			return s.FetchListingIndex(city)
		})
		if err != nil {
			logrus.WithError(err).WithField("city", city).Error("Listing index fetch failed")
			failures = append(failures, city)
			continue
		}
		combined = append(combined, result.([]ListingSummary)...)
	}

	if len(failures) == len(s.configuration.SearchCities) && len(failures) > 0 {
		return nil, fmt.Errorf("all listing index fetches failed: %s", strings.Join(failures, ", "))
	}

	return combined, nil
}
