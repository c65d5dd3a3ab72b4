package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/propscan/hmo-backend/shared"
	"github.com/sirupsen/logrus"
)

// UtilityService provides text processing, normalization, and listing parsing utilities
type UtilityService struct {
	serviceMetrics *shared.ServiceMetrics
}

// NewUtilityService creates a new utility service instance
func NewUtilityService() *UtilityService {
	return &UtilityService{
		serviceMetrics: shared.NewServiceMetrics("Utility_Service"),
	}
}

// NormalizeTextContent cleans and standardizes text content for consistent processing
func (s *UtilityService) NormalizeTextContent(text string) string {
	if text == "" {
		return ""
	}

	text = strings.TrimSpace(text)

	// Normalize multiple whitespace characters to single spaces
	whitespaceRegex := regexp.MustCompile(`\s+`)
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// CleanListingText normalizes extracted listing text content
func (s *UtilityService) CleanListingText(text string) string {
	if text == "" {
		return ""
	}

	// Remove HTML tags if any remain
	htmlTagRegex := regexp.MustCompile(`<[^>]*>`)
	text = htmlTagRegex.ReplaceAllString(text, "")

	// Normalize whitespace
	whitespaceRegex := regexp.MustCompile(`\s+`)
	text = whitespaceRegex.ReplaceAllString(text, " ")

	text = strings.TrimSpace(text)

	// Handle UTF-8 encoding issues by removing non-printable characters
	printableRegex := regexp.MustCompile(`[^\x20-\x7E\p{L}\p{N}\p{P}\p{S}]`)
	text = printableRegex.ReplaceAllString(text, "")

	return text
}

// ParseDate parses dates with multiple format support.
// Listing sites mix "2 Jan 2026", "02/01/2026" and ISO dates freely.
func (s *UtilityService) ParseDate(dateStr string) *time.Time {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return nil
	}

	if s.IsNotAvailable(dateStr) {
		return nil
	}

	formats := []string{
		"2 Jan 2006",
		"02 Jan 2006",
		"2 January 2006",
		"02 January 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"Mon, Jan 2, 2006",
		"Monday, January 2, 2006",
		"02/01/2006",
		"2/1/2006",
		"02-01-2006",
		"2006-01-02",
		"02-Jan-06",
		"2-Jan-06",
	}

	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			return &t
		}
	}

	// "Available now" and similar phrases mean today
	lower := strings.ToLower(dateStr)
	if strings.Contains(lower, "now") || strings.Contains(lower, "immediately") || strings.Contains(lower, "today") {
		now := time.Now().Truncate(24 * time.Hour)
		return &now
	}

	return nil
}

// ExtractNumeric extracts numeric value from text with currency symbols and formatting.
// Handles currency symbols (£, $, €), commas, and other formatting characters.
func (s *UtilityService) ExtractNumeric(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	// Remove currency symbols
	reg := regexp.MustCompile(`[£$€¥]`)
	text = reg.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, ",", "")
	text = strings.ReplaceAll(text, " ", "")

	// Extract first numeric value (including decimals)
	reg = regexp.MustCompile(`-?\d+\.?\d*`)
	match := reg.FindString(text)
	if match == "" {
		return 0
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}

	return value
}

// ParseNumericField parses a user-supplied numeric field with silent coercion:
// invalid or empty input yields 0 and defaulted=true, never an error. The
// defaulted flag makes the coercion visible to callers and tests.
func (s *UtilityService) ParseNumericField(text string) (value float64, defaulted bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, true
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil {
		return 0, true
	}

	return value, false
}

// ExtractRentPCM extracts a monthly rent figure from listing text.
// Weekly rents ("£120 pw") are converted to calendar-month terms (x52/12).
// Returns nil when no usable figure is present.
func (s *UtilityService) ExtractRentPCM(text string) *float64 {
	if text == "" || s.IsNotAvailable(text) {
		return nil
	}

	amount := s.ExtractNumeric(text)
	if amount <= 0 {
		return nil
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "pw") || strings.Contains(lower, "per week") || strings.Contains(lower, "/week") {
		amount = amount * 52 / 12
	}

	// Round to pence
	amount = math.Round(amount*100) / 100
	return &amount
}

// ExtractPostcode extracts a UK postcode (full or outward code) from text.
func (s *UtilityService) ExtractPostcode(text string) *string {
	if text == "" {
		return nil
	}

	// Full postcode first, outward code as fallback
	fullRegex := regexp.MustCompile(`(?i)\b([A-Z]{1,2}\d[A-Z\d]?)\s*(\d[A-Z]{2})\b`)
	if match := fullRegex.FindStringSubmatch(text); len(match) == 3 {
		postcode := strings.ToUpper(match[1]) + " " + strings.ToUpper(match[2])
		return &postcode
	}

	outwardRegex := regexp.MustCompile(`(?i)\b([A-Z]{1,2}\d[A-Z\d]?)\b`)
	if match := outwardRegex.FindString(text); match != "" {
		postcode := strings.ToUpper(match)
		return &postcode
	}

	return nil
}

// ExtractBedCount extracts a bedroom count from listing text like "4 bed HMO"
// or "6 bedroom house share". Returns nil when no count is present.
func (s *UtilityService) ExtractBedCount(text string) *int {
	if text == "" {
		return nil
	}

	reg := regexp.MustCompile(`(?i)(\d+)\s*(?:bed|bedroom|room)`)
	match := reg.FindStringSubmatch(text)
	if len(match) < 2 {
		return nil
	}

	count, err := strconv.Atoi(match[1])
	if err != nil || count <= 0 {
		return nil
	}

	return &count
}

// NormalizeCityName normalizes a city name for aggregation and lookups
func (s *UtilityService) NormalizeCityName(city string) string {
	city = s.NormalizeTextContent(city)
	if city == "" {
		return ""
	}

	// Title-case each word, lower the rest
	words := strings.Fields(strings.ToLower(city))
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}

	return strings.Join(words, " ")
}

// NormalizeString normalizes empty strings to nil
func (s *UtilityService) NormalizeString(str string) *string {
	str = strings.TrimSpace(str)
	if str == "" {
		return nil
	}
	return &str
}

// IsNotAvailable checks if a value indicates "not available"
func (s *UtilityService) IsNotAvailable(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))

	notAvailableValues := []string{
		"tba",
		"tbd",
		"n/a",
		"na",
		"not available",
		"not applicable",
		"not disclosed",
		"poa",
		"price on application",
		"ask agent",
		"contact agent",
		"--",
		"-",
		"",
		"nil",
		"null",
	}

	for _, na := range notAvailableValues {
		if text == na {
			return true
		}
	}

	return false
}

// GenerateListingKey builds a stable listing identifier from source and source
// reference, falling back to a slug of the address when no reference exists.
func (s *UtilityService) GenerateListingKey(source, sourceRef, address string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	sourceRef = strings.TrimSpace(sourceRef)

	if sourceRef != "" {
		return fmt.Sprintf("%s:%s", source, sourceRef)
	}

	return fmt.Sprintf("%s:%s", source, s.GenerateSlug(address))
}

// TableRow represents a parsed table row with label and value
type TableRow struct {
	Index      int     // Row index in the table
	Label      string  // The row label (first column)
	Value      string  // The row value (second column)
	Confidence float64 // Confidence score for the match
}

// ParseFeatureRows parses the key-feature rows of a listing page into
// label/value pairs with confidence scores. Feature lists and plain tables
// share one shape: a label cell followed by a value cell.
func (s *UtilityService) ParseFeatureRows(doc *goquery.Document) []TableRow {
	var rows []TableRow

	doc.Find(".feature-list li, .key-features li, table tr").Each(func(index int, row *goquery.Selection) {
		label := s.extractCellValue(row.Find("dt, th, .feature-list__key").First())
		value := s.extractCellValue(row.Find("dd, .feature-list__value").First())

		// th/td rows carry the value in the first td; td-only rows carry
		// the label there too
		if label != "" && value == "" {
			value = s.extractCellValue(row.Find("td").First())
		}
		if label == "" {
			cells := row.Find("td")
			if cells.Length() >= 2 {
				label = s.extractCellValue(cells.First())
				value = s.extractCellValue(cells.Eq(1))
			}
		}

		if label == "" || value == "" {
			return
		}

		confidence := s.calculateLabelConfidence(label)

		rows = append(rows, TableRow{
			Index:      index,
			Label:      label,
			Value:      value,
			Confidence: confidence,
		})
		logrus.Debugf("Parsed listing feature row: %s -> %s (confidence: %.2f)", label, value, confidence)
	})

	return rows
}

// FindTableRowByLabel finds a table row by matching the label with fuzzy matching
func (s *UtilityService) FindTableRowByLabel(rows []TableRow, targetLabels []string) (TableRow, bool) {
	var bestMatch TableRow
	var bestScore float64 = 0.0
	var found bool = false

	for _, row := range rows {
		normalizedRowLabel := s.normalizeLabel(row.Label)

		for _, targetLabel := range targetLabels {
			normalizedTargetLabel := s.normalizeLabel(targetLabel)
			score := s.calculateMatchScore(normalizedRowLabel, normalizedTargetLabel)

			combinedScore := score * row.Confidence

			if combinedScore > bestScore {
				bestScore = combinedScore
				bestMatch = row
				found = true
			}
		}
	}

	// Only return matches with reasonable confidence
	if bestScore < 0.3 {
		return TableRow{}, false
	}

	logrus.Debugf("Best label match: '%s' with score %.2f", bestMatch.Label, bestScore)
	return bestMatch, found
}

// GetTargetLabelsForField returns possible label variations for a given field
func (s *UtilityService) GetTargetLabelsForField(fieldName string) []string {
	labelMap := map[string][]string{
		"rent": {
			"rent", "rent pcm", "monthly rent", "price", "price pcm",
			"room price", "from", "rooms from",
		},
		"deposit": {
			"deposit", "security deposit", "holding deposit",
		},
		"available_from": {
			"available", "available from", "availability", "move in date",
			"earliest move in",
		},
		"beds": {
			"bedrooms", "beds", "rooms", "total rooms", "room count",
			"rooms in property",
		},
		"bills_included": {
			"bills included", "bills", "bills inc", "utilities included",
		},
		"property_type": {
			"property type", "type", "accommodation type",
		},
		"postcode": {
			"postcode", "post code",
		},
		"area": {
			"area", "location", "district", "neighbourhood",
		},
		"ensuite": {
			"ensuite", "en suite", "en-suite", "private bathroom",
		},
	}

	if labels, exists := labelMap[fieldName]; exists {
		return labels
	}

	return []string{fieldName}
}

// extractCellValue extracts text content from a table cell
func (s *UtilityService) extractCellValue(cell *goquery.Selection) string {
	text := strings.TrimSpace(cell.Text())

	// If the cell is empty, try to get content from nested elements
	if text == "" {
		cell.Find("span, div, p, a").EachWithBreak(func(_ int, nested *goquery.Selection) bool {
			text = strings.TrimSpace(nested.Text())
			return text == ""
		})
	}

	return s.cleanCellText(text)
}

// normalizeLabel normalizes a label for matching
func (s *UtilityService) normalizeLabel(label string) string {
	normalized := strings.ToLower(label)

	normalized = strings.ReplaceAll(normalized, ":", "")
	normalized = strings.ReplaceAll(normalized, ".", "")
	normalized = strings.ReplaceAll(normalized, ",", "")
	normalized = strings.ReplaceAll(normalized, "(", "")
	normalized = strings.ReplaceAll(normalized, ")", "")
	normalized = strings.ReplaceAll(normalized, "-", " ")
	normalized = strings.ReplaceAll(normalized, "_", " ")

	normalized = strings.Join(strings.Fields(normalized), " ")

	return strings.TrimSpace(normalized)
}

// calculateMatchScore calculates similarity score between two normalized labels
func (s *UtilityService) calculateMatchScore(label1, label2 string) float64 {
	if label1 == label2 {
		return 1.0
	}

	if strings.Contains(label1, label2) || strings.Contains(label2, label1) {
		return 0.8
	}

	words1 := strings.Fields(label1)
	words2 := strings.Fields(label2)

	if len(words1) == 0 || len(words2) == 0 {
		return 0.0
	}

	matchingWords := 0
	for _, word1 := range words1 {
		for _, word2 := range words2 {
			if word1 == word2 {
				matchingWords++
				break
			}
		}
	}

	// Jaccard similarity (intersection / union)
	totalWords := len(words1) + len(words2) - matchingWords
	if totalWords == 0 {
		return 0.0
	}

	score := float64(matchingWords) / float64(totalWords)

	if matchingWords > 0 {
		score = math.Max(score, 0.4)
	}

	return score
}

// calculateLabelConfidence calculates confidence score for a label
func (s *UtilityService) calculateLabelConfidence(label string) float64 {
	if label == "" {
		return 0.0
	}

	confidence := 0.5

	normalizedLabel := s.normalizeLabel(label)

	// Common listing field indicators
	listingKeywords := []string{
		"rent", "price", "deposit", "available", "room", "bed", "bills",
		"type", "postcode", "location", "ensuite", "furnished", "tenancy",
	}

	for _, keyword := range listingKeywords {
		if strings.Contains(normalizedLabel, keyword) {
			confidence += 0.2
			break
		}
	}

	// Labels with colons are common in data tables
	if strings.Contains(label, ":") {
		confidence += 0.1
	}

	if len(normalizedLabel) < 3 {
		confidence -= 0.2
	}

	if s.IsNotAvailable(label) {
		confidence -= 0.3
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0.0 {
		confidence = 0.0
	}

	return confidence
}

// cleanCellText cleans up extracted cell text
func (s *UtilityService) cleanCellText(text string) string {
	text = strings.Join(strings.Fields(text), " ")

	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\t", " ")
	text = strings.ReplaceAll(text, "\r", " ")

	return strings.TrimSpace(text)
}

// CalculateAvailabilityStatus derives the current status of a listing from its
// observation dates:
// - let date recorded: "LET"
// - not seen for over 14 days: "WITHDRAWN"
// - seen recently: "AVAILABLE"
func (s *UtilityService) CalculateAvailabilityStatus(firstSeen, lastSeen, letDate *time.Time) string {
	now := time.Now()

	if letDate != nil && now.After(*letDate) {
		return "LET"
	}

	if lastSeen != nil && now.Sub(*lastSeen) > 14*24*time.Hour {
		return "WITHDRAWN"
	}

	if lastSeen != nil || firstSeen != nil {
		return "AVAILABLE"
	}

	return "UNKNOWN"
}

// GenerateSlug creates URL-friendly identifiers from addresses or names
func (s *UtilityService) GenerateSlug(text string) string {
	if text == "" {
		return ""
	}

	slug := strings.ToLower(text)

	// Replace spaces and special characters with hyphens
	reg := regexp.MustCompile(`[^a-z0-9]+`)
	slug = reg.ReplaceAllString(slug, "-")

	// Remove consecutive hyphens
	reg = regexp.MustCompile(`-+`)
	slug = reg.ReplaceAllString(slug, "-")

	slug = strings.Trim(slug, "-")

	return slug
}

// GetServiceMetrics returns the current service metrics
func (s *UtilityService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.serviceMetrics
}

// RecordOperation records a utility service operation with metrics tracking
func (s *UtilityService) RecordOperation(operationName string, success bool, processingTime time.Duration) {
	if s.serviceMetrics != nil {
		s.serviceMetrics.RecordRequest(success, processingTime)
		s.serviceMetrics.IncrementCustomCounter(operationName)
	}
}

// ResetMetrics resets all metrics to zero
func (s *UtilityService) ResetMetrics() {
	if s.serviceMetrics != nil {
		s.serviceMetrics.Reset()
	}
	logrus.WithField("service", "Utility_Service").Info("Utility service metrics reset")
}
