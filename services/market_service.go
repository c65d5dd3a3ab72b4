package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/propscan/hmo-backend/models"
	"github.com/propscan/hmo-backend/shared"
	"github.com/sirupsen/logrus"
)

// MarketService is the single aggregation service behind every city-level
// statistic the API serves. Handlers and the generic calculator all go
// through it rather than re-deriving their own aggregates.
type MarketService struct {
	DB             *sql.DB
	serviceMetrics *shared.ServiceMetrics
}

// NewMarketService creates a new market aggregation service
func NewMarketService(db *sql.DB) *MarketService {
	return &MarketService{
		DB:             db,
		serviceMetrics: shared.NewServiceMetrics("Market_Service"),
	}
}

// recordOperation feeds the aggregation counters for one market query
func (s *MarketService) recordOperation(operation string, started time.Time, err error) {
	if s.serviceMetrics == nil {
		return
	}
	s.serviceMetrics.RecordRequest(err == nil, time.Since(started))
	s.serviceMetrics.IncrementCustomCounter(operation)
}

// GetMetricsSnapshot reports the aggregation counters for the performance surface
func (s *MarketService) GetMetricsSnapshot() map[string]interface{} {
	return map[string]interface{}{
		"success_rate":   s.serviceMetrics.GetSuccessRate(),
		"total_requests": s.serviceMetrics.TotalRequests,
	}
}

// GetCities returns the distinct cities with listings, alphabetically
func (s *MarketService) GetCities(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT city FROM properties WHERE city != '' ORDER BY city ASC`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, city)
	}

	return cities, rows.Err()
}

// GetAreas returns the distinct areas within a city, alphabetically
func (s *MarketService) GetAreas(ctx context.Context, city string) ([]string, error) {
	query := `
		SELECT DISTINCT area FROM properties
		WHERE LOWER(city) = LOWER($1) AND area IS NOT NULL AND area != ''
		ORDER BY area ASC
	`

	rows, err := s.DB.QueryContext(ctx, query, city)
	if err != nil {
		return nil, fmt.Errorf("failed to query areas: %w", err)
	}
	defer rows.Close()

	var areas []string
	for rows.Next() {
		var area string
		if err := rows.Scan(&area); err != nil {
			return nil, fmt.Errorf("failed to scan area: %w", err)
		}
		areas = append(areas, area)
	}

	return areas, rows.Err()
}

// GetCityStats computes the headline market figures for one city
func (s *MarketService) GetCityStats(ctx context.Context, city string) (stats *models.CityStats, err error) {
	started := time.Now()
	defer func() { s.recordOperation("city_stats", started, err) }()

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = $2),
		       COALESCE(AVG(rent_pcm), 0),
		       COALESCE(MIN(rent_pcm), 0),
		       COALESCE(MAX(rent_pcm), 0),
		       COALESCE(AVG(beds), 0)
		FROM properties
		WHERE LOWER(city) = LOWER($1)
	`

	stats = &models.CityStats{City: city}
	err = s.DB.QueryRowContext(ctx, query, city, models.StatusAvailable).Scan(
		&stats.PropertyCount, &stats.AvailableCount,
		&stats.AvgRentPCM, &stats.MinRentPCM, &stats.MaxRentPCM, &stats.AvgBeds,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute city stats: %w", err)
	}

	return stats, nil
}

// GetAverageRentPerRoom returns the mean advertised room rent for a city.
// Used to seed the generic deal calculator; 0 means no comparables exist.
func (s *MarketService) GetAverageRentPerRoom(ctx context.Context, city string) (float64, error) {
	query := `
		SELECT COALESCE(AVG(rent_pcm), 0)
		FROM properties
		WHERE LOWER(city) = LOWER($1) AND rent_pcm IS NOT NULL
	`

	var avg float64
	if err := s.DB.QueryRowContext(ctx, query, city).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute average rent: %w", err)
	}

	return avg, nil
}

// periodBucket truncates a timestamp to the start of its reporting period
func periodBucket(t time.Time, period string) time.Time {
	switch strings.ToLower(period) {
	case "day", "daily":
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case "month", "monthly":
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default: // weekly, bucketed to Monday
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	}
}

// marketObservation is one listing's lifecycle dates within the query window
type marketObservation struct {
	firstSeen *time.Time
	letDate   *time.Time
	rentPCM   *float64
}

// buildTimingSeries folds listing observations into period buckets. Split out
// from the query so the bucketing logic is testable without a database.
func buildTimingSeries(observations []marketObservation, period string, windowStart time.Time) []models.MarketTimingPoint {
	type bucketAgg struct {
		newListings int
		delistings  int
		rentSum     float64
		rentCount   int
	}

	buckets := make(map[time.Time]*bucketAgg)

	getBucket := func(t time.Time) *bucketAgg {
		key := periodBucket(t, period)
		if agg, ok := buckets[key]; ok {
			return agg
		}
		agg := &bucketAgg{}
		buckets[key] = agg
		return agg
	}

	for _, obs := range observations {
		if obs.firstSeen != nil && !obs.firstSeen.Before(windowStart) {
			agg := getBucket(*obs.firstSeen)
			agg.newListings++
			if obs.rentPCM != nil {
				agg.rentSum += *obs.rentPCM
				agg.rentCount++
			}
		}
		if obs.letDate != nil && !obs.letDate.Before(windowStart) {
			getBucket(*obs.letDate).delistings++
		}
	}

	var series []models.MarketTimingPoint
	for start, agg := range buckets {
		point := models.MarketTimingPoint{
			PeriodStart: start,
			NewListings: agg.newListings,
			Delistings:  agg.delistings,
		}
		if agg.rentCount > 0 {
			point.AvgRentPCM = agg.rentSum / float64(agg.rentCount)
		}
		series = append(series, point)
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].PeriodStart.Before(series[j].PeriodStart)
	})

	return series
}

// GetMarketTiming builds the market-timing series for a city: new listings,
// delistings, and average advertised rent per period bucket over the window.
func (s *MarketService) GetMarketTiming(ctx context.Context, city, period string, days int) (timing *models.MarketTiming, err error) {
	started := time.Now()
	defer func() { s.recordOperation("market_timing", started, err) }()

	if days <= 0 {
		days = 90
	}
	if period == "" {
		period = "week"
	}

	windowStart := time.Now().AddDate(0, 0, -days)

	query := `
		SELECT first_seen, let_date, rent_pcm
		FROM properties
		WHERE LOWER(city) = LOWER($1)
		  AND (first_seen >= $2 OR let_date >= $2)
	`

	rows, err := s.DB.QueryContext(ctx, query, city, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to query market timing data: %w", err)
	}
	defer rows.Close()

	var observations []marketObservation
	for rows.Next() {
		var obs marketObservation
		if err := rows.Scan(&obs.firstSeen, &obs.letDate, &obs.rentPCM); err != nil {
			return nil, fmt.Errorf("failed to scan market observation: %w", err)
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating market observations: %w", err)
	}

	timing = &models.MarketTiming{
		City:        city,
		Period:      period,
		Days:        days,
		Series:      buildTimingSeries(observations, period, windowStart),
		GeneratedAt: time.Now(),
	}

	for _, point := range timing.Series {
		timing.TotalNew += point.NewListings
		timing.TotalLet += point.Delistings
	}

	logrus.WithFields(logrus.Fields{
		"city":      city,
		"period":    period,
		"days":      days,
		"buckets":   len(timing.Series),
		"total_new": timing.TotalNew,
		"total_let": timing.TotalLet,
	}).Debug("Built market timing series")

	return timing, nil
}

// computeVelocity derives the velocity figures from listing observations.
// Velocity is lettings over listings in the window; the rent trend compares
// the window's earliest and latest average rents.
func computeVelocity(observations []marketObservation, windowStart time.Time) (velocity, avgDaysOnMarket, rentTrendPct float64, lettings int) {
	total := len(observations)
	if total == 0 {
		return 0, 0, 0, 0
	}

	var daysSum float64
	var daysCount int
	var firstRent, lastRent float64
	var firstSeenAt, lastSeenAt *time.Time

	for _, obs := range observations {
		if obs.letDate != nil && !obs.letDate.Before(windowStart) {
			lettings++
			if obs.firstSeen != nil {
				daysSum += obs.letDate.Sub(*obs.firstSeen).Hours() / 24
				daysCount++
			}
		}

		if obs.rentPCM != nil && obs.firstSeen != nil {
			if firstSeenAt == nil || obs.firstSeen.Before(*firstSeenAt) {
				firstSeenAt = obs.firstSeen
				firstRent = *obs.rentPCM
			}
			if lastSeenAt == nil || obs.firstSeen.After(*lastSeenAt) {
				lastSeenAt = obs.firstSeen
				lastRent = *obs.rentPCM
			}
		}
	}

	velocity = float64(lettings) / float64(total)

	if daysCount > 0 {
		avgDaysOnMarket = daysSum / float64(daysCount)
	}

	if firstRent > 0 {
		rentTrendPct = (lastRent - firstRent) / firstRent * 100
	}

	return velocity, avgDaysOnMarket, rentTrendPct, lettings
}

// GetVelocityMetrics measures how quickly stock is letting in a city
func (s *MarketService) GetVelocityMetrics(ctx context.Context, city string, days int) (metrics *models.VelocityMetrics, err error) {
	started := time.Now()
	defer func() { s.recordOperation("velocity", started, err) }()

	if days <= 0 {
		days = 30
	}

	windowStart := time.Now().AddDate(0, 0, -days)

	query := `
		SELECT first_seen, let_date, rent_pcm
		FROM properties
		WHERE LOWER(city) = LOWER($1)
		  AND (last_seen >= $2 OR let_date >= $2)
	`

	rows, err := s.DB.QueryContext(ctx, query, city, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to query velocity data: %w", err)
	}
	defer rows.Close()

	var observations []marketObservation
	for rows.Next() {
		var obs marketObservation
		if err := rows.Scan(&obs.firstSeen, &obs.letDate, &obs.rentPCM); err != nil {
			return nil, fmt.Errorf("failed to scan velocity observation: %w", err)
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating velocity observations: %w", err)
	}

	velocity, avgDays, trend, lettings := computeVelocity(observations, windowStart)

	return &models.VelocityMetrics{
		City:            city,
		Days:            days,
		TotalListings:   len(observations),
		Lettings:        lettings,
		Velocity:        velocity,
		AvgDaysOnMarket: avgDays,
		RentTrendPct:    trend,
	}, nil
}
