package services

import (
	"errors"
	"math"
	"testing"
	"time"
)

func obsTime(t time.Time) *time.Time { return &t }

func TestPeriodBucket(t *testing.T) {
	// A Thursday
	ts := time.Date(2026, time.March, 5, 15, 30, 0, 0, time.UTC)

	if got := periodBucket(ts, "day"); !got.Equal(time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day bucket = %v", got)
	}
	if got := periodBucket(ts, "month"); !got.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month bucket = %v", got)
	}
	// Weekly buckets start on Monday
	if got := periodBucket(ts, "week"); !got.Equal(time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week bucket = %v", got)
	}
	// A Sunday folds back to the previous Monday
	sunday := time.Date(2026, time.March, 8, 9, 0, 0, 0, time.UTC)
	if got := periodBucket(sunday, "week"); !got.Equal(time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("sunday week bucket = %v", got)
	}
}

func TestBuildTimingSeries(t *testing.T) {
	windowStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	week1 := time.Date(2026, time.February, 3, 10, 0, 0, 0, time.UTC) // Tuesday
	week2 := time.Date(2026, time.February, 11, 10, 0, 0, 0, time.UTC)

	rent600 := 600.0
	rent700 := 700.0

	observations := []marketObservation{
		{firstSeen: obsTime(week1), rentPCM: &rent600},
		{firstSeen: obsTime(week1), rentPCM: &rent700},
		{firstSeen: obsTime(week2), letDate: obsTime(week2.Add(48 * time.Hour))},
		// Before the window: excluded entirely
		{firstSeen: obsTime(windowStart.AddDate(0, 0, -10))},
	}

	series := buildTimingSeries(observations, "week", windowStart)

	if len(series) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(series))
	}

	first := series[0]
	if first.NewListings != 2 {
		t.Errorf("expected 2 new listings in first bucket, got %d", first.NewListings)
	}
	if math.Abs(first.AvgRentPCM-650) > 0.01 {
		t.Errorf("expected average rent 650, got %f", first.AvgRentPCM)
	}

	second := series[1]
	if second.NewListings != 1 {
		t.Errorf("expected 1 new listing in second bucket, got %d", second.NewListings)
	}
	if second.Delistings != 1 {
		t.Errorf("expected 1 delisting in second bucket, got %d", second.Delistings)
	}

	// Buckets come back in chronological order
	if !series[0].PeriodStart.Before(series[1].PeriodStart) {
		t.Error("expected series sorted by period start")
	}
}

func TestBuildTimingSeriesEmpty(t *testing.T) {
	series := buildTimingSeries(nil, "week", time.Now())
	if len(series) != 0 {
		t.Errorf("expected empty series, got %d buckets", len(series))
	}
}

func TestComputeVelocity(t *testing.T) {
	windowStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	rent500 := 500.0
	rent550 := 550.0

	listed := time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC)
	let := listed.AddDate(0, 0, 10)
	listedLater := time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC)

	observations := []marketObservation{
		{firstSeen: obsTime(listed), letDate: obsTime(let), rentPCM: &rent500},
		{firstSeen: obsTime(listedLater), rentPCM: &rent550},
	}

	velocity, avgDays, rentTrend, lettings := computeVelocity(observations, windowStart)

	if lettings != 1 {
		t.Errorf("expected 1 letting, got %d", lettings)
	}
	if math.Abs(velocity-0.5) > 0.001 {
		t.Errorf("expected velocity 0.5, got %f", velocity)
	}
	if math.Abs(avgDays-10) > 0.001 {
		t.Errorf("expected 10 days on market, got %f", avgDays)
	}
	// Rent moved from 500 (earliest) to 550 (latest): +10%
	if math.Abs(rentTrend-10) > 0.001 {
		t.Errorf("expected rent trend +10%%, got %f", rentTrend)
	}
}

func TestComputeVelocityNoObservations(t *testing.T) {
	velocity, avgDays, rentTrend, lettings := computeVelocity(nil, time.Now())
	if velocity != 0 || avgDays != 0 || rentTrend != 0 || lettings != 0 {
		t.Errorf("expected all zeroes for no observations, got %f %f %f %d", velocity, avgDays, rentTrend, lettings)
	}
}

func TestRecordOperationCounters(t *testing.T) {
	svc := NewMarketService(nil)
	started := time.Now().Add(-10 * time.Millisecond)

	svc.recordOperation("city_stats", started, nil)
	svc.recordOperation("city_stats", started, errors.New("connection reset"))

	snapshot := svc.GetMetricsSnapshot()
	if total, ok := snapshot["total_requests"].(int64); !ok || total != 2 {
		t.Errorf("expected 2 recorded requests, got %v", snapshot["total_requests"])
	}
	if rate, ok := snapshot["success_rate"].(float64); !ok || math.Abs(rate-50) > 0.001 {
		t.Errorf("expected 50%% success rate, got %v", snapshot["success_rate"])
	}
}
