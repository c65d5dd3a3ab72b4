package models

import "time"

// CityStats summarises the current rental market for one city.
type CityStats struct {
	City           string  `json:"city"`
	PropertyCount  int     `json:"property_count"`
	AvailableCount int     `json:"available_count"`
	AvgRentPCM     float64 `json:"avg_rent_pcm"`
	MinRentPCM     float64 `json:"min_rent_pcm"`
	MaxRentPCM     float64 `json:"max_rent_pcm"`
	AvgBeds        float64 `json:"avg_beds"`
}

// MarketTimingPoint is one bucket of the market-timing series for a city.
type MarketTimingPoint struct {
	PeriodStart time.Time `json:"period_start"`
	NewListings int       `json:"new_listings"`
	Delistings  int       `json:"delistings"`
	AvgRentPCM  float64   `json:"avg_rent_pcm"`
}

// MarketTiming is the market-timing series plus headline figures.
type MarketTiming struct {
	City        string              `json:"city"`
	Period      string              `json:"period"`
	Days        int                 `json:"days"`
	Series      []MarketTimingPoint `json:"series"`
	TotalNew    int                 `json:"total_new"`
	TotalLet    int                 `json:"total_let"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// VelocityMetrics measures how quickly stock moves in a city over a window.
type VelocityMetrics struct {
	City            string  `json:"city"`
	Days            int     `json:"days"`
	TotalListings   int     `json:"total_listings"`
	Lettings        int     `json:"lettings"`
	Velocity        float64 `json:"velocity"`
	AvgDaysOnMarket float64 `json:"avg_days_on_market"`
	RentTrendPct    float64 `json:"rent_trend_pct"`
}

// PriceTrendPoint is one point of a property's rent history series.
type PriceTrendPoint struct {
	RecordedAt time.Time `json:"recorded_at"`
	RentPCM    float64   `json:"rent_pcm"`
}

// PropertyTrends combines the rent series and lifecycle events for a property
// into a single trend view with an overall direction summary.
type PropertyTrends struct {
	PropertyID    string              `json:"property_id"`
	RentSeries    []PriceTrendPoint   `json:"rent_series"`
	Events        []AvailabilityEvent `json:"events"`
	RentDirection string              `json:"rent_direction"`
	RentChangePct *float64            `json:"rent_change_pct"`
}

// PropertyAnalytics holds derived per-property figures for the analytics endpoint.
type PropertyAnalytics struct {
	PropertyID     string   `json:"property_id"`
	DaysListed     float64  `json:"days_listed"`
	CurrentRentPCM float64  `json:"current_rent_pcm"`
	AreaAvgRentPCM float64  `json:"area_avg_rent_pcm"`
	RentVsAreaPct  *float64 `json:"rent_vs_area_pct"`
	SnapshotCount  int      `json:"snapshot_count"`
	RentChangePct  *float64 `json:"rent_change_pct"`
}
