package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Property struct {
	// Primary identification
	ID        uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID string    `json:"listing_id" gorm:"type:varchar(100);not null;uniqueIndex"`

	// Location
	Address  string  `json:"address" gorm:"type:varchar(255);not null"`
	City     string  `json:"city" gorm:"type:varchar(100);not null"`
	Area     *string `json:"area" gorm:"type:varchar(100)"`
	Postcode *string `json:"postcode" gorm:"type:varchar(20)"`

	// Listing details
	RentPCM       *float64 `json:"rent_pcm" gorm:"type:decimal(10,2)"`
	Beds          *int     `json:"beds"`
	RoomsLet      *int     `json:"rooms_let"`
	PropertyType  *string  `json:"property_type" gorm:"type:varchar(50)"`
	BillsIncluded *bool    `json:"bills_included"`
	Ensuite       *bool    `json:"ensuite"`

	// Availability
	Status        string     `json:"status" gorm:"type:varchar(50);not null;default:'UNKNOWN'"`
	AvailableFrom *time.Time `json:"available_from"`
	FirstSeen     *time.Time `json:"first_seen"`
	LastSeen      *time.Time `json:"last_seen"`
	LetDate       *time.Time `json:"let_date"`

	// Source metadata
	URL         *string `json:"url" gorm:"type:varchar(500)"`
	Source      string  `json:"source" gorm:"type:varchar(100);not null"`
	Description *string `json:"description" gorm:"type:text"`
	Slug        *string `json:"slug" gorm:"type:varchar(255)"`

	// Additional structured data
	Amenities json.RawMessage `json:"amenities" gorm:"type:jsonb;default:'[]'"`

	// Audit fields
	CreatedAt time.Time `json:"created_at" gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// RentSnapshot records the advertised rent of a property at a point in time.
// Snapshots feed the per-property price-trend series.
type RentSnapshot struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	PropertyID uuid.UUID `json:"property_id" gorm:"type:uuid;not null;index"`
	RentPCM    float64   `json:"rent_pcm" gorm:"type:decimal(10,2);not null"`
	Status     string    `json:"status" gorm:"type:varchar(50);not null"`
	RecordedAt time.Time `json:"recorded_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// AvailabilityEvent records a listing lifecycle transition (listed, relisted, let).
type AvailabilityEvent struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	PropertyID uuid.UUID `json:"property_id" gorm:"type:uuid;not null;index"`
	Event      string    `json:"event" gorm:"type:varchar(50);not null"`
	OccurredAt time.Time `json:"occurred_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// Listing lifecycle events.
const (
	EventListed   = "LISTED"
	EventRelisted = "RELISTED"
	EventLet      = "LET"
	EventRentDrop = "RENT_DROP"
	EventRentRise = "RENT_RISE"
)

// Property statuses.
const (
	StatusAvailable = "AVAILABLE"
	StatusLet       = "LET"
	StatusWithdrawn = "WITHDRAWN"
	StatusUnknown   = "UNKNOWN"
)
