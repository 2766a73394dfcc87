package entity

import (
	"time"

	"github.com/google/uuid"
)

// Business represents one consultancy/agency discovered by the pipeline.
//
// When PlaceID is set it is the natural key: re-scraping the same place
// replaces the stored row (and its reviews and images) instead of creating a
// second record. Category/City hold the canonical assigned values while
// ScrapedCategory/ScrapedCity keep the literal search terms that produced the
// hit; the two may differ after normalization.
type Business struct {
	ID              uuid.UUID         `json:"id"`
	PlaceID         *string           `json:"place_id,omitempty"`
	Name            string            `json:"name"`
	Category        string            `json:"category"`
	ScrapedCategory string            `json:"scraped_category,omitempty"`
	Description     string            `json:"description,omitempty"`
	Phone           *string           `json:"phone,omitempty"`
	Website         *string           `json:"website,omitempty"`
	Address         *string           `json:"address,omitempty"`
	City            string            `json:"city,omitempty"`
	ScrapedCity     string            `json:"scraped_city,omitempty"`
	State           *string           `json:"state,omitempty"`
	Pincode         *string           `json:"pincode,omitempty"`
	Rating          float64           `json:"rating"`
	ReviewCount     int               `json:"review_count"`
	Verified        bool              `json:"verified"`
	Featured        bool              `json:"featured"`
	Plan            string            `json:"plan"`
	PriceLevel      *int              `json:"price_level,omitempty"`
	OpeningHours    map[string]string `json:"opening_hours,omitempty"`
	Services        []string          `json:"services,omitempty"`
	Logo            *string           `json:"logo,omitempty"`
	Cover           *string           `json:"cover,omitempty"`
	Gallery         []string          `json:"gallery,omitempty"`
	Reviews         []Review          `json:"reviews,omitempty"`
	Images          []Image           `json:"images,omitempty"`
	ScrapedAt       *time.Time        `json:"scraped_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Review is one customer review attached to a business. Reviews are replaced
// in full on every re-save; the upstream API returns at most a handful per
// call, so the stored set is never a complete history.
type Review struct {
	ID           string    `json:"id"`
	BusinessID   uuid.UUID `json:"business_id"`
	AuthorName   string    `json:"author_name"`
	AuthorURL    *string   `json:"author_url,omitempty"`
	Language     string    `json:"language,omitempty"`
	Rating       int       `json:"rating"`
	RelativeTime string    `json:"relative_time,omitempty"`
	PostedAt     int64     `json:"posted_at"`
	Text         string    `json:"text,omitempty"`
}

// Image is one photo reference plus its stored blob location. At most five
// are processed per business per scrape: position 0 is the logo, position 1
// the cover, the remainder the gallery.
type Image struct {
	ID             uuid.UUID `json:"id"`
	BusinessID     uuid.UUID `json:"business_id"`
	PhotoReference string    `json:"photo_reference"`
	Height         int       `json:"height"`
	Width          int       `json:"width"`
	Attribution    *string   `json:"attribution,omitempty"`
	URL            string    `json:"url"`
	Position       int       `json:"position"`
}
