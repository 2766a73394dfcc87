package entity

import "time"

// Statistics is the recomputed aggregate snapshot over the whole catalogue.
// AverageRating is taken over businesses with a rating above zero.
type Statistics struct {
	TotalBusinesses   int       `json:"total_businesses"`
	TotalImages       int       `json:"total_images"`
	TotalReviews      int       `json:"total_reviews"`
	GooglePlacesCount int       `json:"google_places_count"`
	AverageRating     float64   `json:"average_rating"`
	CitiesCovered     int       `json:"cities_covered"`
	UpdatedAt         time.Time `json:"updated_at"`
}
