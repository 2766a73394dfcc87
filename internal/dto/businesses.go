package dto

// BusinessFilter contains query parameters for the scraped-businesses listing.
// Query matches name/description/category by case-insensitive substring; City
// and Category also match their "scraped" variants.
type BusinessFilter struct {
	Query    string
	City     string
	Category string
	Page     int
	Limit    int
}
