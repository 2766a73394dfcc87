package dto

// StartScrapeRequest is the payload accepted by POST /api/scraping/start.
// Delay is the inter-search pause in milliseconds.
type StartScrapeRequest struct {
	Cities              []string `json:"cities"`
	Categories          []string `json:"categories"`
	MaxResultsPerSearch int      `json:"maxResultsPerSearch"`
	Delay               int      `json:"delay"`
}
