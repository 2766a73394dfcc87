package places

// Candidate is a lightweight search-result stub returned by text search,
// prior to the detail fetch.
type Candidate struct {
	PlaceID          string  `json:"place_id"`
	Name             string  `json:"name"`
	FormattedAddress string  `json:"formatted_address"`
	Rating           float64 `json:"rating"`
	UserRatingsTotal int     `json:"user_ratings_total"`
}

// Detail is the full place record returned by the details endpoint.
type Detail struct {
	PlaceID            string        `json:"place_id"`
	Name               string        `json:"name"`
	FormattedAddress   string        `json:"formatted_address"`
	FormattedPhone     string        `json:"formatted_phone_number"`
	InternationalPhone string        `json:"international_phone_number"`
	Website            string        `json:"website"`
	Rating             float64       `json:"rating"`
	UserRatingsTotal   int           `json:"user_ratings_total"`
	BusinessStatus     string        `json:"business_status"`
	PriceLevel         *int          `json:"price_level"`
	Types              []string      `json:"types"`
	Reviews            []Review      `json:"reviews"`
	Photos             []PhotoRef    `json:"photos"`
	Geometry           *Geometry     `json:"geometry"`
	OpeningHours       *OpeningHours `json:"opening_hours"`
}

// Review is one upstream review. The API returns at most a handful per call
// regardless of the business's true total.
type Review struct {
	AuthorName              string `json:"author_name"`
	AuthorURL               string `json:"author_url"`
	Language                string `json:"language"`
	Rating                  int    `json:"rating"`
	RelativeTimeDescription string `json:"relative_time_description"`
	Time                    int64  `json:"time"`
	Text                    string `json:"text"`
}

// PhotoRef points at a downloadable photo.
type PhotoRef struct {
	Reference        string   `json:"photo_reference"`
	Height           int      `json:"height"`
	Width            int      `json:"width"`
	HTMLAttributions []string `json:"html_attributions"`
}

// Geometry carries the place location.
type Geometry struct {
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

// OpeningHours carries the weekly schedule as the upstream "weekday_text"
// lines, e.g. "Monday: 9:00 AM – 6:00 PM".
type OpeningHours struct {
	OpenNow     bool     `json:"open_now"`
	WeekdayText []string `json:"weekday_text"`
}

type searchResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Results      []Candidate `json:"results"`
}

type detailsResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Result       *Detail `json:"result"`
}
