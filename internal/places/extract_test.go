package places

import (
	"reflect"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func testExtractor() *Extractor {
	x := NewExtractor()
	x.Clock = fixedClock
	return x
}

func sampleDetail() *Detail {
	price := 2
	return &Detail{
		PlaceID:            "place-123",
		Name:               "Global Visa Experts",
		FormattedAddress:   "123 MG Road, Connaught Place, New Delhi, Delhi, 110001, India",
		InternationalPhone: "+91 11 2334 5566",
		Website:            "GlobalVisa.example.com",
		Rating:             4.6,
		UserRatingsTotal:   210,
		BusinessStatus:     "OPERATIONAL",
		PriceLevel:         &price,
		Types:              []string{"travel_agency", "point_of_interest"},
		Reviews: []Review{
			{AuthorName: "Asha", Rating: 5, RelativeTimeDescription: "a month ago", Time: 1714000000, Text: "Very helpful"},
			{AuthorName: "Ravi", AuthorURL: "https://maps.example/ravi", Rating: 4, Time: 1713000000},
		},
		OpeningHours: &OpeningHours{WeekdayText: []string{
			"Monday: 9:00 AM – 6:00 PM",
			"Sunday: Closed",
		}},
	}
}

func TestParseAddress(t *testing.T) {
	x := testExtractor()

	t.Run("full address", func(t *testing.T) {
		city, state, pincode := x.ParseAddress("123 MG Road, Connaught Place, New Delhi, Delhi, 110001, India")
		if city != "Connaught Place" {
			t.Fatalf("expected city Connaught Place, got %q", city)
		}
		if state != "Delhi" {
			t.Fatalf("expected state Delhi, got %q", state)
		}
		if pincode != "110001" {
			t.Fatalf("expected pincode 110001, got %q", pincode)
		}
	})

	t.Run("no pincode or state", func(t *testing.T) {
		city, state, pincode := x.ParseAddress("Main Bazaar, Leh")
		if city != "Main Bazaar" || state != "" || pincode != "" {
			t.Fatalf("unexpected result: %q %q %q", city, state, pincode)
		}
	})

	t.Run("digits exclude segments", func(t *testing.T) {
		city, _, _ := x.ParseAddress("42/8 Sector 17, Chandigarh, 160017, India")
		if city != "" {
			t.Fatalf("expected no city (Chandigarh is a known state segment), got %q", city)
		}
	})

	t.Run("empty address", func(t *testing.T) {
		city, state, pincode := x.ParseAddress("")
		if city != "" || state != "" || pincode != "" {
			t.Fatalf("expected empty result")
		}
	})
}

func TestExtract(t *testing.T) {
	x := testExtractor()
	b := x.Extract(sampleDetail(), "Visa Consultant", "Delhi")

	if b.PlaceID == nil || *b.PlaceID != "place-123" {
		t.Fatalf("unexpected place id: %v", b.PlaceID)
	}
	if b.City != "Connaught Place" || b.ScrapedCity != "Delhi" {
		t.Fatalf("unexpected city fields: %q %q", b.City, b.ScrapedCity)
	}
	if b.Category != "Visa Consultant" || b.ScrapedCategory != "Visa Consultant" {
		t.Fatalf("unexpected category fields: %q %q", b.Category, b.ScrapedCategory)
	}
	if b.State == nil || *b.State != "Delhi" {
		t.Fatalf("unexpected state: %v", b.State)
	}
	if b.Pincode == nil || *b.Pincode != "110001" {
		t.Fatalf("unexpected pincode: %v", b.Pincode)
	}
	if !b.Verified {
		t.Fatalf("operational business should be verified")
	}
	if !b.Featured {
		t.Fatalf("rating 4.6 should be featured")
	}
	if b.Plan != "premium" {
		t.Fatalf("rating 4.6 should map to premium plan, got %s", b.Plan)
	}
	if b.Website == nil || *b.Website != "https://globalvisa.example.com" {
		t.Fatalf("unexpected website: %v", b.Website)
	}
	if b.Phone == nil || *b.Phone == "" {
		t.Fatalf("expected a normalized phone")
	}
	if b.OpeningHours["Monday"] != "9:00 AM – 6:00 PM" || b.OpeningHours["Sunday"] != "Closed" {
		t.Fatalf("unexpected opening hours: %v", b.OpeningHours)
	}
	if len(b.Reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(b.Reviews))
	}
	if b.Reviews[0].ID != "place-123_review_0" || b.Reviews[1].ID != "place-123_review_1" {
		t.Fatalf("unexpected review ids: %s %s", b.Reviews[0].ID, b.Reviews[1].ID)
	}
	if !contains(b.Services, "Visa Consultation") || !contains(b.Services, "Travel Documentation") {
		t.Fatalf("unexpected services: %v", b.Services)
	}
	if !b.ScrapedAt.Equal(fixedClock()) {
		t.Fatalf("expected scraped_at from the injected clock")
	}
}

func TestExtract_Pure(t *testing.T) {
	x := testExtractor()
	a := x.Extract(sampleDetail(), "Visa Consultant", "Delhi")
	b := x.Extract(sampleDetail(), "Visa Consultant", "Delhi")
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("extract is not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestExtract_Defaults(t *testing.T) {
	x := testExtractor()
	d := &Detail{
		PlaceID:          "place-9",
		Name:             "Quiet Consultancy",
		FormattedAddress: "Somewhere, Mumbai, Maharashtra, 400001, India",
		BusinessStatus:   "CLOSED_TEMPORARILY",
	}
	b := x.Extract(d, "Immigration Consultant", "Mumbai")

	if b.Rating != 0 {
		t.Fatalf("missing rating should default to 0, got %f", b.Rating)
	}
	if b.Verified {
		t.Fatalf("non-operational business must not be verified")
	}
	if b.Featured {
		t.Fatalf("rating 0 must not be featured")
	}
	if b.Plan != "free" {
		t.Fatalf("rating 0 should map to free plan, got %s", b.Plan)
	}
	if b.OpeningHours["Monday"] != "10:00 AM - 7:00 PM" || b.OpeningHours["Sunday"] != "Closed" {
		t.Fatalf("expected the default weekly schedule, got %v", b.OpeningHours)
	}
	if len(b.Reviews) != 0 {
		t.Fatalf("expected no reviews")
	}
	if !contains(b.Services, "Immigration Advisory") {
		t.Fatalf("unexpected services: %v", b.Services)
	}
}

func TestExtract_PlanThresholds(t *testing.T) {
	cases := []struct {
		rating   float64
		featured bool
		plan     string
	}{
		{4.5, true, "premium"},
		{4.4, false, "premium"},
		{4.0, false, "premium"},
		{3.9, false, "free"},
		{0, false, "free"},
	}
	x := testExtractor()
	for _, tc := range cases {
		d := &Detail{PlaceID: "p", Name: "N", Rating: tc.rating}
		b := x.Extract(d, "visa consultant", "Delhi")
		if b.Featured != tc.featured {
			t.Fatalf("rating %.1f: expected featured=%v", tc.rating, tc.featured)
		}
		if b.Plan != tc.plan {
			t.Fatalf("rating %.1f: expected plan %s, got %s", tc.rating, tc.plan, b.Plan)
		}
	}
}
