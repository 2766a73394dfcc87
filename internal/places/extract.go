package places

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"

	"github.com/octobees/visa-directory/api/internal/entity"
)

const (
	featuredRatingThreshold = 4.5
	premiumRatingThreshold  = 4.0
	operationalStatus       = "OPERATIONAL"
	defaultPhoneRegion      = "IN"
)

// indianStates is the fixed list matched against address segments. It is the
// default for Extractor.States and can be replaced wholesale.
var indianStates = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
	"Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand", "Karnataka",
	"Kerala", "Madhya Pradesh", "Maharashtra", "Manipur", "Meghalaya",
	"Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan", "Sikkim",
	"Tamil Nadu", "Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand",
	"West Bengal", "Delhi", "Jammu and Kashmir", "Ladakh", "Puducherry",
	"Chandigarh", "Andaman and Nicobar Islands", "Dadra and Nagar Haveli",
	"Daman and Diu", "Lakshadweep",
}

var defaultWeeklyHours = map[string]string{
	"Monday":    "10:00 AM - 7:00 PM",
	"Tuesday":   "10:00 AM - 7:00 PM",
	"Wednesday": "10:00 AM - 7:00 PM",
	"Thursday":  "10:00 AM - 7:00 PM",
	"Friday":    "10:00 AM - 7:00 PM",
	"Saturday":  "10:00 AM - 7:00 PM",
	"Sunday":    "Closed",
}

// categoryServices maps category keywords to the fixed service vocabulary.
// The first keyword hit wins; unmatched categories fall back to a generic
// consultation entry.
var categoryServices = []struct {
	keyword  string
	services []string
}{
	{"immigration", []string{"Immigration Advisory", "PR Applications", "Appeals & Representation"}},
	{"student", []string{"Student Visa Guidance", "University Admissions", "IELTS Counselling"}},
	{"education", []string{"Student Visa Guidance", "University Admissions", "IELTS Counselling"}},
	{"work", []string{"Work Permit Filing", "Employer Sponsorship Support", "Visa Documentation"}},
	{"passport", []string{"Passport Assistance", "Document Verification"}},
	{"visa", []string{"Visa Consultation", "Visa Documentation", "Application Filing"}},
}

// typeServices adds specializations derived from the upstream place types.
var typeServices = map[string]string{
	"travel_agency":    "Travel Documentation",
	"lawyer":           "Legal Advisory",
	"insurance_agency": "Travel Insurance Assistance",
}

// Extractor turns a raw place detail into a normalized Business record. The
// transformation is pure: identical inputs yield identical outputs given a
// fixed Clock. The state list and pincode pattern are injectable so the
// address heuristic can be corrected without touching orchestration code.
type Extractor struct {
	States      []string
	PincodeRe   *regexp.Regexp
	PhoneRegion string
	Clock       func() time.Time
}

// NewExtractor returns an extractor with the Indian defaults.
func NewExtractor() *Extractor {
	return &Extractor{
		States:      indianStates,
		PincodeRe:   regexp.MustCompile(`\b\d{6}\b`),
		PhoneRegion: defaultPhoneRegion,
		Clock:       time.Now,
	}
}

// Extract builds the Business record for a detail fetched under the given
// assigned category and search city. Reviews are attached ready for the
// full-replace write; images are filled in later by the photo step.
func (x *Extractor) Extract(d *Detail, category, searchCity string) *entity.Business {
	now := x.Clock().UTC()

	city, state, pincode := x.ParseAddress(d.FormattedAddress)
	if city == "" {
		city = searchCity
	}

	b := &entity.Business{
		Name:            d.Name,
		Category:        category,
		ScrapedCategory: category,
		City:            city,
		ScrapedCity:     searchCity,
		Rating:          d.Rating,
		ReviewCount:     d.UserRatingsTotal,
		Verified:        d.BusinessStatus == operationalStatus,
		Featured:        d.Rating >= featuredRatingThreshold,
		Plan:            planFor(d.Rating),
		PriceLevel:      d.PriceLevel,
		OpeningHours:    x.normalizeHours(d.OpeningHours),
		Services:        x.servicesFor(category, d.Types),
		ScrapedAt:       &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if d.PlaceID != "" {
		placeID := d.PlaceID
		b.PlaceID = &placeID
	}
	if d.FormattedAddress != "" {
		address := d.FormattedAddress
		b.Address = &address
	}
	if state != "" {
		b.State = &state
	}
	if pincode != "" {
		b.Pincode = &pincode
	}
	if phone := x.normalizePhone(d.InternationalPhone, d.FormattedPhone); phone != "" {
		b.Phone = &phone
	}
	if website := normalizeWebsite(d.Website); website != "" {
		b.Website = &website
	}

	b.Description = buildDescription(d.Name, category, city)
	b.Reviews = x.ExtractReviews(d)

	return b
}

// ExtractReviews maps upstream reviews to stored records. Review ids derive
// from the place id and slot index so a re-save produces the same ids.
func (x *Extractor) ExtractReviews(d *Detail) []entity.Review {
	if len(d.Reviews) == 0 {
		return nil
	}
	reviews := make([]entity.Review, 0, len(d.Reviews))
	for i, r := range d.Reviews {
		review := entity.Review{
			ID:           fmt.Sprintf("%s_review_%d", d.PlaceID, i),
			AuthorName:   r.AuthorName,
			Language:     r.Language,
			Rating:       r.Rating,
			RelativeTime: r.RelativeTimeDescription,
			PostedAt:     r.Time,
			Text:         r.Text,
		}
		if r.AuthorURL != "" {
			authorURL := r.AuthorURL
			review.AuthorURL = &authorURL
		}
		reviews = append(reviews, review)
	}
	return reviews
}

// ParseAddress splits a formatted address on commas and picks out city, state
// and pincode. A segment is the city if it is not a known state, not the
// country, contains no digit (which also drops street numbers and pincodes)
// and is 2-30 runes long; the first such segment wins. The heuristic is kept
// behavior-compatible with earlier scrapes and is known to sometimes pick a
// neighborhood instead of the city proper.
func (x *Extractor) ParseAddress(address string) (city, state, pincode string) {
	segments := strings.Split(address, ",")

	for _, raw := range segments {
		seg := strings.TrimSpace(raw)
		if seg == "" {
			continue
		}
		if pincode == "" {
			if match := x.PincodeRe.FindString(seg); match != "" {
				pincode = match
			}
		}
		if state == "" {
			if st, ok := x.matchState(seg); ok {
				state = st
			}
		}
	}

	for _, raw := range segments {
		seg := strings.TrimSpace(raw)
		if seg == "" || containsDigit(seg) {
			continue
		}
		if _, ok := x.matchState(seg); ok {
			continue
		}
		if strings.EqualFold(seg, "India") {
			continue
		}
		if n := len([]rune(seg)); n < 2 || n > 30 {
			continue
		}
		city = seg
		break
	}

	return city, state, pincode
}

func (x *Extractor) matchState(segment string) (string, bool) {
	for _, st := range x.States {
		if strings.EqualFold(segment, st) {
			return st, true
		}
	}
	return "", false
}

func (x *Extractor) normalizePhone(international, formatted string) string {
	raw := international
	if raw == "" {
		raw = formatted
	}
	if raw == "" {
		return ""
	}
	parsed, err := phonenumbers.Parse(raw, x.PhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return strings.TrimSpace(raw)
	}
	return phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)
}

func (x *Extractor) normalizeHours(hours *OpeningHours) map[string]string {
	if hours == nil || len(hours.WeekdayText) == 0 {
		out := make(map[string]string, len(defaultWeeklyHours))
		for day, span := range defaultWeeklyHours {
			out[day] = span
		}
		return out
	}

	out := make(map[string]string, len(hours.WeekdayText))
	for _, line := range hours.WeekdayText {
		day, span, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		out[strings.TrimSpace(day)] = strings.TrimSpace(span)
	}
	return out
}

func (x *Extractor) servicesFor(category string, placeTypes []string) []string {
	lower := strings.ToLower(category)

	var services []string
	for _, entry := range categoryServices {
		if strings.Contains(lower, entry.keyword) {
			services = append(services, entry.services...)
			break
		}
	}
	if len(services) == 0 {
		services = append(services, "Consultation Services")
	}

	for _, t := range placeTypes {
		if extra, ok := typeServices[t]; ok && !contains(services, extra) {
			services = append(services, extra)
		}
	}
	return services
}

func planFor(rating float64) string {
	if rating >= premiumRatingThreshold {
		return "premium"
	}
	return "free"
}

func buildDescription(name, category, city string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if city != "" {
		return fmt.Sprintf("%s is a %s based in %s, assisting clients with visa applications, documentation and immigration advisory.", name, category, city)
	}
	return fmt.Sprintf("%s is a %s assisting clients with visa applications, documentation and immigration advisory.", name, category)
}

func normalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parts := strings.SplitN(strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://"), "/", 2)
	host, err := idna.Lookup.ToASCII(strings.ToLower(parts[0]))
	if err != nil {
		return raw
	}
	scheme := "https"
	if strings.HasPrefix(raw, "http://") {
		scheme = "http"
	}
	out := scheme + "://" + host
	if len(parts) == 2 && parts[1] != "" {
		out += "/" + parts[1]
	}
	return out
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
