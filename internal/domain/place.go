package domain

import (
	"strings"
	"time"
)

// ExcludedTypeIDs are upstream category/type ids that show up in the PlaceID
// field of some listing rows. They identify a shelter *type*, not a bookable
// place, and must never be used against the calendar endpoint.
var ExcludedTypeIDs = map[int]bool{
	3012: true,
	3031: true,
	3091: true,
}

// Place is one row of the upstream catalog. JSON tags serve the snapshot
// cache; the API response uses ResultItem.
type Place struct {
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	URL     string   `json:"url"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	PlaceID *int     `json:"place_id"`
	Region  string   `json:"region"`
}

// HasCoords reports whether both coordinates are present.
func (p Place) HasCoords() bool { return p.Lat != nil && p.Lng != nil }

// ValidPlaceID returns the numeric booking id when present and not an
// excluded category id.
func (p Place) ValidPlaceID() (int, bool) {
	if p.PlaceID == nil || ExcludedTypeIDs[*p.PlaceID] {
		return 0, false
	}
	return *p.PlaceID, true
}

// TitleFromSlug humanizes a slug: hyphens become spaces, words are
// capitalized ("store-dyrehave-shelter" -> "Store Dyrehave Shelter").
func TitleFromSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// StayRequest is one availability search.
type StayRequest struct {
	Start     time.Time
	Nights    int
	Regions   []string // raw user input, resolved by the regions package
	Filter    string   // optional case-insensitive title substring
	MaxPlaces int      // 0 = no cap
	Debug     bool
}

// RequiredNights returns one ISO calendar-day string per night of the stay.
func (r StayRequest) RequiredNights() []string {
	out := make([]string, 0, r.Nights)
	for i := 0; i < r.Nights; i++ {
		out = append(out, r.Start.AddDate(0, 0, i).Format("2006-01-02"))
	}
	return out
}

// MonthStart is the first day of the month containing Start, the anchor the
// calendar endpoint expects.
func (r StayRequest) MonthStart() time.Time {
	return time.Date(r.Start.Year(), r.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Calendar is the booked-day view of one place for one month. Dates are kept
// as opaque strings; availability is exact string membership.
type Calendar struct {
	Booked map[string]bool
}

// HasAny reports whether any of the given days is booked.
func (c Calendar) HasAny(days []string) bool {
	for _, d := range days {
		if c.Booked[d] {
			return true
		}
	}
	return false
}

// Diagnostics counts what happened during one search run.
type Diagnostics struct {
	CatalogTotal    int `json:"catalog_total"`
	Candidates      int `json:"candidates"`
	ResolvedCatalog int `json:"resolved_catalog"`
	ResolvedCache   int `json:"resolved_cache"`
	ResolvedScrape  int `json:"resolved_scrape"`
	ResolutionMiss  int `json:"resolution_miss"`
	Available       int `json:"available"`
	Unavailable     int `json:"unavailable"`
	Skipped         int `json:"skipped"`
	CheckErrors     int `json:"check_errors"`
}

// ResultItem is the read model for one available place in a search response.
type ResultItem struct {
	Name    string   `json:"name"`
	URL     string   `json:"url"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Region  string   `json:"region"`
	PlaceID *int     `json:"place_id"`
}

// SearchResult is the outcome of one availability search.
type SearchResult struct {
	Count int          `json:"count"`
	Items []ResultItem `json:"items"`
	Debug *Diagnostics `json:"debug,omitempty"`
}
