package domain

import "context"

// CalendarQuery addresses one place-month on the calendar endpoint. Exactly
// one of PlaceID/Slug should be set; PlaceID wins when both are.
type CalendarQuery struct {
	PlaceID int
	Slug    string
	Month   string // YYYYMMDD, first day of the requested month
}

// BookingClient is the upstream booking backend.
type BookingClient interface {
	// ListPlaces fetches one catalog page (1-based). rows is the raw
	// upstream row count before filtering; a short or empty page signals
	// the end of the catalog to the caller.
	ListPlaces(ctx context.Context, page, pageSize int) (places []Place, rows int, err error)
	// FetchDetail returns the raw HTML of a place's detail page.
	FetchDetail(ctx context.Context, slug string) (string, error)
	// FetchCalendar returns the booked-day set for one place-month.
	FetchCalendar(ctx context.Context, q CalendarQuery) (Calendar, error)
}

// Cache is a generic short-lived JSON cache (snapshots, write-through ids).
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// IdentifierStore persists resolved slug->place id mappings across runs.
type IdentifierStore interface {
	UpsertIdentifier(ctx context.Context, slug string, placeID int) error
	GetIdentifier(ctx context.Context, slug string) (int, bool, error)
	AllIdentifiers(ctx context.Context) (map[string]int, error)
}
