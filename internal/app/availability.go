package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"sheltersearch/internal/adapters/observability"
	"sheltersearch/internal/domain"
)

// Outcome of one per-place availability check.
type Outcome int

const (
	// Skipped means neither the id nor the slug calendar query could be
	// confirmed. A skipped place is never reported available.
	Skipped Outcome = iota
	Available
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	}
	return "skipped"
}

// Checker evaluates one place's booking calendar against the requested
// nights.
type Checker struct {
	client domain.BookingClient
}

func NewChecker(client domain.BookingClient) *Checker {
	return &Checker{client: client}
}

// Check fetches the calendar month covering the stay and reports whether
// every required night is free. The numeric id query is preferred; when the
// id is missing (placeID <= 0) or its query fails, the slug query is the
// fallback. Both failing means Skipped: the place cannot be confirmed either
// way, and errors here never abort the run.
func (c *Checker) Check(ctx context.Context, p domain.Place, placeID int, req domain.StayRequest) Outcome {
	month := req.MonthStart().Format("20060102")

	var queries []domain.CalendarQuery
	if placeID > 0 {
		queries = append(queries, domain.CalendarQuery{PlaceID: placeID, Month: month})
	}
	queries = append(queries, domain.CalendarQuery{Slug: p.Slug, Month: month})

	nights := req.RequiredNights()
	for _, q := range queries {
		cal, err := c.client.FetchCalendar(ctx, q)
		if err != nil {
			log.Debug().Err(err).Str("slug", p.Slug).Int("id", q.PlaceID).Msg("calendar fetch failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out := Available
		if cal.HasAny(nights) {
			out = Unavailable
		}
		observability.ObserveCheck(out.String())
		return out
	}
	observability.ObserveCheck(Skipped.String())
	return Skipped
}
