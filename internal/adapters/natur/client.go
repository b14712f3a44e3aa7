// Package natur talks to the Naturstyrelsen shelter-booking backend: the
// paginated place listing, per-place detail pages, and the per-place booking
// calendar. The backend has no availability search of its own, so callers
// assemble one from these three endpoints.
package natur

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"sheltersearch/internal/adapters/observability"
	"sheltersearch/internal/domain"
)

const (
	placesPath   = "/includes/branding_files/shelterbooking/includes/inc_ajaxbookingplaces.asp"
	bookingsPath = "/includes/branding_files/shelterbooking/includes/inc_ajaxgetbookingsforsingleplace.asp"
	searchPath   = "/soeg/?s1=3012"

	// Detail bodies shorter than this are error stubs, not pages.
	minDetailLen = 512
)

var (
	ErrNotFound  = errors.New("natur: not found")
	ErrBadStatus = errors.New("natur: unexpected status")
	ErrEmptyBody = errors.New("natur: implausibly short body")
)

type Client struct {
	base  string
	hc    *http.Client
	ua    string
	sess  *Session
	pacer *Pacer
}

func New(base, ua string, timeout time.Duration, pacer *Pacer) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		hc:    &http.Client{Timeout: timeout},
		ua:    ua,
		sess:  NewSession(),
		pacer: pacer,
	}
}

// Session exposes the cookie jar, mainly for tests.
func (c *Client) Session() *Session { return c.sess }

// Warm primes the session: one GET against the landing page and one against
// the shelter search page, capturing whatever cookies they set. Failures are
// logged and tolerated; the AJAX endpoints usually work cold too.
func (c *Client) Warm(ctx context.Context) {
	for _, u := range []string{c.base + "/", c.base + searchPath} {
		if _, _, err := c.do(ctx, u, false); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("session warm-up request failed")
		}
	}
	log.Debug().Int("cookies", c.sess.Len()).Msg("session warmed")
}

// ---- Listing ----

type listingRow struct {
	Title      string          `json:"Title"`
	Uri        string          `json:"Uri"`
	DoubleLat  json.RawMessage `json:"DoubleLat"`
	Lat        json.RawMessage `json:"Lat"`
	DoubleLng  json.RawMessage `json:"DoubleLng"`
	Lng        json.RawMessage `json:"Lng"`
	PlaceID    json.RawMessage `json:"PlaceID"`
	RegionName string          `json:"RegionName"`
}

type listingResponse struct {
	BookingPlacesList []listingRow `json:"BookingPlacesList"`
}

// ListPlaces fetches one catalog page. Rows without a usable slug are
// dropped but still count toward the returned raw row total; coordinates and
// the place id are parsed defensively since the listing serves them
// inconsistently.
func (c *Client) ListPlaces(ctx context.Context, page, pageSize int) ([]domain.Place, int, error) {
	if err := c.pacer.Wait(ctx, StageCatalog); err != nil {
		return nil, 0, err
	}
	q := url.Values{
		"pid": {"0"},
		"p":   {strconv.Itoa(page)},
		"r":   {"50000"},
		"ps":  {strconv.Itoa(pageSize)},
		"t":   {"1"},
	}
	var resp listingResponse
	start := time.Now()
	status, err := c.getJSON(ctx, c.base+placesPath+"?"+q.Encode(), &resp)
	observability.ObserveUpstream("places", status, time.Since(start))
	if err != nil {
		return nil, 0, err
	}

	out := make([]domain.Place, 0, len(resp.BookingPlacesList))
	for _, row := range resp.BookingPlacesList {
		slug := strings.Trim(strings.TrimSpace(row.Uri), "/")
		if slug == "" {
			continue
		}
		title := strings.TrimSpace(row.Title)
		if title == "" {
			title = domain.TitleFromSlug(slug)
		}
		p := domain.Place{
			Title:  title,
			Slug:   slug,
			URL:    c.base + "/sted/" + slug + "/",
			Region: strings.TrimSpace(row.RegionName),
		}
		// Coordinates show up as DoubleLat/DoubleLng or Lat/Lng, as
		// numbers or quoted strings.
		p.Lat = coerceFloat(row.DoubleLat, row.Lat)
		p.Lng = coerceFloat(row.DoubleLng, row.Lng)
		if id, ok := coerceID(row.PlaceID); ok {
			p.PlaceID = &id
		}
		out = append(out, p)
	}
	return out, len(resp.BookingPlacesList), nil
}

// ---- Detail pages ----

// FetchDetail retrieves a place's detail HTML. It tries the canonical URL
// first and a stripped no-layout variant second; the backend sometimes
// serves the stripped page more reliably. First plausible body wins.
func (c *Client) FetchDetail(ctx context.Context, slug string) (string, error) {
	canonical := c.base + "/sted/" + slug + "/"
	variants := []string{canonical, canonical + "?nolayout=1"}

	var last error
	for _, u := range variants {
		if err := c.pacer.Wait(ctx, StageDetail); err != nil {
			return "", err
		}
		start := time.Now()
		body, status, err := c.do(ctx, u, false)
		observability.ObserveUpstream("detail", status, time.Since(start))
		if err != nil {
			last = err
			continue
		}
		if status != http.StatusOK {
			last = fmt.Errorf("%w: %d for %s", ErrBadStatus, status, u)
			continue
		}
		if len(body) < minDetailLen {
			last = fmt.Errorf("%w: %d bytes from %s", ErrEmptyBody, len(body), u)
			continue
		}
		return string(body), nil
	}
	if last == nil {
		last = ErrNotFound
	}
	return "", last
}

// ---- Calendar ----

type calendarResponse struct {
	FullyBookedDates    []string `json:"FullyBookedDates"`
	PartialBookingDates []string `json:"PartialBookingDates"`
}

// FetchCalendar returns the booked-day set for one place-month: the union of
// fully and partially booked days. A partially booked shelter cannot take a
// new overnight party, so both count as booked.
func (c *Client) FetchCalendar(ctx context.Context, q domain.CalendarQuery) (domain.Calendar, error) {
	if err := c.pacer.Wait(ctx, StageCalendar); err != nil {
		return domain.Calendar{}, err
	}
	v := url.Values{"d": {q.Month}}
	if q.PlaceID > 0 {
		v.Set("i", strconv.Itoa(q.PlaceID))
	} else if q.Slug != "" {
		v.Set("u", q.Slug)
	} else {
		return domain.Calendar{}, errors.New("natur: calendar query needs a place id or slug")
	}

	var resp calendarResponse
	start := time.Now()
	status, err := c.getJSON(ctx, c.base+bookingsPath+"?"+v.Encode(), &resp)
	observability.ObserveUpstream("calendar", status, time.Since(start))
	if err != nil {
		return domain.Calendar{}, err
	}

	booked := make(map[string]bool, len(resp.FullyBookedDates)+len(resp.PartialBookingDates))
	for _, d := range resp.FullyBookedDates {
		if d != "" {
			booked[d] = true
		}
	}
	for _, d := range resp.PartialBookingDates {
		if d != "" {
			booked[d] = true
		}
	}
	return domain.Calendar{Booked: booked}, nil
}

// ---- Internals ----

// getJSON performs a GET with retries on transient failures and decodes the
// body leniently.
func (c *Client) getJSON(ctx context.Context, u string, out any) (int, error) {
	var lastStatus int
	var lastErr error
	for i := 0; i < 4; i++ {
		body, status, err := c.do(ctx, u, true)
		lastStatus = status
		if err != nil {
			if ctx.Err() != nil {
				return status, ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return status, lastErr
		}

		switch status {
		case http.StatusOK:
			if derr := decodeLenient(body, out); derr != nil {
				return status, fmt.Errorf("decode %s: %w", u, derr)
			}
			return status, nil
		case http.StatusNotFound:
			return status, ErrNotFound
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			lastErr = fmt.Errorf("%w: %d", ErrBadStatus, status)
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return status, ctx.Err()
			}
			return status, lastErr
		default:
			return status, fmt.Errorf("%w: %d: %s", ErrBadStatus, status, trimBody(body))
		}
	}
	return lastStatus, lastErr
}

// do issues one GET through the session jar and absorbs any cookies the
// response sets. ajax adds the headers the .asp endpoints expect.
func (c *Client) do(ctx context.Context, u string, ajax bool) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept-Language", "da-DK,da;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Referer", c.base+searchPath)
	if ajax {
		req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.1")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
	} else {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	}
	c.sess.Apply(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, err
	}
	defer resp.Body.Close()
	c.sess.Absorb(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// decodeLenient unmarshals b, and on failure retries on the outermost {...}
// span. The .asp endpoints serve JSON with a text/html content type and the
// occasional junk prefix or suffix.
func decodeLenient(b []byte, out any) error {
	err := json.Unmarshal(bytes.TrimSpace(b), out)
	if err == nil {
		return nil
	}
	open := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if open >= 0 && end > open {
		if rerr := json.Unmarshal(b[open:end+1], out); rerr == nil {
			return nil
		}
	}
	return err
}

// coerceFloat returns the first raw value parseable as a finite float.
func coerceFloat(raws ...json.RawMessage) *float64 {
	for _, raw := range raws {
		if f, ok := rawFloat(raw); ok {
			return &f
		}
	}
	return nil
}

// coerceID parses a place id, rejecting non-finite values and the excluded
// category ids that upstream sometimes plants in the PlaceID field.
func coerceID(raw json.RawMessage) (int, bool) {
	f, ok := rawFloat(raw)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	id := int(f)
	if id <= 0 || domain.ExcludedTypeIDs[id] {
		return 0, false
	}
	return id, true
}

func rawFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func trimBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 256 {
		s = s[:256] + "…"
	}
	return s
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms,
// 800ms...), with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
