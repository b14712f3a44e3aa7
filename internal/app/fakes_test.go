package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sheltersearch/internal/domain"
)

func pf(f float64) *float64 { return &f }
func pi(i int) *int         { return &i }

// fakeClient scripts the upstream: catalog pages, detail HTML per slug, and
// calendars keyed by "i:<id>" or "u:<slug>".
type fakeClient struct {
	mu sync.Mutex

	pages    [][]domain.Place
	pageRows []int // raw row count per page; 0 means len(pages[i])

	details   map[string]string
	calendars map[string]domain.Calendar

	listCalls     int
	detailCalls   map[string]int
	calendarCalls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		details:       map[string]string{},
		calendars:     map[string]domain.Calendar{},
		detailCalls:   map[string]int{},
		calendarCalls: map[string]int{},
	}
}

func (f *fakeClient) ListPlaces(_ context.Context, page, _ int) ([]domain.Place, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if page < 1 || page > len(f.pages) {
		return nil, 0, nil
	}
	rows := len(f.pages[page-1])
	if len(f.pageRows) >= page && f.pageRows[page-1] > 0 {
		rows = f.pageRows[page-1]
	}
	return f.pages[page-1], rows, nil
}

func (f *fakeClient) FetchDetail(_ context.Context, slug string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls[slug]++
	html, ok := f.details[slug]
	if !ok {
		return "", errors.New("fake: no detail page")
	}
	return html, nil
}

func (f *fakeClient) FetchCalendar(_ context.Context, q domain.CalendarQuery) (domain.Calendar, error) {
	key := calKey(q)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calendarCalls[key]++
	cal, ok := f.calendars[key]
	if !ok {
		return domain.Calendar{}, errors.New("fake: calendar unavailable for " + key)
	}
	return cal, nil
}

func calKey(q domain.CalendarQuery) string {
	if q.PlaceID > 0 {
		return fmt.Sprintf("i:%d", q.PlaceID)
	}
	return "u:" + q.Slug
}

func booked(dates ...string) domain.Calendar {
	m := map[string]bool{}
	for _, d := range dates {
		m[d] = true
	}
	return domain.Calendar{Booked: m}
}

// errClient fails every listing call.
type errClient struct{ fakeClient }

func (e *errClient) ListPlaces(context.Context, int, int) ([]domain.Place, int, error) {
	return nil, 0, errors.New("fake: upstream down")
}

// fakeCache is an in-memory domain.Cache.
type fakeCache struct {
	mu    sync.Mutex
	store map[string]any
	sets  int
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *[]domain.Place:
		*d = v.([]domain.Place)
	case *int:
		*d = v.(int)
	}
	return true, nil
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	c.sets++
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}
