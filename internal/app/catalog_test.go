package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sheltersearch/internal/app"
	"sheltersearch/internal/domain"
)

func makePlaces(prefix string, n int) []domain.Place {
	out := make([]domain.Place, n)
	for i := range out {
		slug := fmt.Sprintf("%s-%d", prefix, i)
		out[i] = domain.Place{Slug: slug, Title: domain.TitleFromSlug(slug)}
	}
	return out
}

func TestFetchAll_StopsAfterShortPage(t *testing.T) {
	// 200, 200, 150 rows: terminate after page three, never request a fourth
	cl := newFakeClient()
	cl.pages = [][]domain.Place{
		makePlaces("a", 200),
		makePlaces("b", 200),
		makePlaces("c", 150),
	}

	svc := app.NewCatalogService(cl, nil, 0, 200, 500)
	got, err := svc.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 550 {
		t.Fatalf("places = %d, want 550", len(got))
	}
	if cl.listCalls != 3 {
		t.Fatalf("list calls = %d, want 3", cl.listCalls)
	}
}

func TestFetchAll_EmptyFirstPage(t *testing.T) {
	cl := newFakeClient()
	svc := app.NewCatalogService(cl, nil, 0, 200, 500)
	got, err := svc.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 0 || cl.listCalls != 1 {
		t.Fatalf("places=%d calls=%d", len(got), cl.listCalls)
	}
}

func TestFetchAll_RawRowCountDrivesTermination(t *testing.T) {
	// a full upstream page where some rows were dropped for missing slugs
	// must not end the pagination early
	cl := newFakeClient()
	cl.pages = [][]domain.Place{makePlaces("a", 190), makePlaces("b", 10)}
	cl.pageRows = []int{200, 10}

	svc := app.NewCatalogService(cl, nil, 0, 200, 500)
	got, err := svc.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 200 || cl.listCalls != 2 {
		t.Fatalf("places=%d calls=%d", len(got), cl.listCalls)
	}
}

func TestFetchAll_MaxPagesBound(t *testing.T) {
	cl := newFakeClient()
	for i := 0; i < 10; i++ {
		cl.pages = append(cl.pages, makePlaces(fmt.Sprintf("p%d", i), 200))
	}
	svc := app.NewCatalogService(cl, nil, 0, 200, 4)
	got, err := svc.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 800 || cl.listCalls != 4 {
		t.Fatalf("places=%d calls=%d", len(got), cl.listCalls)
	}
}

func TestFetchAll_PageFailureIsFatal(t *testing.T) {
	svc := app.NewCatalogService(&errClient{}, nil, 0, 200, 500)
	_, err := svc.FetchAll(context.Background())
	var ce *domain.CatalogError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CatalogError, got %v", err)
	}
	if ce.Page != 1 {
		t.Fatalf("page = %d", ce.Page)
	}
}

func TestFetchAll_SnapshotCache(t *testing.T) {
	cl := newFakeClient()
	cl.pages = [][]domain.Place{makePlaces("a", 3)}
	cache := &fakeCache{}
	svc := app.NewCatalogService(cl, cache, 5*time.Minute, 200, 500)

	if _, err := svc.FetchAll(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.FetchAll(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cl.listCalls != 1 {
		t.Fatalf("second fetch should hit the snapshot, list calls = %d", cl.listCalls)
	}
}
