//go:build integration || !unit

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	server "sheltersearch/internal/adapters/http_server"
	"sheltersearch/internal/adapters/natur"
	"sheltersearch/internal/app"
)

// fakeUpstream emulates the booking backend: cookie-setting landing page,
// paginated listing, scrapeable detail pages, and per-place calendars.
type fakeUpstream struct {
	detailHits  int32
	listingHits int32
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "ASPSESSIONID", Value: "e2e", Path: "/"})
		fmt.Fprint(w, "<html>landing</html>")
	})

	mux.HandleFunc("/includes/branding_files/shelterbooking/includes/inc_ajaxbookingplaces.asp",
		func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&f.listingHits, 1)
			if r.URL.Query().Get("p") != "1" {
				fmt.Fprint(w, `{"BookingPlacesList":[]}`)
				return
			}
			// served with a wrong content type on purpose
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `{"BookingPlacesList":[
				{"Title":"Skovly Shelter","Uri":"/skovly-shelter/","DoubleLat":55.30,"DoubleLng":10.20,"PlaceID":3012,"RegionName":""},
				{"Title":"Hedely","Uri":"hedely","DoubleLat":56.50,"DoubleLng":9.50,"PlaceID":2001},
				{"Title":"Ingen Koordinater","Uri":"ingen-koordinater","PlaceID":2002}
			]}`)
		})

	mux.HandleFunc("/sted/skovly-shelter/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.detailHits, 1)
		fmt.Fprintf(w, `<html><body>%s
			<a href="inc_ajaxgetbookingsforsingleplace.asp?i=4711">Book</a>
			</body></html>`, strings.Repeat("<p>filler</p>", 100))
	})

	mux.HandleFunc("/includes/branding_files/shelterbooking/includes/inc_ajaxgetbookingsforsingleplace.asp",
		func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("ASPSESSIONID"); err != nil || c.Value != "e2e" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			switch r.URL.Query().Get("i") {
			case "4711":
				fmt.Fprint(w, `{"FullyBookedDates":["2025-09-05"],"PartialBookingDates":["2025-09-12"]}`)
			case "2001":
				fmt.Fprint(w, `{"FullyBookedDates":[],"PartialBookingDates":[]}`)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		})

	return mux
}

func newAPI(t *testing.T, upstreamURL string) http.Handler {
	t.Helper()
	client := natur.New(upstreamURL, "e2e-agent", 5*time.Second, nil)
	client.Warm(context.Background())

	catalog := app.NewCatalogService(client, nil, 0, 200, 500)
	resolver := app.NewResolver(client, nil)
	checker := app.NewChecker(client)
	search := app.NewSearch(catalog, resolver, checker, 2)

	srv := server.New(time.Minute)
	srv.MountHandlers(&server.Handlers{Search: search})
	return srv.Mux()
}

type searchResponse struct {
	Count int `json:"count"`
	Items []struct {
		Name    string   `json:"name"`
		URL     string   `json:"url"`
		Lat     *float64 `json:"lat"`
		Lng     *float64 `json:"lng"`
		PlaceID *int     `json:"place_id"`
		Region  string   `json:"region"`
	} `json:"items"`
	Debug *struct {
		CatalogTotal   int `json:"catalog_total"`
		Candidates     int `json:"candidates"`
		ResolvedScrape int `json:"resolved_scrape"`
		Skipped        int `json:"skipped"`
	} `json:"debug"`
}

func get(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, searchResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", target, nil))
	var out searchResponse
	if rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode: %v\n%s", err, rr.Body.String())
		}
	}
	return rr, out
}

func TestPipeline_RegionAliasScrapeAndAvailability(t *testing.T) {
	up := &fakeUpstream{}
	ts := httptest.NewServer(up.handler())
	defer ts.Close()

	api := newAPI(t, ts.URL)

	// "funen" resolves to the fyn box; only skovly-shelter sits inside it.
	// Its catalog PlaceID is a category id, so the real id 4711 must come
	// from the detail-page scrape, and the stay misses both booked days.
	rr, out := get(t, api, "/v1/shelters/available?start=2025-09-09&nights=2&region=funen&debug=1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if out.Count != 1 || out.Items[0].Name != "Skovly Shelter" {
		t.Fatalf("body = %s", rr.Body.String())
	}
	it := out.Items[0]
	if it.PlaceID == nil || *it.PlaceID != 4711 {
		t.Fatalf("place id = %v", it.PlaceID)
	}
	if it.Region != "fyn" {
		t.Fatalf("region = %q", it.Region)
	}
	if it.URL != ts.URL+"/sted/skovly-shelter/" {
		t.Fatalf("url = %q", it.URL)
	}
	if out.Debug == nil || out.Debug.CatalogTotal != 3 || out.Debug.Candidates != 1 || out.Debug.ResolvedScrape != 1 {
		t.Fatalf("debug = %+v", out.Debug)
	}

	// A stay touching the partially booked 2025-09-12 must be excluded.
	rr, out = get(t, api, "/v1/shelters/available?start=2025-09-11&nights=2&region=funen")
	if rr.Code != http.StatusOK || out.Count != 0 {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	// The id was cached after the first scrape; the second run must not
	// have scraped again.
	if hits := atomic.LoadInt32(&up.detailHits); hits != 1 {
		t.Fatalf("detail page scraped %d times, want 1", hits)
	}
}

func TestPipeline_NoRegionKeepsCoordinatelessPlaces(t *testing.T) {
	up := &fakeUpstream{}
	ts := httptest.NewServer(up.handler())
	defer ts.Close()

	api := newAPI(t, ts.URL)

	// Without a region filter all three places are candidates. The
	// coordinateless one has no detail page and no calendar, so it is
	// skipped; hedely answers via its catalog id and is free.
	rr, out := get(t, api, "/v1/shelters/available?start=2025-09-09&nights=1&debug=1")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if out.Count != 2 {
		t.Fatalf("count = %d body=%s", out.Count, rr.Body.String())
	}
	if out.Debug == nil || out.Debug.Candidates != 3 || out.Debug.Skipped != 1 {
		t.Fatalf("debug = %+v", out.Debug)
	}
}

func TestPipeline_UpstreamListingDownIs502(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	api := newAPI(t, ts.URL)
	rr, _ := get(t, api, "/v1/shelters/available?start=2025-09-09&nights=1")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
}
