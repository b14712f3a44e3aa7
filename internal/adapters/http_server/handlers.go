package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"sheltersearch/internal/app"
	"sheltersearch/internal/domain"
	"sheltersearch/internal/regions"
)

// Searcher is what the availability handler needs from the app layer.
type Searcher interface {
	FindAvailable(ctx context.Context, req domain.StayRequest) (domain.SearchResult, error)
}

type Handlers struct{ Search Searcher }

var _ Searcher = (*app.Search)(nil)

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/regions", listRegions)
	s.mux.Get("/v1/shelters/available", h.findAvailable)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

type regionEntry struct {
	Key     string   `json:"key"`
	Aliases []string `json:"aliases"`
}

func listRegions(w http.ResponseWriter, _ *http.Request) {
	out := struct {
		Regions []regionEntry `json:"regions"`
	}{Regions: []regionEntry{}}
	for _, key := range regions.Keys() {
		out.Regions = append(out.Regions, regionEntry{Key: key, Aliases: regions.Aliases(key)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) findAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse("2006-01-02", q.Get("start"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid start", "start must be a YYYY-MM-DD date")
		return
	}

	nights := 1
	if ns := q.Get("nights"); ns != "" {
		n, err := strconv.Atoi(ns)
		if err != nil || n < 1 {
			writeProblem(w, http.StatusBadRequest, "Invalid nights", "nights must be a positive integer")
			return
		}
		nights = n
	}

	maxPlaces := 0
	if ms := q.Get("max_places"); ms != "" {
		m, err := strconv.Atoi(ms)
		if err != nil || m < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid max_places", "max_places must be a non-negative integer")
			return
		}
		maxPlaces = m
	}

	req := domain.StayRequest{
		Start:     start,
		Nights:    nights,
		Regions:   q["region"],
		Filter:    q.Get("filter"),
		MaxPlaces: maxPlaces,
		Debug:     q.Get("debug") == "1" || q.Get("debug") == "true",
	}

	res, err := h.Search.FindAvailable(r.Context(), req)
	if err != nil {
		var ce *domain.CatalogError
		switch {
		case errors.As(err, &ce):
			log.Error().Err(err).Msg("catalog fetch failed")
			writeProblem(w, http.StatusBadGateway, "Upstream catalog unavailable", "could not fetch the shelter catalog")
		case errors.Is(err, domain.ErrInvalidStart), errors.Is(err, domain.ErrInvalidNights):
			writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// client went away or the handler timed out; nothing useful to write
			log.Warn().Err(err).Msg("search canceled")
		default:
			log.Error().Err(err).Msg("search failed")
			writeProblem(w, http.StatusInternalServerError, "Search failed", "")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}
