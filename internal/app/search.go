package app

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"sheltersearch/internal/domain"
	"sheltersearch/internal/regions"
)

// Search wires the whole pipeline: catalog -> region filter -> identifier
// resolution -> availability checks.
type Search struct {
	catalog  *CatalogService
	resolver *Resolver
	checker  *Checker
	workers  int64
}

func NewSearch(catalog *CatalogService, resolver *Resolver, checker *Checker, workers int) *Search {
	if workers < 1 {
		workers = 1
	}
	return &Search{catalog: catalog, resolver: resolver, checker: checker, workers: int64(workers)}
}

// FindAvailable runs one search. Only validation and catalog failures
// surface as errors; every per-place failure is absorbed into the
// diagnostics and shrinks the result set.
func (s *Search) FindAvailable(ctx context.Context, req domain.StayRequest) (domain.SearchResult, error) {
	if req.Start.IsZero() {
		return domain.SearchResult{}, domain.ErrInvalidStart
	}
	if req.Nights < 1 {
		return domain.SearchResult{}, domain.ErrInvalidNights
	}

	places, err := s.catalog.FetchAll(ctx)
	if err != nil {
		return domain.SearchResult{}, err
	}
	var diag domain.Diagnostics
	diag.CatalogTotal = len(places)

	keys, unknown := regions.ResolveAll(req.Regions)
	for _, u := range unknown {
		log.Warn().Str("region", u).Msg("unknown region name ignored")
	}
	places = regions.Classify(places, keys)

	if f := strings.ToLower(strings.TrimSpace(req.Filter)); f != "" {
		kept := make([]domain.Place, 0, len(places))
		for _, p := range places {
			if strings.Contains(strings.ToLower(p.Title), f) {
				kept = append(kept, p)
			}
		}
		places = kept
	}
	if req.MaxPlaces > 0 && len(places) > req.MaxPlaces {
		places = places[:req.MaxPlaces]
	}
	diag.Candidates = len(places)

	log.Info().
		Int("candidates", len(places)).
		Strs("regions", keys).
		Str("start", req.Start.Format("2006-01-02")).
		Int("nights", req.Nights).
		Msg("checking availability")

	// Pooled per-place checks; results keep catalog order. The pacer still
	// gates each outbound request, so the pool widens latency overlap, not
	// the request rate.
	type slot struct {
		place domain.Place
		ok    bool
	}
	results := make([]slot, len(places))
	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex // diag

	for i, p := range places {
		if err := sem.Acquire(ctx, 1); err != nil {
			break // canceled: stop issuing new work, let in-flight drain
		}
		wg.Add(1)
		go func(i int, p domain.Place) {
			defer wg.Done()
			defer sem.Release(1)

			id, strat, resolved := s.resolver.Resolve(ctx, p)
			outcome := s.checker.Check(ctx, p, id, req)

			mu.Lock()
			switch strat {
			case StrategyCatalog:
				diag.ResolvedCatalog++
			case StrategyCache:
				diag.ResolvedCache++
			case StrategyScrape:
				diag.ResolvedScrape++
			default:
				diag.ResolutionMiss++
			}
			switch outcome {
			case Available:
				diag.Available++
			case Unavailable:
				diag.Unavailable++
			default:
				diag.Skipped++
				if ctx.Err() == nil {
					diag.CheckErrors++
				}
			}
			mu.Unlock()

			if outcome == Available {
				if resolved {
					p.PlaceID = &id
				}
				results[i] = slot{place: p, ok: true}
			}
		}(i, p)
	}
	wg.Wait()

	out := domain.SearchResult{Items: []domain.ResultItem{}}
	for _, r := range results {
		if r.ok {
			p := r.place
			out.Items = append(out.Items, domain.ResultItem{
				Name:    p.Title,
				URL:     p.URL,
				Lat:     p.Lat,
				Lng:     p.Lng,
				Region:  p.Region,
				PlaceID: p.PlaceID,
			})
		}
	}
	out.Count = len(out.Items)
	if req.Debug {
		out.Debug = &diag
	}

	log.Info().
		Int("available", out.Count).
		Int("skipped", diag.Skipped).
		Msg("search finished")
	return out, nil
}
