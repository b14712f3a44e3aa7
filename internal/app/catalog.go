package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"sheltersearch/internal/domain"
)

const catalogCacheKey = "catalog:v1"

// CatalogService builds the full place catalog from the paginated listing
// endpoint, optionally serving a short-TTL snapshot between runs.
type CatalogService struct {
	client   domain.BookingClient
	cache    domain.Cache // nil disables snapshotting
	ttl      time.Duration
	pageSize int
	maxPages int
}

func NewCatalogService(client domain.BookingClient, cache domain.Cache, ttl time.Duration, pageSize, maxPages int) *CatalogService {
	if pageSize <= 0 {
		pageSize = 200
	}
	if maxPages <= 0 {
		maxPages = 500
	}
	return &CatalogService{client: client, cache: cache, ttl: ttl, pageSize: pageSize, maxPages: maxPages}
}

// FetchAll pages through the listing until a short or empty page. Any page
// failure is fatal: region filtering and id resolution assume a complete
// catalog, so there is no safe partial result. The maxPages bound guards
// against an upstream that never stops paginating.
func (s *CatalogService) FetchAll(ctx context.Context) ([]domain.Place, error) {
	if s.cache != nil {
		var snap []domain.Place
		if ok, _ := s.cache.Get(ctx, catalogCacheKey, &snap); ok && len(snap) > 0 {
			log.Debug().Int("places", len(snap)).Msg("catalog served from snapshot cache")
			return snap, nil
		}
	}

	var all []domain.Place
	for page := 1; page <= s.maxPages; page++ {
		places, rows, err := s.client.ListPlaces(ctx, page, s.pageSize)
		if err != nil {
			return nil, &domain.CatalogError{Page: page, Err: err}
		}
		all = append(all, places...)
		if rows < s.pageSize {
			break
		}
	}
	log.Info().Int("places", len(all)).Msg("catalog fetched")

	if s.cache != nil && len(all) > 0 {
		if err := s.cache.Set(ctx, catalogCacheKey, all, int(s.ttl.Seconds())); err != nil {
			log.Warn().Err(err).Msg("catalog snapshot cache write failed")
		}
	}
	return all, nil
}
