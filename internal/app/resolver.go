package app

import (
	"context"
	"regexp"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"sheltersearch/internal/adapters/observability"
	"sheltersearch/internal/domain"
)

// Resolution strategies, in precedence order.
const (
	StrategyCatalog = "catalog"
	StrategyCache   = "cache"
	StrategyScrape  = "scrape"
	StrategyMiss    = "miss"
)

// idPatterns are tried in order against detail-page HTML. The calendar-query
// pattern is the most specific; the bare ?i= pattern is the last resort.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)inc_ajaxgetbookingsforsingleplace\.asp\?i=(\d+)`),
	regexp.MustCompile(`(?i)data-place-id\s*=\s*"(\d+)"`),
	regexp.MustCompile(`(?i)place[_\s-]*id\s*[:=]\s*"?(\d+)"?`),
	regexp.MustCompile(`(?i)[?&]i=(\d+)`),
}

// Resolver determines the numeric booking id for a place. It keeps an
// in-process slug->id cache for the lifetime of the service, optionally
// writing through to a persistent Cache. The cache is additive-only: a
// resolved id is never evicted.
type Resolver struct {
	client  domain.BookingClient
	persist domain.Cache // nil disables write-through

	mu  sync.RWMutex
	ids map[string]int
}

func NewResolver(client domain.BookingClient, persist domain.Cache) *Resolver {
	return &Resolver{client: client, persist: persist, ids: map[string]int{}}
}

// Preload seeds the cache, typically from the durable identifier store at
// boot. Excluded category ids are dropped rather than stored.
func (r *Resolver) Preload(ids map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for slug, id := range ids {
		if id > 0 && !domain.ExcludedTypeIDs[id] {
			r.ids[slug] = id
		}
	}
}

// Cached returns the cached id for a slug, if any.
func (r *Resolver) Cached(slug string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[slug]
	return id, ok
}

// CachedCount returns the number of cached ids.
func (r *Resolver) CachedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

type strategy struct {
	name string
	fn   func(ctx context.Context, p domain.Place) (int, bool)
}

// chain is the ordered strategy list: catalog-provided id, cached id,
// detail-page scrape. Order is load-bearing; the cheap strategies come
// first.
func (r *Resolver) chain() []strategy {
	return []strategy{
		{StrategyCatalog, r.fromCatalog},
		{StrategyCache, r.fromCache},
		{StrategyScrape, r.fromScrape},
	}
}

// Resolve runs the strategy chain and reports the winning strategy name.
// A miss is not an error: the place may still be checkable through the
// slug-based calendar query.
func (r *Resolver) Resolve(ctx context.Context, p domain.Place) (int, string, bool) {
	for _, s := range r.chain() {
		if id, ok := s.fn(ctx, p); ok {
			observability.ObserveResolution(s.name)
			return id, s.name, true
		}
		if ctx.Err() != nil {
			break
		}
	}
	observability.ObserveResolution(StrategyMiss)
	return 0, StrategyMiss, false
}

func (r *Resolver) fromCatalog(ctx context.Context, p domain.Place) (int, bool) {
	id, ok := p.ValidPlaceID()
	if ok {
		r.store(ctx, p.Slug, id)
	}
	return id, ok
}

func (r *Resolver) fromCache(_ context.Context, p domain.Place) (int, bool) {
	return r.Cached(p.Slug)
}

func (r *Resolver) fromScrape(ctx context.Context, p domain.Place) (int, bool) {
	html, err := r.client.FetchDetail(ctx, p.Slug)
	if err != nil {
		log.Debug().Err(err).Str("slug", p.Slug).Msg("detail fetch failed")
		return 0, false
	}
	id, ok := ExtractPlaceID(html)
	if !ok {
		return 0, false
	}
	r.store(ctx, p.Slug, id)
	return id, true
}

func (r *Resolver) store(ctx context.Context, slug string, id int) {
	if slug == "" || id <= 0 || domain.ExcludedTypeIDs[id] {
		return
	}
	r.mu.Lock()
	r.ids[slug] = id
	r.mu.Unlock()
	if r.persist != nil {
		if err := r.persist.Set(ctx, "placeid:"+slug, id, 0); err != nil {
			log.Warn().Err(err).Str("slug", slug).Msg("id write-through failed")
		}
	}
}

// ExtractPlaceID pulls an embedded booking id out of detail-page HTML by
// pattern matching. The first finite, non-excluded match wins.
func ExtractPlaceID(html string) (int, bool) {
	for _, re := range idPatterns {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			id, err := strconv.Atoi(m[1])
			if err != nil || id <= 0 || domain.ExcludedTypeIDs[id] {
				continue
			}
			return id, true
		}
	}
	return 0, false
}
