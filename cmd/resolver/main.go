// Command resolver backfills the durable slug->place id store: it walks the
// entire catalog and runs the identifier strategy chain for every place,
// persisting each hit to MySQL. Run it occasionally so API boots start with
// a warm identifier cache and steady-state searches rarely scrape.
package main

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"sheltersearch/internal/adapters/natur"
	"sheltersearch/internal/adapters/observability"
	"sheltersearch/internal/app"
	"sheltersearch/internal/domain"
	"sheltersearch/internal/shared"
	mysqlrepo "sheltersearch/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	if cfg.MySQLDSN == "" {
		log.Fatal().Msg("MYSQL_DSN is required for the resolver")
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	repo := mysqlrepo.New(db)
	if err := repo.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	pacer := natur.NewPacer(cfg.CatalogInterval, cfg.DetailInterval, cfg.CalendarInterval)
	client := natur.New(cfg.UpstreamBase, cfg.UserAgent, cfg.RequestTimeout, pacer)
	client.Warm(ctx)

	catalog := app.NewCatalogService(client, nil, 0, cfg.PageSize, cfg.MaxPages)
	resolver := app.NewResolver(client, nil)

	// start from what is already known so unchanged places skip the scrape
	if ids, err := repo.AllIdentifiers(ctx); err == nil {
		resolver.Preload(ids)
		log.Info().Int("ids", len(ids)).Msg("preloaded existing identifiers")
	} else {
		log.Warn().Err(err).Msg("could not preload identifiers")
	}

	places, err := catalog.FetchAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("catalog fetch failed")
	}
	log.Info().Int("places", len(places)).Int("workers", cfg.Workers).Msg("resolving identifiers")

	var resolved, missed atomic.Int64
	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, p := range places {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}
		wg.Add(1)
		go func(p domain.Place) {
			defer wg.Done()
			defer sem.Release(1)

			id, strat, ok := resolver.Resolve(ctx, p)
			if !ok {
				missed.Add(1)
				log.Debug().Str("slug", p.Slug).Msg("no identifier found")
				return
			}
			if err := repo.UpsertIdentifier(ctx, p.Slug, id); err != nil {
				log.Warn().Err(err).Str("slug", p.Slug).Msg("upsert failed")
				return
			}
			resolved.Add(1)
			log.Debug().Str("slug", p.Slug).Int("id", id).Str("strategy", strat).Msg("identifier stored")
		}(p)
	}
	wg.Wait()

	log.Info().
		Int64("resolved", resolved.Load()).
		Int64("missed", missed.Load()).
		Msg("backfill completed")
}
