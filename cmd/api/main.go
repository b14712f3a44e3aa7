package main

import (
	"context"
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "sheltersearch/internal/adapters/http_server"
	"sheltersearch/internal/adapters/natur"
	"sheltersearch/internal/adapters/observability"
	redisad "sheltersearch/internal/adapters/redis"
	"sheltersearch/internal/app"
	"sheltersearch/internal/domain"
	"sheltersearch/internal/shared"
	mysqlrepo "sheltersearch/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	// upstream client with per-stage pacing and a shared session
	pacer := natur.NewPacer(cfg.CatalogInterval, cfg.DetailInterval, cfg.CalendarInterval)
	client := natur.New(cfg.UpstreamBase, cfg.UserAgent, cfg.RequestTimeout, pacer)
	client.Warm(context.Background())

	// optional redis: catalog snapshots + identifier write-through
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache enabled")
	}

	catalog := app.NewCatalogService(client, cache, cfg.CatalogTTL, cfg.PageSize, cfg.MaxPages)
	resolver := app.NewResolver(client, cache)
	checker := app.NewChecker(client)

	// optional mysql: warm-start the id cache from the durable store
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		repo := mysqlrepo.New(db)
		if err := repo.Migrate(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("migrate failed")
		}
		ids, err := repo.AllIdentifiers(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("loading identifiers failed")
		}
		resolver.Preload(ids)
		log.Info().Int("ids", len(ids)).Msg("identifier cache preloaded from mysql")
	}

	search := app.NewSearch(catalog, resolver, checker, cfg.Workers)

	// http
	srv := server.New(cfg.SearchTimeout)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Search: search})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
