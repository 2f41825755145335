package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "store_reviews/internal/adapters/http_server"
	"store_reviews/internal/adapters/observability"
	"store_reviews/internal/adapters/places"
	redisad "store_reviews/internal/adapters/redis"
	"store_reviews/internal/app"
	"store_reviews/internal/domain"
	"store_reviews/internal/shared"
	mysqlrepo "store_reviews/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	observability.Serve(cfg.MetricsAddr)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, responses will not be cached")
	}
	q := app.NewQueryService(repo, cache, cfg.CacheTTL, cfg.Location())

	// without an API key ingestion fails fast and URL resolution degrades to stored links
	var (
		fetcher app.StoreFetcher
		current domain.ReviewAdapter
		links   domain.LinkProvider
	)
	if client, err := places.New(places.Config{
		APIKey:     cfg.PlacesKey,
		PlacesBase: cfg.PlacesBase,
		MapsBase:   cfg.MapsBase,
		Language:   cfg.PlacesLanguage,
		RPS:        cfg.PlacesRPS,
	}); err != nil {
		log.Warn().Err(err).Msg("places client disabled")
	} else {
		cur, leg := client.Current(), client.Legacy()
		fetcher = app.NewMerger(cur, leg, leg, app.BrandSearchPrefixes)
		current, links = cur, cur
	}
	ing := app.NewIngestionService(fetcher, repo, cache, cfg.Workers)
	res := app.NewReviewURLResolver(repo, current, links)

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Ing: ing, Res: res, CronSecret: cfg.CronSecret})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("tz", cfg.ReportTZ).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	_ = cache.Close()
	_ = db.Close()
	log.Info().Msg("API stopped")
}
