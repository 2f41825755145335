package main

import (
	"context"
	"database/sql"
	"flag"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"

	"store_reviews/internal/adapters/observability"
	"store_reviews/internal/adapters/places"
	redisad "store_reviews/internal/adapters/redis"
	"store_reviews/internal/app"
	"store_reviews/internal/shared"
	mysqlrepo "store_reviews/internal/storage/mysql"
)

func main() {
	once := flag.Bool("once", true, "run a single ingestion pass and exit")
	schedule := flag.String("schedule", "", "cron spec with seconds (e.g. \"0 0 3 * * *\"); runs until interrupted")
	rename := flag.Bool("rename", false, "apply the built-in store rename table and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve(cfg.MetricsAddr)

	log.Info().
		Str("places_base", cfg.PlacesBase).
		Str("maps_base", cfg.MapsBase).
		Int("workers", cfg.Workers).
		Msg("ingestor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	var fetcher app.StoreFetcher
	client, err := places.New(places.Config{
		APIKey:     cfg.PlacesKey,
		PlacesBase: cfg.PlacesBase,
		MapsBase:   cfg.MapsBase,
		Language:   cfg.PlacesLanguage,
		RPS:        cfg.PlacesRPS,
	})
	if err == nil {
		leg := client.Legacy()
		fetcher = app.NewMerger(client.Current(), leg, leg, app.BrandSearchPrefixes)
	}
	ing := app.NewIngestionService(fetcher, repo, cache, cfg.Workers)

	switch {
	case *rename:
		n, err := ing.RenameStores(ctx, app.DefaultRenames)
		if err != nil {
			log.Fatal().Err(err).Msg("rename stores failed")
		}
		log.Info().Int64("rows", n).Msg("store renames applied")

	case *schedule != "" || (!*once && cfg.Schedule != ""):
		spec := *schedule
		if spec == "" {
			spec = cfg.Schedule
		}
		c := cron.New()
		if err := c.AddFunc(spec, func() { runOnce(ctx, ing) }); err != nil {
			log.Fatal().Err(err).Str("spec", spec).Msg("invalid schedule")
		}
		c.Start()
		log.Info().Str("spec", spec).Msg("scheduler started")
		<-ctx.Done()
		c.Stop()
		log.Info().Msg("scheduler stopped")

	default:
		if _, err := runOnce(ctx, ing); err != nil {
			log.Fatal().Err(err).Msg("ingestion failed")
		}
	}
}

func runOnce(ctx context.Context, ing *app.IngestionService) (int, error) {
	res, err := ing.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("ingestion run aborted")
		return 0, err
	}
	failed, inserted := 0, 0
	for _, r := range res.Results {
		if r.Status != "success" {
			failed++
		}
		if r.NewReviews != nil {
			inserted += *r.NewReviews
		}
	}
	log.Info().
		Int("stores", len(res.Results)).
		Int("failed", failed).
		Int("new_reviews", inserted).
		Msg(res.Message)
	return failed, nil
}
