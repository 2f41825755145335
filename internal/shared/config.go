package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPAddr       string
	MetricsAddr    string
	MySQLDSN       string
	RedisAddr      string
	RedisDB        int
	RedisPass      string
	PlacesKey      string
	PlacesBase     string
	MapsBase       string
	PlacesLanguage string
	PlacesRPS      int
	Workers        int
	Schedule       string
	CacheTTL       time.Duration
	ReportTZ       string
	CronSecret     string
}

// Load reads the environment after overlaying .env and .env.local (later files win).
func Load() Config {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Overload(f)
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:         env("APP_ENV", "prod"),
		LogLevel:       env("LOG_LEVEL", "info"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ""),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/reviews?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisPass:      env("REDIS_PASSWORD", ""),
		RedisDB:        atoi("REDIS_DB", 0),
		PlacesKey:      env("GOOGLE_PLACES_API_KEY", ""),
		PlacesBase:     env("PLACES_BASE_URL", "https://places.googleapis.com/v1"),
		MapsBase:       env("MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),
		PlacesLanguage: env("PLACES_LANGUAGE", "ja"),
		PlacesRPS:      atoi("PLACES_RPS", 5),
		Workers:        atoi("INGEST_WORKERS", 1),
		Schedule:       env("INGEST_SCHEDULE", "0 0 3 * * *"),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		ReportTZ:       env("REPORT_TZ", "UTC"),
		CronSecret:     env("CRON_SECRET", ""),
	}
	if c.PlacesKey == "" {
		log.Warn().Msg("GOOGLE_PLACES_API_KEY is empty")
	}
	return c
}

// Location resolves ReportTZ, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTZ)
	if err != nil {
		log.Warn().Err(err).Str("tz", c.ReportTZ).Msg("unknown REPORT_TZ, using UTC")
		return time.UTC
	}
	return loc
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
