package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"binmaps/internal/domain"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	// MySQLDSN is go-sql-driver form; storage forces parseTime=true and loc=UTC on it.
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	PlacesBase string
	PlacesKey  string
	PlacesRPS  int

	RadiusMeters int
	Deadline     time.Duration
	EmptyCheck   time.Duration
	CacheTTL     time.Duration
	H3Resolution int
	RulesFile    string
	Origin       domain.Coords
	SweepWorkers int
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric env value")
		}
		return def
	}
	c := Config{
		AppEnv:       env("APP_ENV", "prod"),
		HTTPAddr:     env("HTTP_ADDR", ":8080"),
		MetricsAddr:  env("METRICS_ADDR", ":9100"),
		MySQLDSN:     env("MYSQL_DSN", ""),
		RedisAddr:    env("REDIS_ADDR", ""),
		RedisPass:    env("REDIS_PASSWORD", ""),
		RedisDB:      atoi("REDIS_DB", 0),
		PlacesBase:   env("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesKey:    env("PLACES_API_KEY", ""),
		PlacesRPS:    atoi("PLACES_RPS", 10),
		RadiusMeters: atoi("SEARCH_RADIUS_METERS", 5000),
		Deadline:     time.Duration(atoi("CYCLE_DEADLINE_SECONDS", 15)) * time.Second,
		EmptyCheck:   time.Duration(atoi("EMPTY_CHECK_SECONDS", 5)) * time.Second,
		CacheTTL:     time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		H3Resolution: atoi("H3_RESOLUTION", 8),
		RulesFile:    env("RULES_FILE", "rules.yaml"),
		Origin: domain.Coords{
			Lat: atof("DEFAULT_LAT", domain.DefaultOrigin.Lat),
			Lng: atof("DEFAULT_LNG", domain.DefaultOrigin.Lng),
		},
		SweepWorkers: atoi("SWEEP_WORKERS", 4),
	}
	if !c.Origin.Valid() {
		log.Warn().Float64("lat", c.Origin.Lat).Float64("lng", c.Origin.Lng).Msg("default origin out of range, using built-in")
		c.Origin = domain.DefaultOrigin
	}
	if c.PlacesKey == "" {
		log.Warn().Msg("PLACES_API_KEY is empty; searches will report provider unavailable")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
