package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"binmaps/internal/adapters/observability"
	"binmaps/internal/adapters/places"
	redisad "binmaps/internal/adapters/redis"
	"binmaps/internal/app"
	"binmaps/internal/domain"
	"binmaps/internal/shared"
	mysqlrepo "binmaps/internal/storage/mysql"
)

var rootOptions struct {
	RulesFile string
	LogLevel  string
}

var rootCmd = &cobra.Command{
	Use:   "probe",
	Short: "run recycling place searches from the command line",
	Long: `
probe runs the same search cycles as the API: every catalog term is queried
around an origin, results are classified, deduplicated and ranked.
`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		cfg := shared.Load()
		// stdout carries results, logs go to stderr
		log.Logger = observability.NewLoggerTo(os.Stderr, cfg.AppEnv, rootOptions.LogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootOptions.RulesFile, "rules", "", "classifier rules file (default $RULES_FILE or rules.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootOptions.LogLevel, "log-level", "warn", "log level")
	rootCmd.AddCommand(searchCmd, sweepCmd)
}

// env is the wired service plus whatever must be closed afterwards.
type env struct {
	cfg     shared.Config
	q       *app.QueryService
	closers []func() error
}

func (e *env) Close() {
	for _, c := range e.closers {
		_ = c()
	}
}

// newEnv wires the query service from the environment. Storage and cache are
// used only when configured.
func newEnv(ctx context.Context) (*env, error) {
	cfg := shared.Load()
	rulesFile := cfg.RulesFile
	if rootOptions.RulesFile != "" {
		rulesFile = rootOptions.RulesFile
	}
	rules, catalog, err := shared.LoadRules(rulesFile)
	if err != nil {
		return nil, err
	}

	client, err := places.New(cfg.PlacesBase, cfg.PlacesKey, cfg.PlacesRPS)
	if err != nil {
		return nil, fmt.Errorf("places client: %w", err)
	}
	e := &env{cfg: cfg}
	var provider domain.PlacesProvider = client

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, caching disabled")
			_ = rc.Close()
		} else {
			e.closers = append(e.closers, rc.Close)
			cache = rc
			provider = app.NewCachedProvider(client, rc, cfg.CacheTTL, cfg.H3Resolution)
		}
	}

	var repo domain.CycleRepository
	if cfg.MySQLDSN != "" {
		db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("opening database: %w", err)
		}
		e.closers = append(e.closers, db.Close)
		repo = mysqlrepo.New(db)
	}

	opts := app.Options{Radius: cfg.RadiusMeters, Deadline: cfg.Deadline, EmptyCheck: cfg.EmptyCheck}
	e.q = app.NewQueryService(provider, app.NewClassifier(rules), catalog, opts, repo, cache, cfg.CacheTTL)
	return e, nil
}

// parseCoords reads "lat,lng".
func parseCoords(s string) (domain.Coords, error) {
	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return domain.Coords{}, fmt.Errorf("origin %q: want lat,lng", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return domain.Coords{}, fmt.Errorf("origin %q: bad latitude: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil {
		return domain.Coords{}, fmt.Errorf("origin %q: bad longitude: %w", s, err)
	}
	c := domain.Coords{Lat: lat, Lng: lng}
	if !c.Valid() {
		return domain.Coords{}, fmt.Errorf("origin %q: out of range", s)
	}
	return c, nil
}
