package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "binmaps/internal/adapters/http_server"
	"binmaps/internal/adapters/observability"
	"binmaps/internal/adapters/places"
	redisad "binmaps/internal/adapters/redis"
	"binmaps/internal/app"
	"binmaps/internal/domain"
	"binmaps/internal/shared"
	mysqlrepo "binmaps/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	// standalone metrics listener; /metrics is also mounted on the API mux below
	observability.Serve(cfg.MetricsAddr)

	rules, catalog, err := shared.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.RulesFile).Msg("load rules failed")
	}

	client, err := places.New(cfg.PlacesBase, cfg.PlacesKey, cfg.PlacesRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize places client")
	}
	var provider domain.PlacesProvider = client

	// redis is optional; without it every term query goes to the provider
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, caching disabled")
		} else {
			defer rc.Close()
			cache = rc
			provider = app.NewCachedProvider(client, rc, cfg.CacheTTL, cfg.H3Resolution)
			log.Info().Str("addr", cfg.RedisAddr).Msg("redis cache ok")
		}
	}

	// db is optional too; without it cycles are not kept
	var repo domain.CycleRepository
	if cfg.MySQLDSN != "" {
		db, err := mysqlrepo.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()
		log.Info().Msg("database connection ok")
		repo = mysqlrepo.New(db)
	}

	opts := app.Options{Radius: cfg.RadiusMeters, Deadline: cfg.Deadline, EmptyCheck: cfg.EmptyCheck}
	q := app.NewQueryService(provider, app.NewClassifier(rules), catalog, opts, repo, cache, cfg.CacheTTL)

	// http
	srv := server.New(cfg.Deadline + 5*time.Second)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, Origin: cfg.Origin})

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Int("terms", len(catalog.Terms())).
		Bool("provider", provider.Available()).
		Bool("storage", repo != nil).
		Bool("cache", cache != nil).
		Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
