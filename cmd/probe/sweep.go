package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"binmaps/internal/adapters/observability"
	"binmaps/internal/domain"
)

var sweepOptions struct {
	Origins []string
	Workers int
	Metrics string
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one search cycle per origin and store the results",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if len(sweepOptions.Origins) == 0 {
			return errors.New("at least one --origin is required")
		}
		origins := make([]domain.Coords, 0, len(sweepOptions.Origins))
		for _, s := range sweepOptions.Origins {
			c, err := parseCoords(s)
			if err != nil {
				return err
			}
			origins = append(origins, c)
		}

		ctx := cmd.Context()
		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		if e.cfg.MySQLDSN == "" {
			log.Warn().Msg("MYSQL_DSN is empty; sweep results are printed only")
		}
		observability.Serve(sweepOptions.Metrics)

		workers := sweepOptions.Workers
		if workers <= 0 {
			workers = e.cfg.SweepWorkers
		}

		var bar *progressbar.ProgressBar
		if isatty.IsTerminal(os.Stderr.Fd()) {
			bar = progressbar.NewOptions(len(origins),
				progressbar.OptionSetDescription("Sweeping"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}

		return sweep(ctx, origins, workers, e.q.Search, func(origin domain.Coords, rec domain.CycleRecord, err error) {
			if err != nil {
				log.Warn().Err(err).Float64("lat", origin.Lat).Float64("lng", origin.Lng).Msg("sweep search failed")
			} else {
				fmt.Printf("%s\t%.5f,%.5f\t%s\t%d\n", rec.ID, origin.Lat, origin.Lng, rec.Reason, len(rec.Places))
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		})
	},
}

type searchFunc func(ctx context.Context, origin domain.Coords, observers ...domain.Observer) (domain.CycleRecord, error)

// sweep runs search for every origin, at most workers at a time. report is
// called serially. It returns only after every started search has finished.
func sweep(ctx context.Context, origins []domain.Coords, workers int, search searchFunc,
	report func(domain.Coords, domain.CycleRecord, error)) error {
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, origin := range origins {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			// running searches still use the db and cache closed by the caller
			wg.Wait()
			return fmt.Errorf("semaphore acquire: %w", err)
		}
		wg.Add(1)
		go func(origin domain.Coords) {
			defer wg.Done()
			defer sem.Release(1)

			rec, err := search(ctx, origin)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
			}
			report(origin, rec, err)
		}(origin)
	}
	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d searches failed", failed, len(origins))
	}
	return nil
}

func init() {
	sweepCmd.Flags().StringArrayVar(&sweepOptions.Origins, "origin", nil, "origin as lat,lng (repeatable)")
	sweepCmd.Flags().IntVar(&sweepOptions.Workers, "workers", 0, "concurrent cycles (default $SWEEP_WORKERS)")
	sweepCmd.Flags().StringVar(&sweepOptions.Metrics, "metrics-addr", "", "serve prometheus metrics on this address while sweeping")
}
