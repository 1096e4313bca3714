package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"binmaps/internal/app"
	"binmaps/internal/domain"
)

var searchOptions struct {
	Lat, Lng float64
	JSON     bool
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search cycle and print the ranked places",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		e, err := newEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		origin := e.cfg.Origin
		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
			origin = domain.Coords{Lat: searchOptions.Lat, Lng: searchOptions.Lng}
			if !origin.Valid() {
				return fmt.Errorf("origin %v,%v out of range", origin.Lat, origin.Lng)
			}
		}

		c := e.q.NewPipeline().StartCycle(ctx, origin)
		waitWithProgress(c)
		if _, _, err := c.Wait(ctx); err != nil {
			return err
		}
		rec := c.Record()
		e.q.Save(ctx, rec)

		if searchOptions.JSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		return printRecord(os.Stdout, rec)
	},
}

func init() {
	searchCmd.Flags().Float64Var(&searchOptions.Lat, "lat", 0, "origin latitude (default $DEFAULT_LAT)")
	searchCmd.Flags().Float64Var(&searchOptions.Lng, "lng", 0, "origin longitude (default $DEFAULT_LNG)")
	searchCmd.Flags().BoolVar(&searchOptions.JSON, "json", false, "print the cycle as JSON")
}

// waitWithProgress shows finished term queries on a terminal until the cycle signals.
func waitWithProgress(c *app.Cycle) {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		return
	}
	_, total := c.Progress()
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Searching"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-c.Done():
			_ = bar.Finish()
			return
		case <-tick.C:
			done, _ := c.Progress()
			_ = bar.Set(done)
		}
	}
}

func printRecord(w io.Writer, rec domain.CycleRecord) error {
	fmt.Fprintf(w, "cycle %s at %.5f,%.5f: %s, %d/%d queries, %d places\n",
		rec.ID, rec.Origin.Lat, rec.Origin.Lng, rec.Reason, rec.QueriesCompleted, rec.QueriesTotal, len(rec.Places))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCONF\tCATEGORY\tNAME\tADDRESS")
	for i, p := range rec.Places {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", i+1, p.Confidence, app.DisplayCategory(p.MatchedTerm), p.Name, p.Address)
	}
	return tw.Flush()
}
