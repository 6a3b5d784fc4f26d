package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"switchpac/internal/db"
	"switchpac/internal/fetch"
	"switchpac/internal/logger"
	"switchpac/internal/metrics"
	"switchpac/internal/model"
	"switchpac/internal/profiles"
	"switchpac/internal/updater"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var flagWorkers int
var flagReport bool

var updateCmd = &cobra.Command{
	Use:   "update [profile_names...]",
	Short: "Download rule lists and PAC scripts for profiles with a source URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, database, st, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		opts, err := st.Load(ctx)
		if err != nil {
			return fmt.Errorf("error loading options: %w", err)
		}

		targets := updater.Targets(opts)
		if len(args) > 0 {
			wanted := make(map[string]bool)
			for _, a := range args {
				wanted[a] = true
			}
			var filtered []profiles.Profile
			for _, p := range targets {
				if wanted[profiles.NameOf(p)] {
					filtered = append(filtered, p)
				}
			}
			targets = filtered
		}
		if len(targets) == 0 {
			logger.Log.Warn("No profiles with a source URL matched.")
			return nil
		}

		fetcher, err := fetch.New(cfg.Fetch.Timeout, cfg.Fetch.Retries, cfg.Fetch.ProxyURL)
		if err != nil {
			return fmt.Errorf("error creating fetcher: %w", err)
		}

		workers := cfg.Fetch.Workers
		if flagWorkers > 0 {
			workers = flagWorkers
		}

		bar := progressbar.NewOptions(len(targets),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetWidth(15),
			progressbar.OptionSetDescription("[cyan]Updating...[reset]"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)

		mc := metrics.New()
		var mu sync.Mutex
		changed := 0
		results := updater.Run(ctx, fetcher, targets, workers, func(r updater.Result) {
			if r.Err != nil {
				mc.RecordFailure(r.Err)
			} else {
				mc.RecordSuccess(r.Duration, r.Bytes, r.Changed)
			}

			mu.Lock()
			defer mu.Unlock()
			if r.Changed {
				changed++
				bar.Describe(fmt.Sprintf("[cyan]Changed: %d[reset]", changed))
			}
			bar.Add(1)
		})
		bar.Finish()
		fmt.Fprint(os.Stderr, "\n")

		failed := 0
		for _, r := range results {
			rec := model.Fetch{ProfileName: r.ProfileName, URL: r.URL, Bytes: r.Bytes, Changed: r.Changed}
			if r.Err != nil {
				failed++
				rec.Error = r.Err.Error()
				logger.Log.Warnf("%s: %v", r.ProfileName, r.Err)
			}
			if err := st.RecordFetch(context.Background(), rec); err != nil {
				logger.Log.Warnf("Failed to record fetch: %v", err)
			}
		}

		// Fetched content lives in the profiles, so the whole collection is saved.
		if err := st.Save(context.Background(), opts); err != nil {
			return fmt.Errorf("error saving options: %w", err)
		}
		logger.Log.Infof("✅ Update complete. Changed: %d, Failed: %d, Total: %d", changed, failed, len(results))
		if flagReport || verbose {
			mc.PrintReport(os.Stdout, cfg.Fetch.Timeout)
		}
		return nil
	},
}

func init() {
	updateCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Override worker count")
	updateCmd.Flags().BoolVar(&flagReport, "report", false, "Print download statistics")
	rootCmd.AddCommand(updateCmd)
}
