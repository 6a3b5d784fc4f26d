package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"switchpac/internal/db"
	"switchpac/internal/profiles"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show profiles, references and update history",
	Long:  `Displays a dashboard of the stored options, including profile counts per type, the profiles reachable from the PAC entry, and the outcome of the last updates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config & DB
		cfg, database, st, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)

		ctx := context.Background()
		opts, err := st.Load(ctx)
		if err != nil {
			return fmt.Errorf("error loading options: %w", err)
		}
		fetches, err := st.Fetches(ctx)
		if err != nil {
			return fmt.Errorf("error loading fetches: %w", err)
		}

		// 2. Gather Stats
		dbSize := getFileSize(cfg.Database.Path)
		walSize := getFileSize(cfg.Database.Path + "-wal")

		typeCounts := make(map[profiles.Type]int)
		profiles.Each(opts, func(_ string, p profiles.Profile) {
			if !profiles.IsBuiltin(profiles.NameOf(p)) {
				typeCounts[profiles.TypeOf(p)]++
			}
		})

		var missing []string
		reachable := profiles.AllReferences(cfg.Pac.Entry, opts, func(name string) profiles.Profile {
			missing = append(missing, name)
			return nil
		})

		// 3. Print Dashboard
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

		fmt.Println("\n📊 \033[1mSWITCHPAC STATUS DASHBOARD\033[0m")
		fmt.Println("────────────────────────────────────────")

		fmt.Fprintln(w, "\033[1;36m[ SYSTEM ]\033[0m\t")
		fmt.Fprintf(w, "  Database Path:\t%s\n", cfg.Database.Path)
		fmt.Fprintf(w, "  DB Size:\t%s\n", formatBytes(dbSize))
		if walSize > 0 {
			fmt.Fprintf(w, "  WAL Size:\t%s (pending checkpoint)\n", formatBytes(walSize))
		}
		fmt.Fprintf(w, "  Options:\t%d entries, %d profiles\n", len(opts), opts.Len())
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ PROFILES ]\033[0m\t")
		if len(typeCounts) == 0 {
			fmt.Fprintln(w, "  (No profiles stored)")
		} else {
			var types []string
			for t := range typeCounts {
				types = append(types, string(t))
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(w, "  %s:\t%d\n", t, typeCounts[profiles.Type(t)])
			}
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ PAC ENTRY ]\033[0m\t")
		fmt.Fprintf(w, "  Entry:\t%s\n", cfg.Pac.Entry)
		fmt.Fprintf(w, "  Reachable:\t%d profiles\n", len(reachable))
		for _, m := range missing {
			fmt.Fprintf(w, "  ⚠️  Missing:\t%s\n", m)
		}
		for _, pub := range cfg.Publishers {
			fmt.Fprintf(w, "  Publisher:\t%s (%s)\n", pub.Name, pub.Type)
		}
		fmt.Fprintln(w, "\t")

		fmt.Fprintln(w, "\033[1;36m[ UPDATES ]\033[0m\t")
		if len(fetches) == 0 {
			fmt.Fprintln(w, "  (Never updated)")
		}
		for _, f := range fetches {
			state := "✅ " + formatBytes(int64(f.Bytes))
			if f.Error != "" {
				state = "❌ " + f.Error
			} else if f.Changed {
				state += " (changed)"
			}
			fmt.Fprintf(w, "  %s:\t%s\t%s\n", f.ProfileName, f.FetchedAt.Local().Format("2006-01-02 15:04"), state)
		}

		w.Flush()
		fmt.Println("")
		return nil
	},
}

// Helpers

func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
