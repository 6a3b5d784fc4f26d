package main

import (
	"context"
	"fmt"
	"strings"

	"switchpac/internal/conditions"
	"switchpac/internal/db"
	"switchpac/internal/pac"
	"switchpac/internal/pacrunner"
	"switchpac/internal/profiles"

	"github.com/spf13/cobra"
)

var matchProfile string

var matchCmd = &cobra.Command{
	Use:   "match <url>",
	Short: "Show which profile and proxy a URL resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := conditions.RequestFromURL(args[0])
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}

		cfg, database, st, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)
		opts, err := st.Load(context.Background())
		if err != nil {
			return fmt.Errorf("error loading options: %w", err)
		}

		entry := matchProfile
		if entry == "" {
			entry = cfg.Pac.Entry
		}
		result, chain, err := profiles.Resolve(entry, opts, req)
		fmt.Printf("Chain:  %s\n", strings.Join(chain, " → "))
		if err != nil {
			return fmt.Errorf("match failed: %w", err)
		}
		if result.Proxy == nil {
			fmt.Printf("Result: %s (decided outside the PAC model)\n", result.ProfileName)
			return nil
		}
		fmt.Printf("Result: %s\n", profiles.PacResult(result.Proxy))
		if result.Source != "" {
			fmt.Printf("Source: %s\n", result.Source)
		}
		if result.Auth != nil {
			fmt.Printf("Auth:   %s\n", result.Auth.Username)
		}
		return nil
	},
}

var evalCmd = &cobra.Command{
	Use:   "eval <url>",
	Short: "Compile the entry profile and run the PAC script against a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := conditions.RequestFromURL(args[0])
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}

		cfg, database, st, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)
		opts, err := st.Load(context.Background())
		if err != nil {
			return fmt.Errorf("error loading options: %w", err)
		}

		entry := matchProfile
		if entry == "" {
			entry = cfg.Pac.Entry
		}
		script := pac.Compile(opts, entry, pac.Options{})
		result, err := pacrunner.Run(script, args[0], req.Host)
		if err != nil {
			return fmt.Errorf("PAC evaluation failed: %w", err)
		}
		fmt.Println(result)
		return nil
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchProfile, "profile", "", "Entry profile (default pac.entry)")
	evalCmd.Flags().StringVar(&matchProfile, "profile", "", "Entry profile (default pac.entry)")
	rootCmd.AddCommand(matchCmd, evalCmd)
}
