package main

import (
	"context"
	"fmt"
	"time"

	"switchpac/internal/config"
	"switchpac/internal/db"
	"switchpac/internal/logger"
	"switchpac/internal/pac"
	"switchpac/internal/profiles"
	"switchpac/internal/publishers"

	"github.com/spf13/cobra"
)

var compileParams map[string]string
var compileTo []string
var compileNoComments bool

var compileCmd = &cobra.Command{
	Use:   "compile [entry]",
	Short: "Compile a profile into a PAC script and publish it",
	Long: `Compile the entry profile (default pac.entry from the config) and everything it
references into one PAC script, then run every configured publisher, or only those
named with --to. Use --param to override publisher configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, database, st, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)
		if len(compileTo) > 0 {
			cfg.FilterPublishers(compileTo)
		}
		if len(cfg.Publishers) == 0 {
			logger.Log.Warn("No publishers matched.")
			return nil
		}

		opts, err := st.Load(context.Background())
		if err != nil {
			return fmt.Errorf("error loading options: %w", err)
		}

		scripts := make(map[string]string)
		for _, pubCfg := range cfg.Publishers {
			entry := entryFor(cfg, pubCfg, args)
			if _, ok := scripts[entry]; !ok {
				scripts[entry] = compileEntry(opts, entry, cfg.Pac.Comments && !compileNoComments)
			}

			logger.Log.Infof("📨 Running Publisher: %s (%s) for %s...", pubCfg.Name, pubCfg.Type, entry)
			plugin, err := publishers.Get(pubCfg.Type)
			if err != nil {
				logger.Log.Warnf("Plugin not found: %v", err)
				continue
			}

			params := applyParams(pubCfg.Params, compileParams)
			params[publishers.ParamTimeout] = cfg.Fetch.Timeout
			params[publishers.ParamRetries] = cfg.Fetch.Retries
			if cfg.Fetch.ProxyURL != "" {
				params[publishers.ParamProxyURL] = cfg.Fetch.ProxyURL
			}

			if err := plugin.Publish(scripts[entry], params); err != nil {
				logger.Log.Errorf("Publish failed: %v", err)
			} else {
				logger.Log.Info("✅ Published successfully.")
			}
		}
		return nil
	},
}

func entryFor(cfg *config.Config, pubCfg config.PublisherConfig, args []string) string {
	switch {
	case len(args) > 0:
		return args[0]
	case pubCfg.Entry != "":
		return pubCfg.Entry
	}
	return cfg.Pac.Entry
}

// compileEntry generates the script for entry. pac.Compile warns about
// profiles that are referenced but missing.
func compileEntry(opts profiles.Options, entry string, comments bool) string {
	start := time.Now()
	script := pac.Compile(opts, entry, pac.Options{Comments: comments})
	logger.Log.Debugf("Compiled %s in %s (%d bytes)", entry, time.Since(start), len(script))
	return script
}

func init() {
	compileCmd.Flags().StringSliceVar(&compileTo, "to", nil, "Only run the named publishers")
	compileCmd.Flags().BoolVar(&compileNoComments, "no-comments", false, "Strip comments from the generated script")
	compileCmd.Flags().StringToStringVarP(&compileParams, "param", "p", nil, "Override publisher params (e.g. -p path=out.pac)")
	rootCmd.AddCommand(compileCmd)
}
