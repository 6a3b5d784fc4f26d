package main

import (
	"fmt"
	"os"
	"strconv"

	"switchpac/internal/config"
	"switchpac/internal/db"
	"switchpac/internal/logger"
	"switchpac/internal/store"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var cfgFile string
var verbose bool
var logFile string

var rootCmd = &cobra.Command{
	Use:           "switchpac",
	Short:         "Manage proxy switching profiles and compile them into PAC scripts",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verbose, logFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (overwrites file)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}

// openStore loads the config and connects to its database. Callers close
// the returned handle with db.Close; commands holding it return errors
// instead of exiting so the deferred close runs.
func openStore() (*config.Config, *gorm.DB, *store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error connecting to DB: %w", err)
	}
	return cfg, database, store.New(database), nil
}

// applyParams merges --param overrides into params, converting numbers.
func applyParams(params map[string]interface{}, overrides map[string]string) map[string]interface{} {
	if params == nil {
		params = make(map[string]interface{})
	}
	for k, v := range overrides {
		if intVal, err := strconv.Atoi(v); err == nil {
			params[k] = intVal
		} else {
			params[k] = v
		}
	}
	return params
}
