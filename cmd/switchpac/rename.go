package main

import (
	"context"
	"fmt"

	"switchpac/internal/db"
	"switchpac/internal/logger"
	"switchpac/internal/profiles"

	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <from> <to>",
	Short: "Rename a profile and every reference to it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to := args[0], args[1]
		_, database, st, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)

		ctx := context.Background()
		opts, err := st.Load(ctx)
		if err != nil {
			return fmt.Errorf("error loading options: %w", err)
		}

		n, err := profiles.Rename(opts, from, to)
		if err != nil {
			return fmt.Errorf("rename failed: %w", err)
		}
		if err := st.Save(ctx, opts); err != nil {
			return fmt.Errorf("error saving options: %w", err)
		}
		logger.Log.Infof("✅ Renamed %s to %s (%d referring profiles updated).", from, to, n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renameCmd)
}
