package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"switchpac/internal/db"
	"switchpac/internal/logger"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <options.json|->",
	Short: "Replace the stored options with an exported options file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, database, st, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)

		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("error opening options: %w", err)
			}
			defer f.Close()
			r = f
		}

		n, err := st.ImportJSON(context.Background(), r)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		logger.Log.Infof("✅ Imported %d profiles.", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
