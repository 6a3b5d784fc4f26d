package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"switchpac/internal/db"

	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the stored options as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, database, st, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close(database)

		var w io.Writer = os.Stdout
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("error creating %s: %w", exportOutput, err)
			}
			defer f.Close()
			w = f
		}
		if err := st.ExportJSON(context.Background(), w); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}
