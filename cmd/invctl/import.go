package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an .xlsx or .csv file as new rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		res, err := newClient(cmd).Import(cmd.Context(), filepath.Base(path), f)
		if err != nil {
			var batch *inventory.BatchError
			if errors.As(err, &batch) {
				printBatchErrors(cmd, batch)
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Imported %d rows", res.Inserted)
		if res.Skipped > 0 {
			fmt.Fprintf(out, " (%d blank rows skipped)", res.Skipped)
		}
		fmt.Fprintln(out)
		if len(res.Unmapped) > 0 {
			fmt.Fprintf(out, "Ignored columns: %s\n", strings.Join(res.Unmapped, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func printBatchErrors(cmd *cobra.Command, batch *inventory.BatchError) {
	for _, e := range batch.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s %s\n", e.Level, e.Code, e.UUID)
	}
}
