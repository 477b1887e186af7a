package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Download matching rows as a spreadsheet",
	Long: `Download the rows matching the search flags.

The format follows --format, else the file extension, else xlsx. Without a
file argument the download is saved as factory_inventory.<format>; "-"
writes to stdout.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ""
		if len(args) == 1 {
			target = args[0]
		}
		format, _ := cmd.Flags().GetString("format")
		format = exportFormat(format, target)
		if target == "" {
			target = "factory_inventory." + format
		}

		c := newClient(cmd)
		q := queryFromFlags(cmd)

		if target == "-" {
			_, err := c.Export(cmd.Context(), q, format, cmd.OutOrStdout())
			return err
		}

		f, err := os.Create(target)
		if err != nil {
			return err
		}
		n, err := c.Export(cmd.Context(), q, format, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(target)
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d bytes)\n", target, n)
		return nil
	},
}

func init() {
	addQueryFlags(exportCmd)
	exportCmd.Flags().StringP("format", "f", "", "xlsx or csv")
	rootCmd.AddCommand(exportCmd)
}

// exportFormat picks the explicit format, then the target's extension.
func exportFormat(flag, target string) string {
	if flag != "" {
		return strings.ToLower(flag)
	}
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(target), ".")); ext == "csv" || ext == "xlsx" {
		return ext
	}
	return "xlsx"
}
