package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List inventory rows matching the search flags",
	Example: `  invctl list --product-factory P100
  invctl list -s tokyo --columns companyCode,previousFactoryName --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := newClient(cmd).Load(cmd.Context(), queryFromFlags(cmd))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		columns, _ := cmd.Flags().GetStringSlice("columns")
		if err := validateColumns(columns); err != nil {
			return err
		}
		return printTable(cmd, rows, columns)
	},
}

func init() {
	addQueryFlags(listCmd)
	listCmd.Flags().Bool("json", false, "print rows as JSON")
	listCmd.Flags().StringSlice("columns", inventory.DetailFields, "columns shown in the table")
	rootCmd.AddCommand(listCmd)
}

func validateColumns(columns []string) error {
	for _, c := range columns {
		if c == inventory.IDField {
			continue
		}
		if _, ok := inventory.LookupField(c); !ok {
			return fmt.Errorf("unknown column %q", c)
		}
	}
	return nil
}

func printTable(cmd *cobra.Command, rows []inventory.Row, columns []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = row.Get(c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d rows\n", len(rows))
	return nil
}
