package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCropsCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "crops",
		Short: "List the crops offered for prediction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := root.table()
			if err != nil {
				return fmt.Errorf("load crop table: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tBASE KG/M2\tTEMP C\tHUMIDITY %")
			for _, p := range table.Selectable() {
				fmt.Fprintf(w, "%s\t%s\t%g\t%s\t%s\n", p.ID, p.Name, p.BaseYieldDensity, p.OptimalTemperature, p.OptimalHumidity)
			}
			return w.Flush()
		},
	}
}
