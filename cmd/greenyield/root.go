package main

import (
	"github.com/spf13/cobra"

	"github.com/greenyield/greenyield/internal/crop"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootFlags struct {
	cropTable string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "greenyield",
		Short: "Greenhouse yield forecasts from environmental conditions",
		Long: "greenyield estimates the expected harvest of a greenhouse crop from\n" +
			"temperature, humidity, light and area, and suggests adjustments.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&flags.cropTable, "crop-table", "", "YAML crop table overriding the built-in one")

	root.AddCommand(newCropsCmd(flags))
	root.AddCommand(newPredictCmd(flags))
	return root
}

func (f *rootFlags) table() (*crop.Table, error) {
	return crop.Load(f.cropTable)
}
