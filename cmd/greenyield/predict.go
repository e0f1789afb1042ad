package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greenyield/greenyield/internal/api/models"
	"github.com/greenyield/greenyield/internal/forecast"
)

type predictFlags struct {
	crop        string
	temperature float64
	humidity    float64
	lightHours  float64
	growthDays  float64
	area        float64
	seed        uint64
	json        bool
}

func newPredictCmd(root *rootFlags) *cobra.Command {
	flags := &predictFlags{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the yield of a greenhouse crop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPredict(cmd, root, flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.crop, "crop", "", "Crop identifier, e.g. tomato (required)")
	f.Float64Var(&flags.temperature, "temperature", 0, "Average temperature in °C (required)")
	f.Float64Var(&flags.humidity, "humidity", 0, "Relative humidity in percent (required)")
	f.Float64Var(&flags.lightHours, "light-hours", 0, "Light hours per day (required)")
	f.Float64Var(&flags.growthDays, "growth-days", 0, "Growth period in days (required)")
	f.Float64Var(&flags.area, "area", 0, "Cultivated area in square meters (required)")
	f.Uint64Var(&flags.seed, "seed", 0, "Seed for a reproducible variability draw (0 draws randomly)")
	f.BoolVar(&flags.json, "json", false, "Print the forecast as JSON")

	for _, name := range []string{"crop", "temperature", "humidity", "light-hours", "growth-days", "area"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runPredict(cmd *cobra.Command, root *rootFlags, flags *predictFlags) error {
	table, err := root.table()
	if err != nil {
		return fmt.Errorf("load crop table: %w", err)
	}

	in, errs := forecast.Validate(&models.ForecastRequest{
		CropID:           flags.crop,
		TemperatureC:     &flags.temperature,
		HumidityPercent:  &flags.humidity,
		LightHoursPerDay: &flags.lightHours,
		GrowthPeriodDays: &flags.growthDays,
		AreaSquareMeters: &flags.area,
	})
	if len(errs) > 0 {
		return invalidInput(errs)
	}

	var opts []forecast.EngineOption
	if flags.seed != 0 {
		opts = append(opts, forecast.WithRandomSource(rand.New(rand.NewPCG(flags.seed, flags.seed))))
	}
	preview := forecast.ToAPIPreview(in, forecast.NewEngine(table, opts...).Predict(in))

	out := cmd.OutOrStdout()
	if flags.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(preview)
	}
	printPreview(out, preview)
	return nil
}

func invalidInput(errs []models.FieldError) error {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		parts = append(parts, fe.Field+" "+fe.Message)
	}
	return fmt.Errorf("invalid input: %s", strings.Join(parts, "; "))
}

func printPreview(w io.Writer, p models.ForecastPreview) {
	r := p.Result
	fmt.Fprintf(w, "Crop:          %s", r.CropID)
	if r.UsedDefaultProfile {
		fmt.Fprint(w, " (unknown, default profile)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total yield:   %d kg\n", r.TotalYieldKg)
	fmt.Fprintf(w, "Yield density: %.1f kg/m2\n", r.YieldDensityKgPerSqm)
	fmt.Fprintf(w, "Quality score: %d%%\n", r.QualityScorePercent)
	fmt.Fprintln(w, "Seasonal series:")
	for _, m := range r.MonthlySeries {
		fmt.Fprintf(w, "  %s  %6d kg\n", m.Month, m.YieldKg)
	}
	fmt.Fprintln(w, "Recommendations:")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  - %s\n", rec)
	}
}
