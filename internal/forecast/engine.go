// Package forecast provides the greenhouse yield prediction engine and the
// forecast history service built on it.
package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/greenyield/greenyield/internal/crop"
)

// Scoring constants.
const (
	TemperatureBonus = 1.20
	HumidityBonus    = 1.15
	LightBonus       = 1.10

	// MaxQualityScore caps the quality score.
	MaxQualityScore = 95

	// qualityScale converts a yield factor into a percentage.
	qualityScale = 80
)

// OptimalLight is the inclusive range of daily light hours that earns the light bonus.
var OptimalLight = crop.Range{Min: 12, Max: 16}

// MinLightHours is the threshold below which a light recommendation is given.
const MinLightHours = 12

// MonthLabels are the labels of the seasonal series, in chronological order.
var MonthLabels = [...]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"}

// Series weight k is seriesBase + k*seriesStep.
const (
	seriesBase = 0.10
	seriesStep = 0.15
)

// FallbackRecommendations are returned when every checked condition is optimal.
var FallbackRecommendations = [...]string{
	"Conditions are optimal! Keep maintaining the current parameters",
	"Check plant health and soil quality regularly",
	"Keep the greenhouse ventilated to prevent disease",
}

// Input is a single prediction request. Fields are taken as given; validation
// happens at the boundary (see Validate).
type Input struct {
	CropID           string
	TemperatureC     float64
	HumidityPercent  float64
	LightHoursPerDay float64
	// GrowthPeriodDays is carried for record keeping; the scoring model does not use it.
	GrowthPeriodDays float64
	AreaSquareMeters float64
}

// MonthlyYield is one point of the seasonal series.
type MonthlyYield struct {
	Month   string
	YieldKg int
}

// Result is the output of a prediction.
type Result struct {
	CropID               string
	UsedDefaultProfile   bool
	YieldFactor          float64
	TotalYieldKg         int
	YieldDensityKgPerSqm float64
	QualityScorePercent  int
	MonthlySeries        []MonthlyYield
	Recommendations      []string
}

// RandomSource yields uniformly distributed values in [0,1).
type RandomSource interface {
	Float64() float64
}

// uniformSource draws from the math/rand/v2 top-level generator, which is
// safe for concurrent use.
type uniformSource struct{}

func (uniformSource) Float64() float64 { return rand.Float64() }

// UniformSource returns the production random source.
func UniformSource() RandomSource {
	return uniformSource{}
}

// Engine computes yield forecasts. It is safe for concurrent use as long as
// its RandomSource is.
type Engine struct {
	table  *crop.Table
	random RandomSource
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRandomSource sets the source of the variability draw.
func WithRandomSource(src RandomSource) EngineOption {
	return func(e *Engine) {
		e.random = src
	}
}

// NewEngine creates an engine over the given crop table.
// A nil table uses crop.DefaultTable.
func NewEngine(table *crop.Table, opts ...EngineOption) *Engine {
	if table == nil {
		table = crop.DefaultTable()
	}
	e := &Engine{table: table, random: UniformSource()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the crop table used by the engine.
func (e *Engine) Table() *crop.Table {
	return e.table
}

// Predict computes a forecast for in. It never fails; non-finite or negative
// inputs produce degenerate numbers rather than errors.
func (e *Engine) Predict(in Input) Result {
	profile := e.table.Lookup(in.CropID)

	factor := YieldFactor(profile, in)
	variability := VariabilityFactor(e.random.Float64(), profile.VarianceCoefficient)

	density := profile.BaseYieldDensity * factor * variability
	total := roundInt(density * in.AreaSquareMeters)

	return Result{
		CropID:               in.CropID,
		UsedDefaultProfile:   profile.IsDefault(),
		YieldFactor:          factor,
		TotalYieldKg:         total,
		YieldDensityKgPerSqm: round(density*10) / 10,
		QualityScorePercent:  QualityScore(factor),
		MonthlySeries:        MonthlySeries(total),
		Recommendations:      Recommendations(profile, in),
	}
}

// YieldFactor returns the environmental fit score: the product of the
// temperature, humidity and light bonuses that apply.
func YieldFactor(p crop.Profile, in Input) float64 {
	factor := 1.0
	if p.OptimalTemperature.Contains(in.TemperatureC) {
		factor *= TemperatureBonus
	}
	if p.OptimalHumidity.Contains(in.HumidityPercent) {
		factor *= HumidityBonus
	}
	if OptimalLight.Contains(in.LightHoursPerDay) {
		factor *= LightBonus
	}
	return factor
}

// VariabilityFactor maps a uniform draw u in [0,1) onto
// [1-variance, 1+variance).
func VariabilityFactor(u, variance float64) float64 {
	return 1 + (u-0.5)*variance*2
}

// QualityScore derives the quality percentage from the deterministic yield
// factor, capped at MaxQualityScore.
func QualityScore(yieldFactor float64) int {
	return min(MaxQualityScore, roundInt(yieldFactor*qualityScale))
}

// MonthlySeries returns the seasonal ramp for a total yield.
func MonthlySeries(totalYieldKg int) []MonthlyYield {
	series := make([]MonthlyYield, len(MonthLabels))
	for k, month := range MonthLabels {
		weight := seriesBase + float64(k)*seriesStep
		series[k] = MonthlyYield{
			Month:   month,
			YieldKg: roundInt(float64(totalYieldKg) * weight),
		}
	}
	return series
}

// Recommendations returns the advice for the given conditions in priority
// order. The result is never empty.
func Recommendations(p crop.Profile, in Input) []string {
	var recs []string

	temp := p.OptimalTemperature
	switch {
	case in.TemperatureC < temp.Min:
		recs = append(recs, fmt.Sprintf("Raise the temperature to %s°C for optimal growth", temp))
	case in.TemperatureC > temp.Max:
		recs = append(recs, fmt.Sprintf("Lower the temperature to %s°C for optimal growth", temp))
	}

	hum := p.OptimalHumidity
	switch {
	case in.HumidityPercent < hum.Min:
		recs = append(recs, fmt.Sprintf("Raise humidity to %s%% for better plant development", hum))
	case in.HumidityPercent > hum.Max:
		recs = append(recs, fmt.Sprintf("Lower humidity to %s%% for better plant development", hum))
	}

	if in.LightHoursPerDay < MinLightHours {
		recs = append(recs, fmt.Sprintf("Provide at least %d hours of light per day", MinLightHours))
	}

	if len(recs) == 0 {
		recs = append(recs, FallbackRecommendations[:]...)
	}
	return recs
}

// round rounds half up, so 0.5 -> 1 and -0.5 -> 0.
func round(x float64) float64 {
	return math.Floor(x + 0.5)
}

func roundInt(x float64) int {
	return int(round(x))
}
