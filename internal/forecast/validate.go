package forecast

import (
	"math"
	"strconv"
	"strings"

	"github.com/greenyield/greenyield/internal/api/models"
)

// Plausible input bounds enforced at the API boundary.
const (
	MinTemperatureC = -50.0
	MaxTemperatureC = 60.0
	MaxLightHours   = 24.0
	MaxHumidity     = 100.0

	// MaxAreaSquareMeters keeps total yields well inside the range of the
	// stored integer column.
	MaxAreaSquareMeters = 1e6
	// MaxGrowthPeriodDays allows multi-year perennial cycles.
	MaxGrowthPeriodDays = 3650.0
)

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// Validate checks a forecast request and converts it to an engine Input.
// Unknown crop identifiers are accepted; they resolve to the default profile.
func Validate(req *models.ForecastRequest) (Input, []models.FieldError) {
	var errs []models.FieldError

	cropID := strings.TrimSpace(req.CropID)
	if cropID == "" {
		errs = append(errs, models.FieldError{Field: "cropId", Message: "is required", Code: models.CodeRequired})
	}

	temp, fe := checkNumber("temperatureC", req.TemperatureC, MinTemperatureC, MaxTemperatureC, false)
	errs = append(errs, fe...)
	hum, fe := checkNumber("humidityPercent", req.HumidityPercent, 0, MaxHumidity, false)
	errs = append(errs, fe...)

	light, growth, area, fe := validateCommon(req.LightHoursPerDay, req.GrowthPeriodDays, req.AreaSquareMeters)
	errs = append(errs, fe...)

	return Input{
		CropID:           cropID,
		TemperatureC:     temp,
		HumidityPercent:  hum,
		LightHoursPerDay: light,
		GrowthPeriodDays: growth,
		AreaSquareMeters: area,
	}, errs
}

// ValidateWeatherRequest checks a weather-derived forecast request.
// Temperature and humidity are filled in later from the observation, as is
// the light duration when the request omits it.
func ValidateWeatherRequest(req *models.WeatherForecastRequest) (Input, []models.FieldError) {
	var errs []models.FieldError

	cropID := strings.TrimSpace(req.CropID)
	if cropID == "" {
		errs = append(errs, models.FieldError{Field: "cropId", Message: "is required", Code: models.CodeRequired})
	}

	if req.Location == nil {
		errs = append(errs, models.FieldError{Field: "location", Message: "is required", Code: models.CodeRequired})
	} else {
		if req.Location.Lat < -90 || req.Location.Lat > 90 {
			errs = append(errs, models.FieldError{Field: "location.lat", Message: "must be between -90 and 90", Code: models.CodeOutOfRange})
		}
		if req.Location.Lon < -180 || req.Location.Lon > 180 {
			errs = append(errs, models.FieldError{Field: "location.lon", Message: "must be between -180 and 180", Code: models.CodeOutOfRange})
		}
	}

	var light float64
	if req.LightHoursPerDay != nil {
		v, fe := checkNumber("lightHoursPerDay", req.LightHoursPerDay, 0, MaxLightHours, false)
		errs = append(errs, fe...)
		light = v
	}
	growth, fe := checkNumber("growthPeriodDays", req.GrowthPeriodDays, 0, MaxGrowthPeriodDays, true)
	errs = append(errs, fe...)
	area, fe := checkNumber("areaSquareMeters", req.AreaSquareMeters, 0, MaxAreaSquareMeters, true)
	errs = append(errs, fe...)

	return Input{
		CropID:           cropID,
		LightHoursPerDay: light,
		GrowthPeriodDays: growth,
		AreaSquareMeters: area,
	}, errs
}

func validateCommon(lightHours, growthDays, area *float64) (light, growth, a float64, errs []models.FieldError) {
	light, fe := checkNumber("lightHoursPerDay", lightHours, 0, MaxLightHours, false)
	errs = append(errs, fe...)
	growth, fe = checkNumber("growthPeriodDays", growthDays, 0, MaxGrowthPeriodDays, true)
	errs = append(errs, fe...)
	a, fe = checkNumber("areaSquareMeters", area, 0, MaxAreaSquareMeters, true)
	errs = append(errs, fe...)
	return light, growth, a, errs
}

// checkNumber validates a required finite number in [lo, hi], or (lo, hi] when
// exclusiveMin is set.
func checkNumber(field string, v *float64, lo, hi float64, exclusiveMin bool) (float64, []models.FieldError) {
	if v == nil {
		return 0, []models.FieldError{{Field: field, Message: "is required", Code: models.CodeRequired}}
	}
	x := *v
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, []models.FieldError{{Field: field, Message: "must be a finite number", Code: models.CodeNotFinite}}
	}
	if exclusiveMin && x <= lo {
		return 0, []models.FieldError{{Field: field, Message: "must be greater than " + formatBound(lo), Code: models.CodeOutOfRange}}
	}
	if x < lo || x > hi {
		return 0, []models.FieldError{{Field: field, Message: rangeMessage(lo, hi), Code: models.CodeOutOfRange}}
	}
	return x, nil
}

func rangeMessage(lo, hi float64) string {
	return "must be between " + formatBound(lo) + " and " + formatBound(hi)
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
