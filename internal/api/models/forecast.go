package models

// ForecastRequest is the request body for computing a forecast.
// Numeric fields are pointers so that missing fields can be reported.
type ForecastRequest struct {
	CropID           string   `json:"cropId"`
	TemperatureC     *float64 `json:"temperatureC"`
	HumidityPercent  *float64 `json:"humidityPercent"`
	LightHoursPerDay *float64 `json:"lightHoursPerDay"`
	GrowthPeriodDays *float64 `json:"growthPeriodDays"`
	AreaSquareMeters *float64 `json:"areaSquareMeters"`
}

// WeatherForecastRequest is the request body for a forecast whose temperature
// and humidity are taken from current weather at the greenhouse location.
type WeatherForecastRequest struct {
	CropID           string   `json:"cropId"`
	Location         *Point   `json:"location"`
	LightHoursPerDay *float64 `json:"lightHoursPerDay"`
	GrowthPeriodDays *float64 `json:"growthPeriodDays"`
	AreaSquareMeters *float64 `json:"areaSquareMeters"`
}

// ForecastInput echoes the validated input of a forecast.
type ForecastInput struct {
	CropID           string  `json:"cropId"`
	TemperatureC     float64 `json:"temperatureC"`
	HumidityPercent  float64 `json:"humidityPercent"`
	LightHoursPerDay float64 `json:"lightHoursPerDay"`
	GrowthPeriodDays float64 `json:"growthPeriodDays"`
	AreaSquareMeters float64 `json:"areaSquareMeters"`
}

// MonthlyYield is one point of the seasonal yield series.
type MonthlyYield struct {
	Month   string `json:"month"`
	YieldKg int    `json:"yieldKg"`
}

// ForecastResult is the computed forecast.
type ForecastResult struct {
	CropID               string         `json:"cropId"`
	UsedDefaultProfile   bool           `json:"usedDefaultProfile"`
	TotalYieldKg         int            `json:"totalYieldKg"`
	YieldDensityKgPerSqm float64        `json:"yieldDensityKgPerSqm"`
	QualityScorePercent  int            `json:"qualityScorePercent"`
	MonthlySeries        []MonthlyYield `json:"monthlySeries"`
	Recommendations      []string       `json:"recommendations"`
}

// Forecast is a stored forecast.
type Forecast struct {
	ID        string         `json:"id"`
	Input     ForecastInput  `json:"input"`
	Result    ForecastResult `json:"result"`
	CreatedAt Timestamp      `json:"createdAt"`
}

// ForecastPreview is a forecast that was computed but not stored.
type ForecastPreview struct {
	Input  ForecastInput  `json:"input"`
	Result ForecastResult `json:"result"`
}

// WeatherConditions describes the observation used for a weather-derived forecast.
type WeatherConditions struct {
	Provider        string    `json:"provider"`
	TemperatureC    float64   `json:"temperatureC"`
	HumidityPercent float64   `json:"humidityPercent"`
	ObservedAt      Timestamp `json:"observedAt"`
}

// WeatherForecast is a preview forecast built from current weather.
type WeatherForecast struct {
	Conditions WeatherConditions `json:"conditions"`
	Input      ForecastInput     `json:"input"`
	Result     ForecastResult    `json:"result"`
}

// PagedForecasts represents a paginated list of forecasts.
type PagedForecasts struct {
	Items []Forecast        `json:"items"`
	Meta  PagedResponseMeta `json:"meta"`
}
