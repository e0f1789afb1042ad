package models

// Range is an inclusive numeric range.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// CropProfile describes the agronomic constants of a crop.
type CropProfile struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	BaseYieldDensity       float64 `json:"baseYieldDensity"`
	VarianceCoefficient    float64 `json:"varianceCoefficient"`
	OptimalTemperatureC    Range   `json:"optimalTemperatureC"`
	OptimalHumidityPercent Range   `json:"optimalHumidityPercent"`
	IsDefault              bool    `json:"isDefault"`
}

// CropList is the list of selectable crops.
type CropList struct {
	Items []CropProfile `json:"items"`
}
