// Package crop provides the crop knowledge table used by the yield forecaster.
package crop

import (
	"errors"
	"strconv"
)

// Table errors.
var (
	ErrInvalidProfile     = errors.New("invalid crop profile")
	ErrMissingSelectable  = errors.New("selectable crop resolves to default profile")
	ErrDuplicateProfile   = errors.New("duplicate crop profile")
	ErrEmptyCropTable     = errors.New("crop table is empty")
	ErrInvalidTableSource = errors.New("invalid crop table source")
)

// Default profile constants, used for any crop identifier not in the table.
const (
	DefaultID                  = "default"
	DefaultBaseYieldDensity    = 20.0
	DefaultVarianceCoefficient = 0.15
)

// Range is an inclusive closed interval.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range, inclusive of both ends.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Valid reports whether Min <= Max.
func (r Range) Valid() bool {
	return r.Min <= r.Max
}

// String formats the range as "min-max", e.g. "20-28".
func (r Range) String() string {
	return strconv.FormatFloat(r.Min, 'f', -1, 64) + "-" + strconv.FormatFloat(r.Max, 'f', -1, 64)
}

// Profile holds the agronomic constants for one crop.
type Profile struct {
	// ID is the lookup key, e.g. "tomato".
	ID string

	// Name is a human-readable crop name.
	Name string

	// BaseYieldDensity is the yield in kg/m² under ideal conditions.
	BaseYieldDensity float64

	// VarianceCoefficient is the maximum fractional random deviation, in (0,1).
	VarianceCoefficient float64

	// OptimalTemperature is the optimal air temperature range in °C.
	OptimalTemperature Range

	// OptimalHumidity is the optimal relative humidity range in %.
	OptimalHumidity Range

	// Selectable marks crops offered to users for selection.
	Selectable bool
}

// IsDefault reports whether p is the fallback profile.
func (p Profile) IsDefault() bool {
	return p.ID == DefaultID
}

// DefaultProfile returns the fallback profile for unrecognized crops.
func DefaultProfile() Profile {
	return Profile{
		ID:                  DefaultID,
		Name:                "Generic crop",
		BaseYieldDensity:    DefaultBaseYieldDensity,
		VarianceCoefficient: DefaultVarianceCoefficient,
		OptimalTemperature:  Range{Min: 20, Max: 28},
		OptimalHumidity:     Range{Min: 60, Max: 80},
	}
}
