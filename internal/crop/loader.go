package crop

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed crops.yaml
var builtinTable []byte

// tableFile is the YAML layout of a crop table document.
type tableFile struct {
	Crops []profileDTO `yaml:"crops"`
}

type profileDTO struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	BaseYieldDensity float64 `yaml:"base_yield_density"`
	Variance         float64 `yaml:"variance"`
	Temperature      Range   `yaml:"temperature"`
	Humidity         Range   `yaml:"humidity"`
	Selectable       bool    `yaml:"selectable"`
}

func (d profileDTO) toProfile() Profile {
	name := d.Name
	if name == "" {
		name = d.ID
	}
	return Profile{
		ID:                  d.ID,
		Name:                name,
		BaseYieldDensity:    d.BaseYieldDensity,
		VarianceCoefficient: d.Variance,
		OptimalTemperature:  d.Temperature,
		OptimalHumidity:     d.Humidity,
		Selectable:          d.Selectable,
	}
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the built-in crop table. It panics if the embedded
// document is invalid, which can only happen at build time.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(builtinTable)
		if err != nil {
			panic(fmt.Sprintf("crop: invalid built-in table: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// Parse builds and validates a table from a YAML document.
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTableSource, err)
	}

	profiles := make([]Profile, 0, len(f.Crops))
	for _, d := range f.Crops {
		profiles = append(profiles, d.toProfile())
	}

	t, err := NewTable(profiles)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile builds a table from a YAML file on disk.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crop table: %w", err)
	}
	return Parse(data)
}

// Load returns the table at path, or the built-in table when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	return LoadFile(path)
}
