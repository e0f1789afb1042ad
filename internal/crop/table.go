package crop

import (
	"fmt"
	"sort"
)

// SelectableIDs are the crop identifiers offered to users. Each must resolve
// to a non-default profile.
var SelectableIDs = []string{"tomato", "cucumber", "pepper", "lettuce", "strawberry"}

// MaxBaseYieldDensity bounds the base yield of a profile in kg/m².
const MaxBaseYieldDensity = 500

// Table is an immutable crop knowledge table. It is built once at startup and
// is safe for concurrent use.
type Table struct {
	profiles map[string]Profile
	fallback Profile
}

// NewTable creates a table from the given profiles.
// Returns ErrDuplicateProfile if two profiles share an ID.
func NewTable(profiles []Profile) (*Table, error) {
	if len(profiles) == 0 {
		return nil, ErrEmptyCropTable
	}

	m := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if _, ok := m[p.ID]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProfile, p.ID)
		}
		m[p.ID] = p
	}

	return &Table{profiles: m, fallback: DefaultProfile()}, nil
}

// Lookup returns the profile for id, or the default profile if id is unknown.
// It never fails.
func (t *Table) Lookup(id string) Profile {
	if p, ok := t.profiles[id]; ok {
		return p
	}
	return t.fallback
}

// Has reports whether id is a recognized crop.
func (t *Table) Has(id string) bool {
	_, ok := t.profiles[id]
	return ok
}

// Len returns the number of recognized crops.
func (t *Table) Len() int {
	return len(t.profiles)
}

// Profiles returns all recognized profiles sorted by ID.
func (t *Table) Profiles() []Profile {
	out := make([]Profile, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Selectable returns the profiles offered to users, in SelectableIDs order
// followed by any other profiles marked selectable.
func (t *Table) Selectable() []Profile {
	out := make([]Profile, 0, len(SelectableIDs))
	seen := make(map[string]bool, len(SelectableIDs))
	for _, id := range SelectableIDs {
		if p, ok := t.profiles[id]; ok {
			out = append(out, p)
			seen[id] = true
		}
	}
	for _, p := range t.Profiles() {
		if p.Selectable && !seen[p.ID] {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the table for data-consistency defects.
func (t *Table) Validate() error {
	for _, p := range t.Profiles() {
		if err := validateProfile(p); err != nil {
			return err
		}
	}
	for _, id := range SelectableIDs {
		if !t.Has(id) {
			return fmt.Errorf("%w: %q", ErrMissingSelectable, id)
		}
	}
	return nil
}

func validateProfile(p Profile) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidProfile)
	case p.ID == DefaultID:
		return fmt.Errorf("%w: %q is reserved", ErrInvalidProfile, p.ID)
	case !(p.BaseYieldDensity > 0):
		return fmt.Errorf("%w: %q: base yield density must be positive", ErrInvalidProfile, p.ID)
	case p.BaseYieldDensity > MaxBaseYieldDensity:
		return fmt.Errorf("%w: %q: base yield density exceeds %d", ErrInvalidProfile, p.ID, MaxBaseYieldDensity)
	case !(p.VarianceCoefficient > 0 && p.VarianceCoefficient < 1):
		return fmt.Errorf("%w: %q: variance must be in (0,1)", ErrInvalidProfile, p.ID)
	case !p.OptimalTemperature.Valid():
		return fmt.Errorf("%w: %q: temperature range min > max", ErrInvalidProfile, p.ID)
	case !p.OptimalHumidity.Valid():
		return fmt.Errorf("%w: %q: humidity range min > max", ErrInvalidProfile, p.ID)
	}
	return nil
}
