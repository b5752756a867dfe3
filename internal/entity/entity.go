package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bartosicilia/TaxlexIA/constants"
	"github.com/bartosicilia/TaxlexIA/internal/vendors"
)

var ErrInvalidState = errors.New("state must be a US postal code")

// Location is a physical site of the buying business.
type Location struct {
	State  string `mapstructure:"state" json:"state"`
	County string `mapstructure:"county" json:"county"`
	City   string `mapstructure:"city" json:"city"`
	Zip    string `mapstructure:"zip" json:"zip"`
}

func (l Location) Validate() error {
	if l.State == "" {
		return nil
	}
	if !constants.IsUSState(l.State) {
		return fmt.Errorf("%w: %q", ErrInvalidState, l.State)
	}
	return nil
}

// Entity is one buying business: its locations, vendor history and export
// schema. It is owned by the caller and passed to each batch run.
type Entity struct {
	Name         string
	BusinessType string
	Locations    []Location
	Schema       ExportSchema
	Vendors      *vendors.Store
}

// New returns an entity with the default schema, no locations, an empty
// vendor history and the default business type.
func New(name string) *Entity {
	return &Entity{
		Name:         name,
		BusinessType: constants.DefaultBusinessType,
		Schema:       DefaultExportSchema(),
		Vendors:      vendors.NewStore(),
	}
}

// AddLocation appends loc, defaulting an empty state.
func (e *Entity) AddLocation(loc Location) error {
	if loc.State == "" {
		loc.State = constants.DefaultState
	}
	if err := loc.Validate(); err != nil {
		return err
	}
	e.Locations = append(e.Locations, loc)
	return nil
}

// RemoveLocation deletes the location at index i.
func (e *Entity) RemoveLocation(i int) error {
	if i < 0 || i >= len(e.Locations) {
		return fmt.Errorf("location index %d out of range [0,%d)", i, len(e.Locations))
	}
	e.Locations = append(e.Locations[:i], e.Locations[i+1:]...)
	return nil
}

// BuyerLocation renders the buyer context sent to the model. Locations
// without a state are skipped.
func (e *Entity) BuyerLocation() string {
	parts := make([]string, 0, len(e.Locations))
	for _, l := range e.Locations {
		if l.State == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s, %s %s", l.City, l.State, l.Zip))
	}
	if len(parts) == 0 {
		return constants.UnknownValue
	}
	return strings.Join(parts, " | ")
}

// BusinessTypeOrDefault returns the business type, or "General" if unset.
func (e *Entity) BusinessTypeOrDefault() string {
	if strings.TrimSpace(e.BusinessType) == "" {
		return constants.DefaultBusinessType
	}
	return e.BusinessType
}

// Validate checks every location state.
func (e *Entity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("entity name is required")
	}
	var errs []error
	for i, l := range e.Locations {
		if err := l.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("location %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
