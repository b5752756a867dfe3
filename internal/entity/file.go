package entity

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/bartosicilia/TaxlexIA/internal/vendors"
)

type fileDoc struct {
	Name          string           `mapstructure:"name"`
	BusinessType  string           `mapstructure:"business_type"`
	Locations     []Location       `mapstructure:"locations"`
	ExportColumns []Column         `mapstructure:"export_columns"`
	VendorHistory []vendors.Record `mapstructure:"vendor_history"`
}

// LoadFile reads an entity definition (YAML, JSON or TOML by extension).
// A missing export_columns key keeps the default schema; an explicit empty
// list exports whatever keys the model returns.
func LoadFile(path string) (*Entity, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read entity file %s: %w", path, err)
	}

	var doc fileDoc
	if err := v.Unmarshal(&doc); err != nil {
		return nil, fmt.Errorf("decode entity file %s: %w", path, err)
	}

	if doc.Name == "" {
		doc.Name = "Default"
	}
	e := New(doc.Name)
	if doc.BusinessType != "" {
		e.BusinessType = doc.BusinessType
	}
	for _, l := range doc.Locations {
		if err := e.AddLocation(l); err != nil {
			return nil, fmt.Errorf("entity file %s: %w", path, err)
		}
	}
	if v.IsSet("export_columns") {
		e.Schema = ExportSchema(doc.ExportColumns)
	}
	for _, r := range doc.VendorHistory {
		e.Vendors.Put(r)
	}
	return e, nil
}
