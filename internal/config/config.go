// Package config loads the country/mapping/transform catalog that backs
// the importer.ConfigCatalog collaborator, via spf13/viper reading a
// TOML-formatted file, generalizing the env/flag-driven configuration
// posture of pocketbase/main.go's RootCmd flags into a data catalog
// instead of process flags.
package config

import (
	"context"
	"fmt"

	"github.com/ambre-dwings/reconcile/internal/model"
	"github.com/ambre-dwings/reconcile/internal/parser"
	"github.com/ambre-dwings/reconcile/internal/transform"
	"github.com/spf13/viper"
)

// countryEntry is the on-disk shape of one [countries.XX] table.
type countryEntry struct {
	AmbrePivot       string         `mapstructure:"ambre_pivot"`
	AmbreReceivable  string         `mapstructure:"ambre_receivable"`
	ServiceCode      string         `mapstructure:"service_code"`
	DWINGSPath       string         `mapstructure:"dwings_path"`
	Mappings         []mappingEntry `mapstructure:"mappings"`
	TransactionCodes map[string]int `mapstructure:"transaction_codes"`
}

type mappingEntry struct {
	DestField     string `mapstructure:"dest_field"`
	SourceExpr    string `mapstructure:"source_expr"`
	TransformName string `mapstructure:"transform_name"`
}

type catalogFile struct {
	Countries map[string]countryEntry `mapstructure:"countries"`
}

// Catalog is a loaded, in-memory configuration catalog. It implements
// the same method set importer.ConfigCatalog expects.
type Catalog struct {
	countries    map[string]model.Country
	mappings     map[string][]parser.FieldMapping
	codes        map[string]map[string]int
	countryTable transform.CountryTable
}

// Load reads a TOML catalog file from path using viper.
func Load(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var file catalogFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	return fromFile(file), nil
}

func fromFile(file catalogFile) *Catalog {
	c := &Catalog{
		countries:    make(map[string]model.Country, len(file.Countries)),
		mappings:     make(map[string][]parser.FieldMapping, len(file.Countries)),
		codes:        make(map[string]map[string]int, len(file.Countries)),
		countryTable: make(transform.CountryTable),
	}

	for id, entry := range file.Countries {
		c.countries[id] = model.Country{
			ID:              id,
			AmbrePivot:      entry.AmbrePivot,
			AmbreReceivable: entry.AmbreReceivable,
			ServiceCode:     entry.ServiceCode,
			DWINGSPath:      entry.DWINGSPath,
		}
		if entry.ServiceCode != "" {
			c.countryTable[entry.ServiceCode] = id
		}

		mappings := make([]parser.FieldMapping, len(entry.Mappings))
		for i, m := range entry.Mappings {
			mappings[i] = parser.FieldMapping{
				DestField:     m.DestField,
				SourceExpr:    m.SourceExpr,
				TransformName: m.TransformName,
			}
		}
		c.mappings[id] = mappings
		c.codes[id] = entry.TransactionCodes
	}

	return c
}

// ErrUnknownCountry is returned by GetCountryByID for an unconfigured id.
var ErrUnknownCountry = fmt.Errorf("unknown country")

func (c *Catalog) GetCountryByID(_ context.Context, id string) (model.Country, error) {
	country, ok := c.countries[id]
	if !ok {
		return model.Country{}, fmt.Errorf("%w: %q", ErrUnknownCountry, id)
	}
	return country, nil
}

func (c *Catalog) GetAmbreImportFields(_ context.Context, countryID string) ([]parser.FieldMapping, error) {
	mappings, ok := c.mappings[countryID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCountry, countryID)
	}
	return mappings, nil
}

// GetAmbreTransforms returns the fixed named-transform registry, keyed by
// the country table configured for this catalog (spec.md section 4.2).
func (c *Catalog) GetAmbreTransforms(_ context.Context) (map[string]transform.Func, error) {
	return transform.Registry(c.countryTable), nil
}

func (c *Catalog) GetAmbreTransactionCodes(_ context.Context, countryID string) (map[string]int, error) {
	codes, ok := c.codes[countryID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCountry, countryID)
	}
	return codes, nil
}
