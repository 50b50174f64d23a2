package capability

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/muurk/ledble/internal/command"
)

//go:embed products.yaml
var embeddedProducts []byte

// databaseFile is the on-disk YAML shape.
type databaseFile struct {
	Version  int                                   `yaml:"version"`
	Defaults map[command.Function]command.Template `yaml:"defaults"`
	Products []*Record                             `yaml:"products"`
}

// Database is the static product table. Load it once at startup; it is
// read-only afterwards and safe for concurrent use.
type Database struct {
	defaults map[command.Function]command.Template
	products map[uint16]*Record
}

// Load parses the embedded product table.
func Load() (*Database, error) {
	return parse(embeddedProducts)
}

// LoadFile parses a product table from disk, for hosts shipping their own.
func LoadFile(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read product table: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Database, error) {
	var file databaseFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse product table: %w", err)
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("unsupported product table version: %d (expected 1)", file.Version)
	}

	db := &Database{
		defaults: file.Defaults,
		products: make(map[uint16]*Record, len(file.Products)),
	}
	if db.defaults == nil {
		db.defaults = map[command.Function]command.Template{}
	}

	for _, rec := range file.Products {
		if _, dup := db.products[rec.ProductID]; dup {
			return nil, fmt.Errorf("duplicate product id 0x%04X in product table", rec.ProductID)
		}
		for fn, tmpl := range rec.Overrides {
			if _, err := tmpl.Placeholders(); err != nil {
				return nil, fmt.Errorf("product 0x%04X function 0x%02X: %w", rec.ProductID, fn, err)
			}
		}
		db.products[rec.ProductID] = rec
	}

	for fn, tmpl := range db.defaults {
		if _, err := tmpl.Placeholders(); err != nil {
			return nil, fmt.Errorf("default template 0x%02X: %w", fn, err)
		}
	}

	return db, nil
}

// Lookup returns the record for a product identifier.
func (db *Database) Lookup(productID uint16) (*Record, error) {
	rec, ok := db.products[productID]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%04X", ErrUnknownProduct, productID)
	}
	return rec, nil
}

// Supports reports whether the product declares the function and the
// device's firmware meets the declared minimum.
func (db *Database) Supports(productID uint16, fn command.Function, firmware uint16) bool {
	rec, ok := db.products[productID]
	if !ok {
		return false
	}
	spec, ok := rec.Functions[fn]
	if !ok {
		return false
	}
	return firmware >= spec.MinFirmware
}

// ResolveTemplate returns the template for a function: the product's
// override when present, else the global default, else ErrUnknownFunction.
// Parameter ranges declared in the product's function spec are merged into
// the returned template so the builder validates against them.
func (db *Database) ResolveTemplate(productID uint16, fn command.Function) (command.Template, error) {
	tmpl, found := command.Template{}, false

	if rec, ok := db.products[productID]; ok {
		if t, ok := rec.Overrides[fn]; ok {
			tmpl, found = t, true
		}
	}
	if !found {
		if t, ok := db.defaults[fn]; ok {
			tmpl, found = t, true
		}
	}
	if !found {
		return command.Template{}, fmt.Errorf("%w: 0x%02X for product 0x%04X",
			command.ErrUnknownFunction, fn, productID)
	}

	if tmpl.Function == 0 {
		tmpl.Function = fn
	}

	if rec, ok := db.products[productID]; ok {
		if spec, ok := rec.Functions[fn]; ok && len(spec.Params) > 0 {
			merged := make(map[string]command.Range, len(tmpl.Params)+len(spec.Params))
			for k, v := range tmpl.Params {
				merged[k] = v
			}
			for k, v := range spec.Params {
				merged[k] = v
			}
			tmpl.Params = merged
		}
	}

	return tmpl, nil
}

// Products returns the known product identifiers, for diagnostics.
func (db *Database) Products() []uint16 {
	ids := make([]uint16, 0, len(db.products))
	for id := range db.products {
		ids = append(ids, id)
	}
	return ids
}
