package capability

import (
	"errors"

	"github.com/muurk/ledble/internal/command"
)

var (
	// ErrUnknownProduct indicates the product table has no record for the
	// identifier. Non-fatal: callers fall back to probing.
	ErrUnknownProduct = errors.New("capability: unknown product")

	// ErrNotCached indicates the store holds nothing for the device.
	ErrNotCached = errors.New("capability: not cached")
)

// Provenance records how a capability set was obtained.
type Provenance string

const (
	// ProvenanceDeclared means the static product table supplied the set.
	ProvenanceDeclared Provenance = "declared"

	// ProvenanceProbed means active probing inferred the set. Probed sets
	// are authoritative until the host explicitly invalidates them.
	ProvenanceProbed Provenance = "probed"

	// ProvenanceOverridden means the host replaced the set manually.
	ProvenanceOverridden Provenance = "overridden"
)

// Capabilities is the resolved, per-device capability set.
type Capabilities struct {
	HasRGB       bool `yaml:"rgb" json:"rgb"`
	HasWarmWhite bool `yaml:"warm_white" json:"warm_white"`
	HasCoolWhite bool `yaml:"cool_white" json:"cool_white"`
	HasEffects   bool `yaml:"effects" json:"effects"`

	// MaxEffectID bounds the usable preset effect ids.
	MaxEffectID uint8 `yaml:"max_effect" json:"max_effect"`

	// WiringOrder is the strip's color order ("RGB", "GRB", ...), consumed
	// opaquely from host configuration.
	WiringOrder string `yaml:"wiring" json:"wiring"`

	// ChipType is the LED chip type ("WS2812B", ...), also opaque here.
	ChipType string `yaml:"chip" json:"chip"`

	Provenance Provenance `yaml:"provenance" json:"provenance"`
}

// FunctionSpec declares one supported function for a product: the minimum
// firmware that carries it and the value ranges of its parameters.
type FunctionSpec struct {
	MinFirmware uint16                   `yaml:"min_firmware"`
	Params      map[string]command.Range `yaml:"params"`
}

// Record is the static, immutable description of one product identifier.
type Record struct {
	ProductID uint16 `yaml:"id"`
	Name      string `yaml:"name"`

	// Functions lists the declared function codes. Absence means the
	// product does not (declaredly) support the function.
	Functions map[command.Function]FunctionSpec `yaml:"functions"`

	// Overrides replaces the global default template for a function code
	// on this product.
	Overrides map[command.Function]command.Template `yaml:"overrides"`

	// Declared is the product's declared capability set, nil when the
	// vendor data leaves it unknown and probing is required.
	Declared *Capabilities `yaml:"capabilities"`
}
