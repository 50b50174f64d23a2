package capability

import (
	"errors"
	"testing"

	"github.com/muurk/ledble/internal/command"
)

func TestLoadEmbedded(t *testing.T) {
	db, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(db.Products()) == 0 {
		t.Fatal("expected embedded table to contain products")
	}
}

func TestLookup(t *testing.T) {
	db, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	rec, err := db.Lookup(0x0033)
	if err != nil {
		t.Fatalf("Lookup(0x0033) error: %v", err)
	}
	if rec.Name != "Addressable strip controller" {
		t.Errorf("name = %q", rec.Name)
	}
	if rec.Declared == nil || !rec.Declared.HasRGB || rec.Declared.HasWarmWhite {
		t.Errorf("declared capabilities = %+v", rec.Declared)
	}
	if rec.Declared.WiringOrder != "GRB" {
		t.Errorf("wiring = %q, want GRB", rec.Declared.WiringOrder)
	}

	if _, err := db.Lookup(0xBEEF); !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("Lookup(0xBEEF) error = %v, want ErrUnknownProduct", err)
	}
}

func TestSupports(t *testing.T) {
	db, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name     string
		product  uint16
		fn       command.Function
		firmware uint16
		want     bool
	}{
		{"declared function", 0x0035, command.FuncSetColor, 0x0100, true},
		{"firmware too old", 0x0033, command.FuncSetEffect, 0x0101, false},
		{"firmware meets minimum", 0x0033, command.FuncSetEffect, 0x0102, true},
		{"unknown product", 0xBEEF, command.FuncSetColor, 0x0100, false},
		{"unknown function", 0x0035, command.Function(0x99), 0x0100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := db.Supports(tt.product, tt.fn, tt.firmware); got != tt.want {
				t.Errorf("Supports(0x%04X, 0x%02X, 0x%04X) = %v, want %v",
					tt.product, tt.fn, tt.firmware, got, tt.want)
			}
		})
	}
}

func TestResolveTemplateDefault(t *testing.T) {
	db, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tmpl, err := db.ResolveTemplate(0x0035, command.FuncSetPower)
	if err != nil {
		t.Fatalf("ResolveTemplate error: %v", err)
	}
	frame, err := command.Build(tmpl, map[string]int{"power": int(command.PowerOn)})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	want := []byte{0x71, 0x23, 0x0F, 0xA3}
	if len(frame) != len(want) {
		t.Fatalf("frame = % X, want % X", frame, want)
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Fatalf("frame = % X, want % X", frame, want)
		}
	}
}

func TestResolveTemplateOverride(t *testing.T) {
	db, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// The legacy controller replaces the stock effect command with the
	// older two-parameter opcode.
	tmpl, err := db.ResolveTemplate(0x0004, command.FuncSetEffect)
	if err != nil {
		t.Fatalf("ResolveTemplate error: %v", err)
	}
	if tmpl.Function != command.FuncSetEffectL {
		t.Errorf("function = 0x%02X, want 0x%02X", tmpl.Function, command.FuncSetEffectL)
	}
	frame, err := command.Build(tmpl, map[string]int{"effect": 0x25, "speed": 0x10})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if frame[0] != 0x61 {
		t.Errorf("opcode = 0x%02X, want 0x61", frame[0])
	}
}

func TestResolveTemplateUnknownFunction(t *testing.T) {
	db, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, err := db.ResolveTemplate(0x0035, command.Function(0x99)); !errors.Is(err, command.ErrUnknownFunction) {
		t.Errorf("error = %v, want ErrUnknownFunction", err)
	}
}

func TestParseRejectsBadTable(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"wrong version", "version: 2\n"},
		{"duplicate product", `
version: 1
products:
  - id: 0x0001
  - id: 0x0001
`},
		{"malformed override", `
version: 1
products:
  - id: 0x0001
    overrides:
      0x31:
        hex: "31{red"
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse([]byte(tt.yaml)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
