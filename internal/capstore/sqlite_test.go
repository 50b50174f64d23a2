package capstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/muurk/ledble/internal/advertise"
	"github.com/muurk/ledble/internal/capability"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	mac := advertise.MAC{0xE4, 0x98, 0xBB, 0x95, 0xEE, 0x8E}

	if _, err := store.Load(ctx, mac); !errors.Is(err, capability.ErrNotCached) {
		t.Fatalf("Load on empty store: error = %v, want ErrNotCached", err)
	}

	caps := &capability.Capabilities{
		HasRGB:      true,
		HasEffects:  true,
		MaxEffectID: 0x38,
		WiringOrder: "GRB",
		ChipType:    "WS2812B",
		Provenance:  capability.ProvenanceProbed,
	}
	if err := store.Save(ctx, mac, caps); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := store.Load(ctx, mac)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if *got != *caps {
		t.Errorf("Load = %+v, want %+v", got, caps)
	}
}

func TestSQLiteStoreReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.db")
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	mac := advertise.MAC{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}

	first := &capability.Capabilities{HasRGB: true, Provenance: capability.ProvenanceDeclared}
	if err := store.Save(ctx, mac, first); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	second := &capability.Capabilities{HasRGB: true, HasWarmWhite: true, Provenance: capability.ProvenanceProbed}
	if err := store.Save(ctx, mac, second); err != nil {
		t.Fatalf("Save (replace) error: %v", err)
	}

	got, err := store.Load(ctx, mac)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !got.HasWarmWhite || got.Provenance != capability.ProvenanceProbed {
		t.Errorf("Load = %+v, want replaced entry %+v", got, second)
	}
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caps.db")
	ctx := context.Background()
	mac := advertise.MAC{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	caps := &capability.Capabilities{HasRGB: true, HasCoolWhite: true, Provenance: capability.ProvenanceOverridden}
	if err := store.Save(ctx, mac, caps); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx, mac)
	if err != nil {
		t.Fatalf("Load after reopen error: %v", err)
	}
	if *got != *caps {
		t.Errorf("Load = %+v, want %+v", got, caps)
	}
}
