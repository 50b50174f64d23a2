package capstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/muurk/ledble/internal/advertise"
	"github.com/muurk/ledble/internal/capability"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS device_capabilities (
	mac         TEXT PRIMARY KEY,
	rgb         INTEGER NOT NULL,
	warm_white  INTEGER NOT NULL,
	cool_white  INTEGER NOT NULL,
	effects     INTEGER NOT NULL,
	max_effect  INTEGER NOT NULL,
	wiring      TEXT NOT NULL,
	chip        TEXT NOT NULL,
	provenance  TEXT NOT NULL,
	updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// SQLiteStore caches resolved capabilities in a local SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ capability.Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the capability cache at path. The parent
// directory is created if missing; the database runs in WAL mode.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open capability cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to capability cache: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize capability cache: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the location of the cache file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the cached capabilities for a device.
func (s *SQLiteStore) Load(ctx context.Context, mac advertise.MAC) (*capability.Capabilities, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT rgb, warm_white, cool_white, effects, max_effect, wiring, chip, provenance
		FROM device_capabilities WHERE mac = ?`, mac.String())

	var caps capability.Capabilities
	err := row.Scan(
		&caps.HasRGB, &caps.HasWarmWhite, &caps.HasCoolWhite, &caps.HasEffects,
		&caps.MaxEffectID, &caps.WiringOrder, &caps.ChipType, &caps.Provenance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", capability.ErrNotCached, mac)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load capabilities for %s: %w", mac, err)
	}
	return &caps, nil
}

// Save writes the capabilities for a device, replacing any prior entry.
func (s *SQLiteStore) Save(ctx context.Context, mac advertise.MAC, caps *capability.Capabilities) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_capabilities
			(mac, rgb, warm_white, cool_white, effects, max_effect, wiring, chip, provenance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(mac) DO UPDATE SET
			rgb = excluded.rgb,
			warm_white = excluded.warm_white,
			cool_white = excluded.cool_white,
			effects = excluded.effects,
			max_effect = excluded.max_effect,
			wiring = excluded.wiring,
			chip = excluded.chip,
			provenance = excluded.provenance,
			updated_at = excluded.updated_at`,
		mac.String(), caps.HasRGB, caps.HasWarmWhite, caps.HasCoolWhite, caps.HasEffects,
		caps.MaxEffectID, caps.WiringOrder, caps.ChipType, string(caps.Provenance),
	)
	if err != nil {
		return fmt.Errorf("failed to save capabilities for %s: %w", mac, err)
	}
	return nil
}
