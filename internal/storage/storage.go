// Package storage implements the bounded, size-checked key-value store the
// rest of the core persists through: one JSON blob per reserved key,
// backed by SQLite, with a migration step that splits the legacy shared key
// a prior release used for both optimizer history and thermal samples.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Reserved keys. Invariant: no two learners share a key.
const (
	KeyThermalSamples        = "thermal_samples"
	KeyThermalAggregated     = "thermal_aggregated"
	KeyThermalCharacteristics = "thermal_characteristics"
	KeyAdaptiveParameters    = "adaptive_parameters"
	KeyHotWaterSamples       = "hot_water_samples"
	KeyHotWaterAggregated    = "hot_water_aggregated"
	KeyHotWaterPattern       = "hot_water_pattern"
	KeyCOPDaily              = "cop_daily"
	KeyCOPWeekly             = "cop_weekly"
	KeyCOPMonthly            = "cop_monthly"
	KeyOptimizationHistory   = "optimization_history"
	KeyPriceCache            = "price_cache"
	KeyFXCache               = "fx_cache"

	// legacyCombinedKey was shared between optimizer history and thermal
	// samples before this store split them; first-boot migration moves its
	// content to KeyOptimizationHistory and clears it.
	legacyCombinedKey = "history_and_samples"
)

// maxValueBytes bounds a single stored blob; maxTotalBytes bounds the whole
// store, consistent with the ~1 MB host-provided persistence budget.
const (
	maxValueBytes = 256 * 1024
	maxTotalBytes = 1024 * 1024
)

// Store is a size-bounded, atomic key-value store over SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the store at path and runs first-boot migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening storage db: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrateLegacyCombinedKey(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initialize() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("initializing storage schema: %w", err)
	}
	return nil
}

// migrateLegacyCombinedKey moves a legacy shared-key blob to the correct
// target key on first boot, per the design's reserved-key split.
func (s *Store) migrateLegacyCombinedKey() error {
	raw, ok, err := s.getRaw(legacyCombinedKey)
	if err != nil || !ok {
		return err
	}
	if _, exists, _ := s.getRaw(KeyOptimizationHistory); !exists {
		if err := s.setRaw(KeyOptimizationHistory, raw); err != nil {
			return err
		}
	}
	return s.Delete(legacyCombinedKey)
}

func (s *Store) getRaw(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading key %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) setRaw(key, value string) error {
	if len(value) > maxValueBytes {
		return fmt.Errorf("value for key %q exceeds %d bytes", key, maxValueBytes)
	}
	if total, err := s.totalBytes(); err == nil && total+int64(len(value)) > maxTotalBytes {
		return fmt.Errorf("storage budget exceeded writing key %q", key)
	}
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

func (s *Store) totalBytes() (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(LENGTH(value)) FROM kv`).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// Get unmarshals the value stored at key into dst; ok is false when the key
// is absent.
func (s *Store) Get(key string, dst any) (bool, error) {
	raw, ok, err := s.getRaw(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("unmarshaling key %q: %w", key, err)
	}
	return true, nil
}

// Set marshals v and writes it to key, subject to the size bounds.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling key %q: %w", key, err)
	}
	return s.setRaw(key, string(raw))
}

// Delete removes a key; deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}
