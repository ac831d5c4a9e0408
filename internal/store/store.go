// Package store wraps SQLite access for sources, reports, incidents,
// centerlines, and rollups.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a single SQLite database handle.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite writers must be serialized; one conn keeps busy_timeout meaningful
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for callers that need it directly (the HTTP
// API's health check pings it).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sources (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            source_type TEXT NOT NULL,
            url TEXT NOT NULL,
            region TEXT NOT NULL,
            category TEXT NOT NULL,
            config_json TEXT NOT NULL DEFAULT '{}',
            is_active INTEGER NOT NULL DEFAULT 1,
            reliability_score REAL NOT NULL DEFAULT 0.5,
            last_fetched_at TIMESTAMP,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sources_url_region_active ON sources(url, region) WHERE is_active = 1;`,
		`CREATE TABLE IF NOT EXISTS incident_reports (
            id TEXT PRIMARY KEY,
            source_id TEXT NOT NULL,
            external_id TEXT NOT NULL,
            source_url TEXT,
            raw_text TEXT NOT NULL,
            incident_type TEXT,
            category TEXT NOT NULL DEFAULT 'other',
            address TEXT,
            city TEXT,
            latitude REAL,
            longitude REAL,
            location_resolution TEXT NOT NULL DEFAULT 'unknown',
            location_confidence REAL NOT NULL DEFAULT 0,
            occurred_at TIMESTAMP,
            ingested_at TIMESTAMP NOT NULL,
            extraction_model TEXT,
            extraction_confidence REAL NOT NULL DEFAULT 0,
            urgency_score INTEGER NOT NULL DEFAULT 1,
            dedup_status TEXT NOT NULL DEFAULT 'pending',
            dedup_processed_at TIMESTAMP,
            incident_id TEXT
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_reports_source_external ON incident_reports(source_id, external_id);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_occurred_at ON incident_reports(occurred_at);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_incident_id ON incident_reports(incident_id);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_dedup_status ON incident_reports(dedup_status);`,
		`CREATE TABLE IF NOT EXISTS incidents (
            id TEXT PRIMARY KEY,
            incident_type TEXT NOT NULL,
            category TEXT NOT NULL,
            urgency_score INTEGER NOT NULL DEFAULT 1,
            latitude REAL,
            longitude REAL,
            location_resolution TEXT NOT NULL DEFAULT 'unknown',
            location_confidence REAL NOT NULL DEFAULT 0,
            address TEXT,
            city TEXT,
            region TEXT NOT NULL,
            occurred_at TIMESTAMP,
            reported_at TIMESTAMP NOT NULL,
            title TEXT,
            description TEXT,
            report_count INTEGER NOT NULL DEFAULT 0,
            source_types_json TEXT NOT NULL DEFAULT '[]',
            confidence_score REAL NOT NULL DEFAULT 0,
            review_status TEXT NOT NULL DEFAULT 'needs_review',
            reviewed_at TIMESTAMP,
            reviewed_by TEXT,
            status TEXT NOT NULL DEFAULT 'active',
            created_at TIMESTAMP NOT NULL,
            updated_at TIMESTAMP NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_occurred_at ON incidents(occurred_at);`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_region ON incidents(region);`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_needs_review ON incidents(review_status) WHERE review_status = 'needs_review';`,
		`CREATE TABLE IF NOT EXISTS street_centerlines (
            id TEXT PRIMARY KEY,
            region TEXT NOT NULL,
            street_name TEXT NOT NULL,
            street_name_normalized TEXT NOT NULL,
            from_address INTEGER NOT NULL,
            to_address INTEGER NOT NULL,
            city TEXT,
            from_lat REAL NOT NULL,
            from_lon REAL NOT NULL,
            to_lat REAL NOT NULL,
            to_lon REAL NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_centerlines_region_name ON street_centerlines(region, street_name_normalized);`,
		`CREATE TABLE IF NOT EXISTS weekly_rollups (
            id TEXT PRIMARY KEY,
            week_start TIMESTAMP NOT NULL,
            municipality TEXT,
            incidents_by_category_json TEXT NOT NULL DEFAULT '{}',
            news_by_category_json TEXT NOT NULL DEFAULT '{}',
            incident_trend INTEGER NOT NULL DEFAULT 0,
            summary_text TEXT,
            created_at TIMESTAMP NOT NULL
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_rollups_week_muni ON weekly_rollups(week_start, COALESCE(municipality, ''));`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ErrConflict signals a unique-constraint violation the caller should treat
// as an idempotent no-op rather than a failure (spec.md §7: datastore
// conflict on (source_id, external_id) means "already ingested").
var ErrConflict = errors.New("store: conflict, row already exists")

// ErrNotFound signals a lookup miss.
var ErrNotFound = errors.New("store: not found")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite wraps sqlite3 error text rather than exposing a
	// typed error; matching on the driver's own message is what the
	// teacher's store package relies on too (this store uses no ON
	// CONFLICT clauses, so explicit-insert paths need it to distinguish
	// "already there" from a real failure).
	msg := err.Error()
	return contains(msg, "UNIQUE constraint failed")
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}
