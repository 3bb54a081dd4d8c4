// Package db provides database schema migration management.
package db

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Migration represents an applied database schema migration.
type Migration struct {
	Version     int
	AppliedAt   time.Time
	Description string
	Checksum    string
}

// step is one schema migration carried in the binary. The schema is small
// enough that shipping SQL files next to the binary buys nothing.
type step struct {
	version     int
	description string
	sql         string
}

var steps = []step{
	{
		version:     1,
		description: "settings_and_journals",
		sql: `
CREATE TABLE settings (
	setting_id TEXT PRIMARY KEY,
	setting_value TEXT
);

CREATE TABLE journals (
	journal_id TEXT PRIMARY KEY,
	journal_date TEXT NOT NULL,
	journal_data TEXT NOT NULL,
	journal_text TEXT NOT NULL DEFAULT ''
);

CREATE INDEX idx_journals_date ON journals(journal_date);
`,
	},
	{
		version:     2,
		description: "journals_fts",
		sql: `
CREATE VIRTUAL TABLE journals_fts USING fts5(
	journal_date,
	journal_text,
	content='journals',
	content_rowid='rowid'
);

CREATE TRIGGER journals_fts_insert AFTER INSERT ON journals BEGIN
	INSERT INTO journals_fts(rowid, journal_date, journal_text)
	VALUES (new.rowid, new.journal_date, new.journal_text);
END;

CREATE TRIGGER journals_fts_delete AFTER DELETE ON journals BEGIN
	INSERT INTO journals_fts(journals_fts, rowid, journal_date, journal_text)
	VALUES ('delete', old.rowid, old.journal_date, old.journal_text);
END;

CREATE TRIGGER journals_fts_update AFTER UPDATE ON journals BEGIN
	INSERT INTO journals_fts(journals_fts, rowid, journal_date, journal_text)
	VALUES ('delete', old.rowid, old.journal_date, old.journal_text);
	INSERT INTO journals_fts(rowid, journal_date, journal_text)
	VALUES (new.rowid, new.journal_date, new.journal_text);
END;
`,
	},
}

// Migrator applies embedded schema migrations in order.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the schema_migrations table if it doesn't exist.
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY CHECK(version > 0),
		applied_at INTEGER NOT NULL CHECK(applied_at > 0),
		description TEXT NOT NULL CHECK(length(description) > 0),
		checksum TEXT NOT NULL CHECK(length(checksum) = 64)
	);`
	_, err := m.db.Exec(query)
	return err
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int, error) {
	var version int
	err := m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// AppliedMigrations returns all applied migrations in version order.
func (m *Migrator) AppliedMigrations() ([]Migration, error) {
	rows, err := m.db.Query("SELECT version, applied_at, description, checksum FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var migrations []Migration
	for rows.Next() {
		var mig Migration
		var appliedAt int64
		if err := rows.Scan(&mig.Version, &appliedAt, &mig.Description, &mig.Checksum); err != nil {
			return nil, err
		}
		mig.AppliedAt = time.Unix(appliedAt, 0)
		migrations = append(migrations, mig)
	}
	return migrations, rows.Err()
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize schema_migrations: %w", err)
	}

	current, err := m.CurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, s := range steps {
		if s.version <= current {
			continue
		}
		if err := m.apply(s); err != nil {
			return fmt.Errorf("failed to apply migration V%d: %w", s.version, err)
		}
	}
	return nil
}

// apply runs one migration inside a transaction and records it.
func (m *Migrator) apply(s step) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(s.sql); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	hash := sha256.Sum256([]byte(s.sql))
	query := `INSERT INTO schema_migrations (version, applied_at, description, checksum)
			  VALUES (?, ?, ?, ?)`
	if _, err := tx.Exec(query, s.version, time.Now().Unix(), s.description, hex.EncodeToString(hash[:])); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
