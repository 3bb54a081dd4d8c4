// Package db tests for schema migrations.
package db

import (
	"testing"
)

// TestMigrateUp verifies all migrations apply and the schema exists.
func TestMigrateUp(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	m := NewMigrator(db.DB)
	if err := m.Up(); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	version, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() failed: %v", err)
	}
	if version != len(steps) {
		t.Errorf("version = %d, want %d", version, len(steps))
	}

	for _, table := range []string{"settings", "journals", "journals_fts"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}
}

// TestMigrateUpIdempotent verifies a second Up pass applies nothing new.
func TestMigrateUpIdempotent(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	m := NewMigrator(db.DB)
	if err := m.Up(); err != nil {
		t.Fatalf("first Up() failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("second Up() failed: %v", err)
	}

	applied, err := m.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations() failed: %v", err)
	}
	if len(applied) != len(steps) {
		t.Errorf("applied = %d migrations, want %d", len(applied), len(steps))
	}
	for i, mig := range applied {
		if mig.Version != i+1 {
			t.Errorf("applied[%d].Version = %d, want %d", i, mig.Version, i+1)
		}
		if len(mig.Checksum) != 64 {
			t.Errorf("applied[%d].Checksum length = %d, want 64", i, len(mig.Checksum))
		}
	}
}
