package database

import (
	"path/filepath"
	"testing"
)

func TestMigrateCreatesTables(t *testing.T) {
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// Idempotent.
	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	for _, table := range []string{"users", "sessions", "events"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestNewOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.db")
	db, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.Exec("INSERT INTO users (id, email, password_hash) VALUES ('u1', 'a@b.co', 'x')"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Exec("INSERT INTO users (id, email, password_hash) VALUES ('u2', 'A@B.CO', 'x')"); err == nil {
		t.Fatalf("expected case-insensitive unique email")
	}
}
