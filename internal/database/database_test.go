package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenSQLite_MigratesInMemory(t *testing.T) {
	ctx := context.Background()

	db, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	defer db.Close()

	if err := Migrate(ctx, db, SQLite); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	// 2回目も成功すること
	if err := Migrate(ctx, db, SQLite); err != nil {
		t.Fatalf("second Migrate() error: %v", err)
	}

	for _, table := range []string{"users", "agents", "chat_messages"} {
		var name string
		err := db.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %s: %v", table, err)
		}
	}
}

func TestOpenSQLite_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ainet.db")

	db, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("Expected database directory to exist: %v", err)
	}
}

func TestMigrate_UnknownDialect(t *testing.T) {
	db, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	defer db.Close()

	if err := Migrate(context.Background(), db, Dialect("oracle")); err == nil {
		t.Error("Expected error for unknown dialect")
	}
}
