package database

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:            filepath.Join(t.TempDir(), "data", "snipo.db"),
		MaxOpenConns:    1,
		BusyTimeout:     5000,
		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
	}, testLogger())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Path: "/data/snipo.db", BusyTimeout: 5000, JournalMode: "WAL", SynchronousMode: "NORMAL"}
	dsn := cfg.DSN()

	for _, want := range []string{
		"file:/data/snipo.db?",
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=foreign_keys(1)",
	} {
		if !strings.Contains(dsn, want) {
			t.Errorf("expected DSN to contain %q, got %q", want, dsn)
		}
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	all := Migrations()
	v, err := SchemaVersion(ctx, db.DB)
	if err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	if v != all[len(all)-1].Version {
		t.Errorf("expected schema version %d, got %d", all[len(all)-1].Version, v)
	}

	// running again applies nothing
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	var applied int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if applied != len(all) {
		t.Errorf("expected %d recorded migrations, got %d", len(all), applied)
	}

	for _, table := range []string{"users", "snippets", "snippet_tags", "snippet_versions", "snippets_fts"} {
		var n int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name = ?", table).Scan(&n)
		if err != nil || n != 1 {
			t.Errorf("expected table %s to exist (n=%d, err=%v)", table, n, err)
		}
	}
}

func TestMigrations_Ordered(t *testing.T) {
	all := Migrations()
	for i, m := range all {
		if m.Version != i+1 {
			t.Errorf("migration %q has version %d, expected %d", m.Name, m.Version, i+1)
		}
		if strings.TrimSpace(m.SQL) == "" {
			t.Errorf("migration %q has no SQL", m.Name)
		}
	}
}
