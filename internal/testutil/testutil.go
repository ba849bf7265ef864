// Package testutil provides testing utilities for the snipvault server.
package testutil

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rs/xid"
	_ "modernc.org/sqlite"

	"github.com/MohamedElashri/snipvault/internal/database"
)

// TestDB creates an in-memory SQLite database with every migration applied.
// The database is automatically closed when the test completes.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := database.Migrate(context.Background(), db, TestLogger()); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// CreateUser inserts a user row and returns its id
func CreateUser(t *testing.T, db *sql.DB, email string) string {
	t.Helper()

	id := xid.New().String()
	_, err := db.Exec(
		"INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		id, email, "", "x", time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return id
}

// TestLogger returns a no-op logger for testing
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// TestContext returns a context for testing
func TestContext() context.Context {
	return context.Background()
}
