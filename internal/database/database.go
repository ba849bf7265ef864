package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the sql.DB with additional functionality
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	BusyTimeout     int
	JournalMode     string
	SynchronousMode string
}

// DSN builds the modernc connection string with pragmas
func (c Config) DSN() string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=synchronous(%s)&_pragma=foreign_keys(1)",
		c.Path,
		c.BusyTimeout,
		c.JournalMode,
		c.SynchronousMode,
	)
}

// New creates a new database connection
func New(cfg Config, logger *slog.Logger) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -2000",  // 2MB cache
		"PRAGMA temp_store = MEMORY", // Temp tables in memory
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			logger.Warn("failed to set pragma", "pragma", pragma, "error", err)
		}
	}

	logger.Info("database connected", "path", cfg.Path)

	return &DB{DB: db, logger: logger}, nil
}

// Migrate runs all pending migrations
func (db *DB) Migrate(ctx context.Context) error {
	return Migrate(ctx, db.DB, db.logger)
}

// Migrate applies every migration newer than the recorded schema version
func Migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	logger.Debug("current schema version", "version", currentVersion)

	for _, m := range Migrations() {
		if m.Version <= currentVersion {
			continue
		}

		logger.Info("applying migration", "version", m.Version, "name", m.Name)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply migration %d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			m.Version, m.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration: %w", err)
		}
	}

	return nil
}

// SchemaVersion returns the newest applied migration version
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current migration version: %w", err)
	}
	return version, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}
