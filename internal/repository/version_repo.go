package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// VersionRepository stores archived snippet states
type VersionRepository struct {
	db *sql.DB
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *sql.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Archive appends fields as the newest version of snippetID, stamped at
func (r *VersionRepository) Archive(ctx context.Context, snippetID string, fields models.SnippetFields, at time.Time) error {
	return archiveVersion(ctx, r.db, snippetID, fields, at)
}

// ArchiveTx is Archive inside the caller's transaction
func (r *VersionRepository) ArchiveTx(ctx context.Context, tx *sql.Tx, snippetID string, fields models.SnippetFields, at time.Time) error {
	return archiveVersion(ctx, tx, snippetID, fields, at)
}

func archiveVersion(ctx context.Context, q querier, snippetID string, fields models.SnippetFields, at time.Time) error {
	tags := fields.Tags
	if tags == nil {
		tags = []string{}
	}
	encoded, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode version tags: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO snippet_versions (snippet_id, title, description, code, language, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, snippetID, fields.Title, fields.Description, fields.Code, fields.Language, string(encoded), at)
	if err != nil {
		return fmt.Errorf("failed to archive snippet version: %w", err)
	}
	return nil
}

// List returns every version of snippetID, oldest first
func (r *VersionRepository) List(ctx context.Context, snippetID string) ([]models.Version, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT snippet_id, title, description, code, language, tags, created_at
		FROM snippet_versions
		WHERE snippet_id = ?
		ORDER BY id ASC
	`, snippetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get snippet versions: %w", err)
	}
	defer rows.Close()

	versions := []models.Version{}
	for rows.Next() {
		var v models.Version
		var tags string
		if err := rows.Scan(&v.SnippetID, &v.Title, &v.Description, &v.Code, &v.Language, &tags, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &v.Tags); err != nil || v.Tags == nil {
			v.Tags = []string{}
		}
		versions = append(versions, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating version rows: %w", err)
	}
	return versions, nil
}

// GetAt returns the version at index (0 is the oldest), or nil when there
// is none
func (r *VersionRepository) GetAt(ctx context.Context, snippetID string, index int) (*models.Version, error) {
	if index < 0 {
		return nil, nil
	}

	var v models.Version
	var tags string
	err := r.db.QueryRowContext(ctx, `
		SELECT snippet_id, title, description, code, language, tags, created_at
		FROM snippet_versions
		WHERE snippet_id = ?
		ORDER BY id ASC
		LIMIT 1 OFFSET ?
	`, snippetID, index).Scan(&v.SnippetID, &v.Title, &v.Description, &v.Code, &v.Language, &tags, &v.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &v.Tags); err != nil || v.Tags == nil {
		v.Tags = []string{}
	}
	return &v, nil
}

// Count returns how many versions snippetID has
func (r *VersionRepository) Count(ctx context.Context, snippetID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snippet_versions WHERE snippet_id = ?", snippetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get version count: %w", err)
	}
	return count, nil
}

// DeleteForSnippet removes every version of snippetID
func (r *VersionRepository) DeleteForSnippet(ctx context.Context, snippetID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM snippet_versions WHERE snippet_id = ?", snippetID); err != nil {
		return fmt.Errorf("failed to delete snippet versions: %w", err)
	}
	return nil
}
