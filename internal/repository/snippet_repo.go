package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const snippetColumns = `s.id, s.user_id, s.title, s.description, s.code, s.language, s.is_favorite, s.created_at, s.updated_at`

// SnippetRepository handles snippet database operations
type SnippetRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSnippetRepository creates a new snippet repository
func NewSnippetRepository(db *sql.DB) *SnippetRepository {
	return &SnippetRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (*models.Snippet, error) {
	s := &models.Snippet{}
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Title,
		&s.Description,
		&s.Code,
		&s.Language,
		&s.IsFavorite,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Tags = []string{}
	return s, nil
}

// Create inserts a new snippet with its tags
func (r *SnippetRepository) Create(ctx context.Context, input *models.SnippetInput) (*models.Snippet, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now()
	snippet := &models.Snippet{
		ID:          xid.New().String(),
		UserID:      input.UserID,
		Title:       input.Title,
		Description: input.Description,
		Code:        input.Code,
		Language:    input.Language,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snippets (id, user_id, title, description, code, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, snippet.ID, snippet.UserID, snippet.Title, snippet.Description, snippet.Code, snippet.Language, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create snippet: %w", err)
	}

	if err := replaceTags(ctx, tx, snippet.ID, input.Tags); err != nil {
		return nil, err
	}
	snippet.Tags = append([]string{}, input.Tags...)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return snippet, nil
}

// Import inserts a snippet keeping its id, timestamps and trash state
func (r *SnippetRepository) Import(ctx context.Context, s *models.Snippet, trashedAt *time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snippets (id, user_id, title, description, code, language, is_favorite, trashed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, description = excluded.description, code = excluded.code,
			language = excluded.language, is_favorite = excluded.is_favorite,
			trashed_at = excluded.trashed_at, updated_at = excluded.updated_at
	`, s.ID, s.UserID, s.Title, s.Description, s.Code, s.Language, s.IsFavorite, trashedAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to import snippet: %w", err)
	}
	if err := replaceTags(ctx, tx, s.ID, s.Tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetByID retrieves an active snippet owned by userID
func (r *SnippetRepository) GetByID(ctx context.Context, userID, id string) (*models.Snippet, error) {
	return r.get(ctx, r.db, "s.id = ? AND s.user_id = ? AND s.trashed_at IS NULL", id, userID)
}

// GetTrashed retrieves a trashed snippet owned by userID
func (r *SnippetRepository) GetTrashed(ctx context.Context, userID, id string) (*models.Snippet, error) {
	return r.get(ctx, r.db, "s.id = ? AND s.user_id = ? AND s.trashed_at IS NOT NULL", id, userID)
}

// GetAny retrieves a snippet owned by userID whether trashed or not
func (r *SnippetRepository) GetAny(ctx context.Context, userID, id string) (*models.Snippet, error) {
	return r.get(ctx, r.db, "s.id = ? AND s.user_id = ?", id, userID)
}

func (r *SnippetRepository) get(ctx context.Context, q querier, where string, args ...any) (*models.Snippet, error) {
	query := "SELECT " + snippetColumns + " FROM snippets s WHERE " + where

	snippet, err := scanSnippet(q.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snippet: %w", err)
	}

	tags, err := tagsFor(ctx, q, []string{snippet.ID})
	if err != nil {
		return nil, err
	}
	if t, ok := tags[snippet.ID]; ok {
		snippet.Tags = t
	}
	return snippet, nil
}

// exec runs a single-row update and reloads the row. It returns nil when
// nothing matched.
func (r *SnippetRepository) exec(ctx context.Context, userID, id, update string, args ...any) (*models.Snippet, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, update, args...)
	if err != nil {
		return nil, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil
	}

	snippet, err := r.get(ctx, tx, "s.id = ? AND s.user_id = ?", id, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return snippet, nil
}

// Update replaces the editable fields of an active snippet and bumps updated_at
func (r *SnippetRepository) Update(ctx context.Context, userID, id string, input *models.SnippetInput) (*models.Snippet, error) {
	return r.UpdateWith(ctx, userID, id, input, nil)
}

// UpdateWith is Update with before run first in the same transaction.
// Nothing is committed unless both steps succeed.
func (r *SnippetRepository) UpdateWith(ctx context.Context, userID, id string, input *models.SnippetInput, before func(ctx context.Context, tx *sql.Tx) error) (*models.Snippet, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if before != nil {
		if err := before(ctx, tx); err != nil {
			return nil, err
		}
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE snippets
		SET title = ?, description = ?, code = ?, language = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND trashed_at IS NULL
	`, input.Title, input.Description, input.Code, input.Language, r.now(), id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update snippet: %w", err)
	}
	if rows, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	} else if rows == 0 {
		return nil, nil
	}

	if err := replaceTags(ctx, tx, id, input.Tags); err != nil {
		return nil, err
	}

	snippet, err := r.get(ctx, tx, "s.id = ? AND s.user_id = ?", id, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return snippet, nil
}

// SetTrashed moves an active snippet to the trash, or a trashed one back.
// It returns nil when no snippet in the opposite state matched.
func (r *SnippetRepository) SetTrashed(ctx context.Context, userID, id string, trashed bool) (*models.Snippet, error) {
	var snippet *models.Snippet
	var err error
	if trashed {
		snippet, err = r.exec(ctx, userID, id,
			"UPDATE snippets SET trashed_at = ? WHERE id = ? AND user_id = ? AND trashed_at IS NULL",
			r.now(), id, userID)
	} else {
		snippet, err = r.exec(ctx, userID, id,
			"UPDATE snippets SET trashed_at = NULL WHERE id = ? AND user_id = ? AND trashed_at IS NOT NULL",
			id, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to change trash state: %w", err)
	}
	return snippet, nil
}

// ToggleFavorite toggles the favorite status of an active snippet.
// updated_at is left alone: favoriting is not a content change.
func (r *SnippetRepository) ToggleFavorite(ctx context.Context, userID, id string) (*models.Snippet, error) {
	snippet, err := r.exec(ctx, userID, id,
		"UPDATE snippets SET is_favorite = NOT is_favorite WHERE id = ? AND user_id = ? AND trashed_at IS NULL",
		id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return snippet, nil
}

// Delete removes a snippet with its tags and versions
func (r *SnippetRepository) Delete(ctx context.Context, userID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, "DELETE FROM snippets WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete snippet: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	// in case foreign keys are off for this connection
	_, _ = tx.ExecContext(ctx, "DELETE FROM snippet_tags WHERE snippet_id = ?", id)
	_, _ = tx.ExecContext(ctx, "DELETE FROM snippet_versions WHERE snippet_id = ?", id)

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteTrashed permanently removes every trashed snippet of userID
func (r *SnippetRepository) DeleteTrashed(ctx context.Context, userID string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	trashed := "SELECT id FROM snippets WHERE user_id = ? AND trashed_at IS NOT NULL"
	if _, err := tx.ExecContext(ctx, "DELETE FROM snippet_tags WHERE snippet_id IN ("+trashed+")", userID); err != nil {
		return 0, fmt.Errorf("failed to delete trashed tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM snippet_versions WHERE snippet_id IN ("+trashed+")", userID); err != nil {
		return 0, fmt.Errorf("failed to delete trashed versions: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM snippets WHERE user_id = ? AND trashed_at IS NOT NULL", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to empty trash: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return affected, nil
}

// List retrieves snippets matching filter. A non-positive Limit returns
// every match on a single page.
func (r *SnippetRepository) List(ctx context.Context, filter models.SnippetFilter) (*models.SnippetListResponse, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}

	conditions := []string{"s.user_id = ?"}
	args := []any{filter.UserID}

	if filter.Trashed {
		conditions = append(conditions, "s.trashed_at IS NOT NULL")
	} else {
		conditions = append(conditions, "s.trashed_at IS NULL")
	}

	if filter.IsFavorite != nil {
		conditions = append(conditions, "s.is_favorite = ?")
		if *filter.IsFavorite {
			args = append(args, 1)
		} else {
			args = append(args, 0)
		}
	}

	if filter.Tag != "" {
		conditions = append(conditions, "s.id IN (SELECT snippet_id FROM snippet_tags WHERE name = ?)")
		args = append(args, filter.Tag)
	}

	// Full-text search on title, description and code, or an exact tag
	if match := ftsQuery(filter.Query); match != "" {
		conditions = append(conditions,
			"(s.rowid IN (SELECT rowid FROM snippets_fts WHERE snippets_fts MATCH ?) OR "+
				"s.id IN (SELECT snippet_id FROM snippet_tags WHERE name = ? COLLATE NOCASE))")
		args = append(args, match, strings.TrimSpace(filter.Query))
	}

	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM snippets s " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count snippets: %w", err)
	}

	query := "SELECT " + snippetColumns + " FROM snippets s " + whereClause + " ORDER BY s.updated_at DESC, s.rowid DESC"
	limit := filter.Limit
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, (filter.Page-1)*limit)
	} else {
		limit = total
		filter.Page = 1
	}

	snippets, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &models.SnippetListResponse{
		Snippets:   snippets,
		Pagination: models.NewPagination(filter.Page, limit, total),
	}, nil
}

// query runs a snippet select and attaches tags. Rows are closed before the
// tag lookup so a single-connection pool does not deadlock.
func (r *SnippetRepository) query(ctx context.Context, query string, args ...any) ([]models.Snippet, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}

	snippets := []models.Snippet{}
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan snippet: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating snippets: %w", err)
	}
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}

	ids := make([]string, len(snippets))
	for i := range snippets {
		ids[i] = snippets[i].ID
	}
	tags, err := tagsFor(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range snippets {
		if t, ok := tags[snippets[i].ID]; ok {
			snippets[i].Tags = t
		}
	}
	return snippets, nil
}

// tagsFor loads the tags of the given snippets in contributed order
func tagsFor(ctx context.Context, q querier, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(
		"SELECT snippet_id, name FROM snippet_tags WHERE snippet_id IN (%s) ORDER BY snippet_id, position",
		strings.Join(placeholders, ","),
	)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

// DistinctTags returns every tag used by userID's active snippets
func (r *SnippetRepository) DistinctTags(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT t.name
		FROM snippet_tags t
		JOIN snippets s ON s.id = t.snippet_id
		WHERE s.user_id = ? AND s.trashed_at IS NULL
		ORDER BY t.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// TrashedAt returns when id was trashed, or nil when it is active
func (r *SnippetRepository) TrashedAt(ctx context.Context, id string) (*time.Time, error) {
	var at sql.NullTime
	err := r.db.QueryRowContext(ctx, "SELECT trashed_at FROM snippets WHERE id = ?", id).Scan(&at)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trash state: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	return &at.Time, nil
}

func replaceTags(ctx context.Context, q querier, snippetID string, tags []string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM snippet_tags WHERE snippet_id = ?", snippetID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for i, tag := range tags {
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO snippet_tags (snippet_id, name, position) VALUES (?, ?, ?)",
			snippetID, tag, i,
		); err != nil {
			return fmt.Errorf("failed to add tag: %w", err)
		}
	}
	return nil
}

// ftsQuery turns free text into an FTS5 query matching every word as a prefix
func ftsQuery(q string) string {
	words := strings.Fields(q)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, `""`)
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}
