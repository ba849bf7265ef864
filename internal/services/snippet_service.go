package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/repository"
	"github.com/MohamedElashri/snipvault/internal/validation"
)

// Common errors
var (
	ErrSnippetNotFound = errors.New("snippet not found")
	ErrVersionNotFound = errors.New("version not found")
	ErrNotTrashed      = errors.New("snippet is not in trash")
	ErrValidation      = errors.New("validation error")
)

// Default and maximum page sizes for the active list
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SnippetService handles snippet business logic
type SnippetService struct {
	repo        *repository.SnippetRepository
	versionRepo *repository.VersionRepository
	logger      *slog.Logger
}

// NewSnippetService creates a new snippet service
func NewSnippetService(repo *repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		logger: logger,
	}
}

// WithVersionRepo enables version history
func (s *SnippetService) WithVersionRepo(versionRepo *repository.VersionRepository) *SnippetService {
	s.versionRepo = versionRepo
	return s
}

// update writes input over existing. With history enabled the pre-edit
// state is archived in the same transaction as the write.
func (s *SnippetService) update(ctx context.Context, userID string, existing *models.Snippet, input *models.SnippetInput) (*models.Snippet, error) {
	if s.versionRepo == nil {
		return s.repo.Update(ctx, userID, existing.ID, input)
	}
	fields := existing.Fields()
	at := time.Now().UTC()
	return s.repo.UpdateWith(ctx, userID, existing.ID, input, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.versionRepo.ArchiveTx(ctx, tx, existing.ID, fields, at); err != nil {
			s.logger.Error("failed to archive snippet version", "id", existing.ID, "error", err)
			return err
		}
		return nil
	})
}

// List returns a page of the user's active snippets, newest first
func (s *SnippetService) List(ctx context.Context, userID string, page, limit int) (*models.SnippetListResponse, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	return s.repo.List(ctx, models.SnippetFilter{UserID: userID, Page: page, Limit: limit})
}

// Get retrieves an active snippet
func (s *SnippetService) Get(ctx context.Context, userID, id string) (*models.Snippet, error) {
	snippet, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		s.logger.Error("failed to get snippet", "id", id, "error", err)
		return nil, err
	}
	if snippet == nil {
		return nil, ErrSnippetNotFound
	}
	return snippet, nil
}

// Create creates a new snippet
func (s *SnippetService) Create(ctx context.Context, input *models.SnippetInput) (*models.Snippet, error) {
	if errs := validation.ValidateSnippetInput(input); errs.HasErrors() {
		return nil, errs
	}
	if input.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	snippet, err := s.repo.Create(ctx, input)
	if err != nil {
		s.logger.Error("failed to create snippet", "error", err)
		return nil, err
	}

	s.logger.Info("snippet created", "id", snippet.ID, "title", snippet.Title)
	return snippet, nil
}

// Update applies input to an active snippet. When any editable field
// changes, the pre-edit state is archived as a new version first. An update
// that changes nothing returns the snippet untouched.
func (s *SnippetService) Update(ctx context.Context, userID, id string, input *models.SnippetInput) (*models.Snippet, error) {
	if errs := validation.ValidateSnippetInput(input); errs.HasErrors() {
		return nil, errs
	}

	existing, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrSnippetNotFound
	}

	next := models.SnippetFields{
		Title:       input.Title,
		Description: input.Description,
		Code:        input.Code,
		Language:    input.Language,
		Tags:        input.Tags,
	}
	if existing.Fields().Equal(next) {
		return existing, nil
	}

	snippet, err := s.update(ctx, userID, existing, input)
	if err != nil {
		s.logger.Error("failed to update snippet", "id", id, "error", err)
		return nil, err
	}
	if snippet == nil {
		return nil, ErrSnippetNotFound
	}

	s.logger.Info("snippet updated", "id", id)
	return snippet, nil
}

// MoveToTrash soft-deletes an active snippet
func (s *SnippetService) MoveToTrash(ctx context.Context, userID, id string) (*models.Snippet, error) {
	snippet, err := s.repo.SetTrashed(ctx, userID, id, true)
	if err != nil {
		s.logger.Error("failed to move snippet to trash", "id", id, "error", err)
		return nil, err
	}
	if snippet == nil {
		return nil, ErrSnippetNotFound
	}

	s.logger.Info("snippet moved to trash", "id", id)
	return snippet, nil
}

// ListTrash returns every trashed snippet of the user
func (s *SnippetService) ListTrash(ctx context.Context, userID string) ([]models.Snippet, error) {
	result, err := s.repo.List(ctx, models.SnippetFilter{UserID: userID, Trashed: true})
	if err != nil {
		s.logger.Error("failed to list trash", "error", err)
		return nil, err
	}
	return result.Snippets, nil
}

// RestoreFromTrash brings a trashed snippet back to the active set
func (s *SnippetService) RestoreFromTrash(ctx context.Context, userID, id string) (*models.Snippet, error) {
	snippet, err := s.repo.SetTrashed(ctx, userID, id, false)
	if err != nil {
		s.logger.Error("failed to restore snippet", "id", id, "error", err)
		return nil, err
	}
	if snippet == nil {
		active, err := s.repo.GetByID(ctx, userID, id)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, ErrNotTrashed
		}
		return nil, ErrSnippetNotFound
	}

	s.logger.Info("snippet restored from trash", "id", id)
	return snippet, nil
}

// EmptyTrash permanently deletes every trashed snippet of the user.
// Emptying an empty trash succeeds.
func (s *SnippetService) EmptyTrash(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteTrashed(ctx, userID)
	if err != nil {
		s.logger.Error("failed to empty trash", "error", err)
		return 0, err
	}

	s.logger.Info("trash emptied", "count", n)
	return n, nil
}

// Delete permanently removes a snippet, trashed or not, with its versions
func (s *SnippetService) Delete(ctx context.Context, userID, id string) error {
	err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSnippetNotFound
		}
		s.logger.Error("failed to delete snippet", "id", id, "error", err)
		return err
	}

	s.logger.Info("snippet deleted", "id", id)
	return nil
}

// ToggleFavorite toggles the favorite status of an active snippet
func (s *SnippetService) ToggleFavorite(ctx context.Context, userID, id string) (*models.Snippet, error) {
	snippet, err := s.repo.ToggleFavorite(ctx, userID, id)
	if err != nil {
		s.logger.Error("failed to toggle favorite", "id", id, "error", err)
		return nil, err
	}
	if snippet == nil {
		return nil, ErrSnippetNotFound
	}

	s.logger.Info("snippet favorite toggled", "id", id, "is_favorite", snippet.IsFavorite)
	return snippet, nil
}

// ListFavorites returns the user's active favorite snippets
func (s *SnippetService) ListFavorites(ctx context.Context, userID string) ([]models.Snippet, error) {
	fav := true
	result, err := s.repo.List(ctx, models.SnippetFilter{UserID: userID, IsFavorite: &fav})
	if err != nil {
		s.logger.Error("failed to list favorites", "error", err)
		return nil, err
	}
	return result.Snippets, nil
}

// Search performs full-text search over the user's active snippets
func (s *SnippetService) Search(ctx context.Context, userID, query string) ([]models.Snippet, error) {
	query, errs := validation.ValidateSearchQuery(query)
	if errs.HasErrors() {
		return nil, errs
	}

	result, err := s.repo.List(ctx, models.SnippetFilter{UserID: userID, Query: query})
	if err != nil {
		s.logger.Error("failed to search snippets", "query", query, "error", err)
		return nil, err
	}
	return result.Snippets, nil
}

// ListByTag returns the user's active snippets carrying tag
func (s *SnippetService) ListByTag(ctx context.Context, userID, tag string) ([]models.Snippet, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, validation.ValidationErrors{{Field: "tag", Message: "Tag is required"}}
	}

	result, err := s.repo.List(ctx, models.SnippetFilter{UserID: userID, Tag: tag})
	if err != nil {
		s.logger.Error("failed to list snippets by tag", "tag", tag, "error", err)
		return nil, err
	}
	return result.Snippets, nil
}

// Tags returns the distinct tags of the user's active snippets
func (s *SnippetService) Tags(ctx context.Context, userID string) ([]string, error) {
	return s.repo.DistinctTags(ctx, userID)
}

// Versions returns the snippet's history, oldest first
func (s *SnippetService) Versions(ctx context.Context, userID, id string) ([]models.Version, error) {
	if s.versionRepo == nil {
		return nil, fmt.Errorf("version repository not configured")
	}

	snippet, err := s.repo.GetAny(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if snippet == nil {
		return nil, ErrSnippetNotFound
	}

	versions, err := s.versionRepo.List(ctx, id)
	if err != nil {
		s.logger.Error("failed to get snippet versions", "id", id, "error", err)
		return nil, err
	}
	return versions, nil
}

// RestoreVersion replaces the snippet's editable fields with version index.
// The current state is archived first, so a restore can itself be undone.
func (s *SnippetService) RestoreVersion(ctx context.Context, userID, id string, index int) (*models.Snippet, error) {
	if s.versionRepo == nil {
		return nil, fmt.Errorf("version repository not configured")
	}

	existing, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrSnippetNotFound
	}

	version, err := s.versionRepo.GetAt(ctx, id, index)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, ErrVersionNotFound
	}

	input := &models.SnippetInput{
		Title:       version.Title,
		Description: version.Description,
		Code:        version.Code,
		Language:    version.Language,
		Tags:        version.Tags,
	}
	snippet, err := s.update(ctx, userID, existing, input)
	if err != nil {
		s.logger.Error("failed to restore snippet version", "id", id, "index", index, "error", err)
		return nil, err
	}
	if snippet == nil {
		return nil, ErrSnippetNotFound
	}

	s.logger.Info("snippet version restored", "id", id, "index", index)
	return snippet, nil
}
