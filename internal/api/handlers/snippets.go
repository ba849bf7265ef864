package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MohamedElashri/snipvault/internal/api/middleware"
	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/services"
)

// SnippetHandler handles snippet-related HTTP requests
type SnippetHandler struct {
	service *services.SnippetService
	logger  *slog.Logger
}

// NewSnippetHandler creates a new snippet handler
func NewSnippetHandler(service *services.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{service: service, logger: logger}
}

// SnippetResponse wraps a single snippet
type SnippetResponse struct {
	Snippet *models.Snippet `json:"snippet"`
	Message string          `json:"message,omitempty"`
}

// SnippetsResponse wraps a list of snippets
type SnippetsResponse struct {
	Snippets   []models.Snippet   `json:"snippets"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// VersionsResponse wraps a snippet's history
type VersionsResponse struct {
	Versions []models.Version `json:"versions"`
}

// fail maps a service error onto a response
func (h *SnippetHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if verrs, ok := asValidation(err); ok {
		ValidationErrors(w, verrs)
		return
	}
	switch {
	case errors.Is(err, services.ErrSnippetNotFound):
		NotFound(w, "Snippet not found")
	case errors.Is(err, services.ErrVersionNotFound):
		NotFound(w, "Version not found")
	case errors.Is(err, services.ErrNotTrashed):
		Conflict(w, "Snippet is not in trash")
	case errors.Is(err, services.ErrValidation):
		BadRequest(w, err.Error())
	default:
		h.logger.Error("snippet request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		InternalError(w)
	}
}

func snippetID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, "MISSING_ID", "Snippet ID is required")
		return "", false
	}
	return id, true
}

func positiveInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// List handles GET /api/v1/snippet/
func (h *SnippetHandler) List(w http.ResponseWriter, r *http.Request) {
	page := positiveInt(r.URL.Query().Get("page"))
	limit := positiveInt(r.URL.Query().Get("limit"))

	result, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()), page, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetsResponse{Snippets: result.Snippets, Pagination: &result.Pagination})
}

// Create handles POST /api/v1/snippet/
func (h *SnippetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.SnippetInput
	if err := DecodeJSON(r, &input); err != nil {
		Error(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON payload")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if input.UserID != "" && input.UserID != userID {
		Error(w, http.StatusForbidden, "FORBIDDEN", "Cannot create snippets for another user")
		return
	}
	input.UserID = userID

	snippet, err := h.service.Create(r.Context(), &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	Created(w, SnippetResponse{Snippet: snippet, Message: "Snippet created successfully"})
}

// Get handles GET /api/v1/snippet/{id}
func (h *SnippetHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	snippet, err := h.service.Get(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetResponse{Snippet: snippet})
}

// Update handles PUT /api/v1/snippet/{id}
func (h *SnippetHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	var input models.SnippetInput
	if err := DecodeJSON(r, &input); err != nil {
		Error(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON payload")
		return
	}

	snippet, err := h.service.Update(r.Context(), middleware.GetUserID(r.Context()), id, &input)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetResponse{Snippet: snippet, Message: "Snippet updated successfully"})
}

// MoveToTrash handles PATCH /api/v1/snippet/{id}/trash
func (h *SnippetHandler) MoveToTrash(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	snippet, err := h.service.MoveToTrash(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetResponse{Snippet: snippet, Message: "Snippet moved to trash"})
}

// ListTrash handles GET /api/v1/snippet/trash
func (h *SnippetHandler) ListTrash(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.service.ListTrash(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetsResponse{Snippets: snippets})
}

// RestoreFromTrash handles PATCH /api/v1/snippet/{id}/restore
func (h *SnippetHandler) RestoreFromTrash(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	snippet, err := h.service.RestoreFromTrash(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetResponse{Snippet: snippet, Message: "Snippet restored"})
}

// EmptyTrash handles DELETE /api/v1/snippet/trash
func (h *SnippetHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.EmptyTrash(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	msg := "Trash emptied"
	if n == 0 {
		msg = "Trash is already empty"
	}
	OK(w, MessageResponse{Message: msg})
}

// Delete handles DELETE /api/v1/snippet/{id}
func (h *SnippetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, MessageResponse{Message: "Snippet permanently deleted"})
}

// ToggleFavorite handles PATCH /api/v1/snippet/{id}/favorite
func (h *SnippetHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	snippet, err := h.service.ToggleFavorite(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	msg := "Removed from favorites"
	if snippet.IsFavorite {
		msg = "Added to favorites"
	}
	OK(w, SnippetResponse{Snippet: snippet, Message: msg})
}

// ListFavorites handles GET /api/v1/snippet/favorites
func (h *SnippetHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.service.ListFavorites(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetsResponse{Snippets: snippets})
}

// Search handles GET /api/v1/snippet/search?query=
func (h *SnippetHandler) Search(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.service.Search(r.Context(), middleware.GetUserID(r.Context()), r.URL.Query().Get("query"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetsResponse{Snippets: snippets})
}

// ListByTag handles GET /api/v1/snippet/tag/{tag}
func (h *SnippetHandler) ListByTag(w http.ResponseWriter, r *http.Request) {
	// chi routes on RawPath when the request has one, leaving the tag escaped
	tag := chi.URLParam(r, "tag")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(tag)
		if err != nil {
			BadRequest(w, "Invalid tag")
			return
		}
		tag = unescaped
	}

	snippets, err := h.service.ListByTag(r.Context(), middleware.GetUserID(r.Context()), tag)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetsResponse{Snippets: snippets})
}

// Tags handles GET /api/v1/snippet/tags
func (h *SnippetHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.Tags(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, map[string][]string{"tags": tags})
}

// Versions handles GET /api/v1/snippet/{id}/versions
func (h *SnippetHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	versions, err := h.service.Versions(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, VersionsResponse{Versions: versions})
}

// RestoreVersion handles POST /api/v1/snippet/{id}/restore/{versionIndex}
func (h *SnippetHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := snippetID(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "versionIndex"))
	if err != nil || index < 0 {
		Error(w, http.StatusBadRequest, "INVALID_VERSION_INDEX", "Invalid version index")
		return
	}

	snippet, err := h.service.RestoreVersion(r.Context(), middleware.GetUserID(r.Context()), id, index)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	OK(w, SnippetResponse{Snippet: snippet, Message: "Version restored successfully"})
}
