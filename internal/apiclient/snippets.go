package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// SnippetBasePath is the API prefix of every snippet endpoint
const SnippetBasePath = "/api/v1/snippet"

// Fallback messages, used when a failure carries no message of its own
const (
	FallbackListActive       = "Failed to fetch snippets"
	FallbackFetchOne         = "Failed to fetch snippet"
	FallbackCreate           = "Failed to create snippet"
	FallbackUpdate           = "Failed to update snippet"
	FallbackMoveToTrash      = "Failed to move to trash"
	FallbackListTrash        = "Failed to get trash snippets"
	FallbackRestoreFromTrash = "Failed to restore from trash"
	FallbackEmptyTrash       = "Failed to empty trash"
	FallbackDelete           = "Failed to delete snippet"
	FallbackToggleFavorite   = "An error occurred"
	FallbackListFavorites    = "Failed to get favorites"
	FallbackSearch           = "Search failed"
	FallbackListByTag        = "Failed to get snippets by tag"
	FallbackFetchVersions    = "Failed to fetch version history"
	FallbackRestoreVersion   = "Failed to restore version"
)

// ListResult is a typed list envelope
type ListResult struct {
	Snippets   *[]models.Snippet  `json:"snippets"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// Items returns the parsed list, never nil
func (r *ListResult) Items() []models.Snippet {
	if r.Snippets == nil {
		return []models.Snippet{}
	}
	return *r.Snippets
}

func (r *ListResult) validate() error {
	if r.Snippets == nil {
		return fmt.Errorf("%w: snippets", errMissingField)
	}
	for i, s := range *r.Snippets {
		if err := checkSnippet(s); err != nil {
			return fmt.Errorf("snippets[%d]: %w", i, err)
		}
	}
	return nil
}

// SnippetResult is a typed single-snippet envelope
type SnippetResult struct {
	Snippet *models.Snippet `json:"snippet"`
	Message string          `json:"message,omitempty"`
}

func (r *SnippetResult) validate() error {
	if r.Snippet == nil {
		return fmt.Errorf("%w: snippet", errMissingField)
	}
	return checkSnippet(*r.Snippet)
}

// VersionsResult is a typed version-history envelope, oldest first
type VersionsResult struct {
	Versions *[]models.Version `json:"versions"`
	Message  string            `json:"message,omitempty"`
}

// Items returns the parsed versions, never nil
func (r *VersionsResult) Items() []models.Version {
	if r.Versions == nil {
		return []models.Version{}
	}
	return *r.Versions
}

func (r *VersionsResult) validate() error {
	if r.Versions == nil {
		return fmt.Errorf("%w: versions", errMissingField)
	}
	for i, v := range *r.Versions {
		if v.Timestamp.IsZero() {
			return fmt.Errorf("versions[%d]: %w: timestamp", i, errMissingField)
		}
	}
	return nil
}

// MessageResult is returned by operations whose only payload is a message
type MessageResult struct {
	Message string `json:"message,omitempty"`
}

func checkSnippet(s models.Snippet) error {
	if s.ID == "" {
		return fmt.Errorf("%w: _id", errMissingField)
	}
	return nil
}

func snippetPath(parts ...string) string {
	p := SnippetBasePath
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// ListActive fetches one page of active snippets
func (c *Client) ListActive(ctx context.Context, page, limit int) (*ListResult, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out ListResult
	err := c.do(ctx, request{op: "list_active", method: http.MethodGet, path: SnippetBasePath + "/", query: q, fallback: FallbackListActive}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a single snippet
func (c *Client) Get(ctx context.Context, id string) (*SnippetResult, error) {
	var out SnippetResult
	if err := c.do(ctx, request{op: "fetch_one", method: http.MethodGet, path: snippetPath(id), fallback: FallbackFetchOne}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create creates a snippet
func (c *Client) Create(ctx context.Context, input models.SnippetInput) (*SnippetResult, error) {
	var out SnippetResult
	if err := c.do(ctx, request{op: "create", method: http.MethodPost, path: SnippetBasePath + "/", body: input, fallback: FallbackCreate}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces a snippet's editable fields
func (c *Client) Update(ctx context.Context, id string, input models.SnippetInput) (*SnippetResult, error) {
	var out SnippetResult
	if err := c.do(ctx, request{op: "update", method: http.MethodPut, path: snippetPath(id), body: input, fallback: FallbackUpdate}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MoveToTrash soft-deletes a snippet
func (c *Client) MoveToTrash(ctx context.Context, id string) (*MessageResult, error) {
	var out MessageResult
	if err := c.do(ctx, request{op: "move_to_trash", method: http.MethodPatch, path: snippetPath(id, "trash"), fallback: FallbackMoveToTrash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTrash lists every trashed snippet
func (c *Client) ListTrash(ctx context.Context) (*ListResult, error) {
	var out ListResult
	if err := c.do(ctx, request{op: "list_trash", method: http.MethodGet, path: snippetPath("trash"), fallback: FallbackListTrash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RestoreFromTrash moves a trashed snippet back to the active set
func (c *Client) RestoreFromTrash(ctx context.Context, id string) (*SnippetResult, error) {
	var out SnippetResult
	if err := c.do(ctx, request{op: "restore_from_trash", method: http.MethodPatch, path: snippetPath(id, "restore"), fallback: FallbackRestoreFromTrash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EmptyTrash permanently deletes every trashed snippet
func (c *Client) EmptyTrash(ctx context.Context) (*MessageResult, error) {
	var out MessageResult
	if err := c.do(ctx, request{op: "empty_trash", method: http.MethodDelete, path: snippetPath("trash"), fallback: FallbackEmptyTrash}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete permanently deletes a snippet
func (c *Client) Delete(ctx context.Context, id string) (*MessageResult, error) {
	var out MessageResult
	if err := c.do(ctx, request{op: "delete_forever", method: http.MethodDelete, path: snippetPath(id), fallback: FallbackDelete}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleFavorite flips a snippet's favorite flag
func (c *Client) ToggleFavorite(ctx context.Context, id string) (*SnippetResult, error) {
	var out SnippetResult
	if err := c.do(ctx, request{op: "toggle_favorite", method: http.MethodPatch, path: snippetPath(id, "favorite"), fallback: FallbackToggleFavorite}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFavorites lists the user's favorite snippets
func (c *Client) ListFavorites(ctx context.Context) (*ListResult, error) {
	var out ListResult
	if err := c.do(ctx, request{op: "list_favorites", method: http.MethodGet, path: snippetPath("favorites"), fallback: FallbackListFavorites}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search runs a text search over active snippets
func (c *Client) Search(ctx context.Context, query string) (*ListResult, error) {
	q := url.Values{}
	q.Set("query", query)

	var out ListResult
	if err := c.do(ctx, request{op: "search", method: http.MethodGet, path: snippetPath("search"), query: q, fallback: FallbackSearch}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByTag lists active snippets carrying tag
func (c *Client) ListByTag(ctx context.Context, tag string) (*ListResult, error) {
	var out ListResult
	if err := c.do(ctx, request{op: "list_by_tag", method: http.MethodGet, path: snippetPath("tag", tag), fallback: FallbackListByTag}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Versions fetches a snippet's version history, oldest first
func (c *Client) Versions(ctx context.Context, id string) (*VersionsResult, error) {
	var out VersionsResult
	if err := c.do(ctx, request{op: "fetch_versions", method: http.MethodGet, path: snippetPath(id, "versions"), fallback: FallbackFetchVersions}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RestoreVersion replaces a snippet's fields with the version at index
func (c *Client) RestoreVersion(ctx context.Context, id string, index int) (*SnippetResult, error) {
	var out SnippetResult
	if err := c.do(ctx, request{op: "restore_version", method: http.MethodPost, path: snippetPath(id, "restore", strconv.Itoa(index)), fallback: FallbackRestoreVersion}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
