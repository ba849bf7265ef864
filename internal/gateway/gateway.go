package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MohamedElashri/snipvault/internal/apiclient"
	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/store"
	"github.com/MohamedElashri/snipvault/internal/validation"
)

// Messages of local precondition failures
const (
	MsgNotAuthenticated = "Please log in to continue"
	MsgVersionNotFound  = "Version not found"
	MsgVersionMismatch  = "Version does not belong to this snippet"
	MsgMissingID        = "Snippet id is required"
	MsgMissingTag       = "Tag is required"
)

// DefaultPageSize is used when ListActive is called without a limit
const DefaultPageSize = 10

// Identity reports whether a user is signed in and who
type Identity interface {
	IsAuthenticated() bool
	UserID() string
}

// Gateway turns one intent into one API request and one store event.
// Its methods are safe for concurrent use.
type Gateway struct {
	client   *apiclient.Client
	store    *store.Store
	identity Identity
	logger   *slog.Logger
	pageSize int
}

// New creates a gateway
func New(client *apiclient.Client, st *store.Store, identity Identity, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		client:   client,
		store:    st,
		identity: identity,
		logger:   logger,
		pageSize: DefaultPageSize,
	}
}

// WithPageSize sets the default page size of ListActive
func (g *Gateway) WithPageSize(n int) *Gateway {
	if n > 0 {
		g.pageSize = n
	}
	return g
}

// Store returns the store the gateway feeds
func (g *Gateway) Store() *store.Store {
	return g.store
}

// start begins op and checks that a user is signed in
func (g *Gateway) start(op store.Op) (uint64, error) {
	req := g.store.Begin(op)
	if g.identity == nil || !g.identity.IsAuthenticated() {
		return req, g.fail(op, req, "", apiclient.LocalError(string(op), MsgNotAuthenticated, apiclient.ErrUnauthenticated), "")
	}
	return req, nil
}

// fail records err against op in the store and returns it as *apiclient.Error
func (g *Gateway) fail(op store.Op, req uint64, target string, err error, fallback string) error {
	apiErr := apiclient.AsError(err, string(op), fallback)

	g.logger.Warn("snippet operation failed",
		"op", op,
		"kind", apiErr.Kind,
		"status", apiErr.Status,
		"message", apiErr.Message,
		"error", apiErr.Err,
	)

	g.store.Fail(op, req, target, store.ErrorInfo{
		Kind:    store.ErrorKind(apiErr.Kind),
		Message: apiErr.Message,
		Status:  apiErr.Status,
	})
	return apiErr
}

func (g *Gateway) requireID(op store.Op, req uint64, id string) error {
	if strings.TrimSpace(id) == "" {
		return g.fail(op, req, "", apiclient.LocalError(string(op), MsgMissingID, apiclient.ErrInvalidInput), "")
	}
	return nil
}

func (g *Gateway) validateInput(op store.Op, req uint64, target string, input *models.SnippetInput) error {
	if errs := validation.ValidateSnippetInput(input); errs.HasErrors() {
		return g.fail(op, req, target, apiclient.LocalError(string(op), errs.First(), fmt.Errorf("%w: %v", apiclient.ErrInvalidInput, errs)), "")
	}
	return nil
}

// ListActive loads one page of active snippets. A non-positive limit uses
// the configured page size.
func (g *Gateway) ListActive(ctx context.Context, page, limit int) ([]models.Snippet, models.Pagination, error) {
	op := store.OpListActive
	req, err := g.start(op)
	if err != nil {
		return nil, models.Pagination{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = g.pageSize
	}

	res, err := g.client.ListActive(ctx, page, limit)
	if err != nil {
		return nil, models.Pagination{}, g.fail(op, req, "", err, apiclient.FallbackListActive)
	}

	items := res.Items()
	pagination := models.NewPagination(page, limit, len(items))
	if res.Pagination != nil {
		pagination = *res.Pagination
	}
	g.store.Succeed(op, req, store.Payload{Snippets: items, Pagination: &pagination, Message: res.Message})
	return items, pagination, nil
}

// FetchOne loads a single snippet as the current one
func (g *Gateway) FetchOne(ctx context.Context, id string) (models.Snippet, error) {
	op := store.OpFetchOne
	req, err := g.start(op)
	if err != nil {
		return models.Snippet{}, err
	}
	if err := g.requireID(op, req, id); err != nil {
		return models.Snippet{}, err
	}

	res, err := g.client.Get(ctx, id)
	if err != nil {
		return models.Snippet{}, g.fail(op, req, id, err, apiclient.FallbackFetchOne)
	}
	g.store.Succeed(op, req, store.Payload{Snippet: res.Snippet, ID: id})
	return *res.Snippet, nil
}

// Create creates a snippet owned by the signed-in user
func (g *Gateway) Create(ctx context.Context, input models.SnippetInput) (models.Snippet, error) {
	op := store.OpCreate
	req, err := g.start(op)
	if err != nil {
		return models.Snippet{}, err
	}

	input.UserID = g.identity.UserID()
	if input.UserID == "" {
		return models.Snippet{}, g.fail(op, req, "", apiclient.LocalError(string(op), MsgNotAuthenticated, apiclient.ErrUnauthenticated), "")
	}
	input.Tags = append([]string(nil), input.Tags...)
	if err := g.validateInput(op, req, "", &input); err != nil {
		return models.Snippet{}, err
	}

	res, err := g.client.Create(ctx, input)
	if err != nil {
		return models.Snippet{}, g.fail(op, req, "", err, apiclient.FallbackCreate)
	}
	g.store.Succeed(op, req, store.Payload{Snippet: res.Snippet, ID: res.Snippet.ID, Message: res.Message})
	return *res.Snippet, nil
}

// Update replaces a snippet's editable fields
func (g *Gateway) Update(ctx context.Context, id string, input models.SnippetInput) (models.Snippet, error) {
	op := store.OpUpdate
	req, err := g.start(op)
	if err != nil {
		return models.Snippet{}, err
	}
	if err := g.requireID(op, req, id); err != nil {
		return models.Snippet{}, err
	}
	input.Tags = append([]string(nil), input.Tags...)
	if err := g.validateInput(op, req, id, &input); err != nil {
		return models.Snippet{}, err
	}

	res, err := g.client.Update(ctx, id, input)
	if err != nil {
		return models.Snippet{}, g.fail(op, req, id, err, apiclient.FallbackUpdate)
	}
	g.store.Succeed(op, req, store.Payload{Snippet: res.Snippet, ID: id, Message: res.Message})
	return *res.Snippet, nil
}

// MoveToTrash soft-deletes a snippet
func (g *Gateway) MoveToTrash(ctx context.Context, id string) error {
	op := store.OpMoveToTrash
	req, err := g.start(op)
	if err != nil {
		return err
	}
	if err := g.requireID(op, req, id); err != nil {
		return err
	}

	res, err := g.client.MoveToTrash(ctx, id)
	if err != nil {
		return g.fail(op, req, id, err, apiclient.FallbackMoveToTrash)
	}
	g.store.Succeed(op, req, store.Payload{ID: id, Message: res.Message})
	return nil
}

// ListTrash loads every trashed snippet
func (g *Gateway) ListTrash(ctx context.Context) ([]models.Snippet, error) {
	op := store.OpListTrash
	req, err := g.start(op)
	if err != nil {
		return nil, err
	}

	res, err := g.client.ListTrash(ctx)
	if err != nil {
		return nil, g.fail(op, req, "", err, apiclient.FallbackListTrash)
	}
	g.store.Succeed(op, req, store.Payload{Snippets: res.Items(), Message: res.Message})
	return res.Items(), nil
}

// RestoreFromTrash moves a trashed snippet back to the active set
func (g *Gateway) RestoreFromTrash(ctx context.Context, id string) (models.Snippet, error) {
	op := store.OpRestoreFromTrash
	req, err := g.start(op)
	if err != nil {
		return models.Snippet{}, err
	}
	if err := g.requireID(op, req, id); err != nil {
		return models.Snippet{}, err
	}

	res, err := g.client.RestoreFromTrash(ctx, id)
	if err != nil {
		return models.Snippet{}, g.fail(op, req, id, err, apiclient.FallbackRestoreFromTrash)
	}
	g.store.Succeed(op, req, store.Payload{Snippet: res.Snippet, ID: id, Message: res.Message})
	return *res.Snippet, nil
}

// EmptyTrash permanently deletes every trashed snippet
func (g *Gateway) EmptyTrash(ctx context.Context) error {
	op := store.OpEmptyTrash
	req, err := g.start(op)
	if err != nil {
		return err
	}

	res, err := g.client.EmptyTrash(ctx)
	if err != nil {
		return g.fail(op, req, "", err, apiclient.FallbackEmptyTrash)
	}
	g.store.Succeed(op, req, store.Payload{Message: res.Message})
	return nil
}

// DeleteForever permanently deletes a snippet
func (g *Gateway) DeleteForever(ctx context.Context, id string) error {
	op := store.OpDeleteForever
	req, err := g.start(op)
	if err != nil {
		return err
	}
	if err := g.requireID(op, req, id); err != nil {
		return err
	}

	res, err := g.client.Delete(ctx, id)
	if err != nil {
		return g.fail(op, req, id, err, apiclient.FallbackDelete)
	}
	g.store.Succeed(op, req, store.Payload{ID: id, Message: res.Message})
	return nil
}

// ToggleFavorite flips a snippet's favorite flag on the server
func (g *Gateway) ToggleFavorite(ctx context.Context, id string) (models.Snippet, error) {
	op := store.OpToggleFavorite
	req, err := g.start(op)
	if err != nil {
		return models.Snippet{}, err
	}
	if err := g.requireID(op, req, id); err != nil {
		return models.Snippet{}, err
	}

	res, err := g.client.ToggleFavorite(ctx, id)
	if err != nil {
		return models.Snippet{}, g.fail(op, req, id, err, apiclient.FallbackToggleFavorite)
	}
	g.store.Succeed(op, req, store.Payload{Snippet: res.Snippet, ID: id, Message: res.Message})
	return *res.Snippet, nil
}

// ListFavorites loads the favorite snippets
func (g *Gateway) ListFavorites(ctx context.Context) ([]models.Snippet, error) {
	op := store.OpListFavorites
	req, err := g.start(op)
	if err != nil {
		return nil, err
	}

	res, err := g.client.ListFavorites(ctx)
	if err != nil {
		return nil, g.fail(op, req, "", err, apiclient.FallbackListFavorites)
	}
	g.store.Succeed(op, req, store.Payload{Snippets: res.Items(), Message: res.Message})
	return res.Items(), nil
}

// Search runs a text search
func (g *Gateway) Search(ctx context.Context, query string) ([]models.Snippet, error) {
	op := store.OpSearch
	req, err := g.start(op)
	if err != nil {
		return nil, err
	}
	query, errs := validation.ValidateSearchQuery(query)
	if errs.HasErrors() {
		return nil, g.fail(op, req, "", apiclient.LocalError(string(op), errs.First(), apiclient.ErrInvalidInput), "")
	}

	res, err := g.client.Search(ctx, query)
	if err != nil {
		return nil, g.fail(op, req, "", err, apiclient.FallbackSearch)
	}
	g.store.Succeed(op, req, store.Payload{Snippets: res.Items(), Message: res.Message})
	return res.Items(), nil
}

// ListByTag loads active snippets carrying tag
func (g *Gateway) ListByTag(ctx context.Context, tag string) ([]models.Snippet, error) {
	op := store.OpListByTag
	req, err := g.start(op)
	if err != nil {
		return nil, err
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, g.fail(op, req, "", apiclient.LocalError(string(op), MsgMissingTag, apiclient.ErrInvalidInput), "")
	}

	res, err := g.client.ListByTag(ctx, tag)
	if err != nil {
		return nil, g.fail(op, req, "", err, apiclient.FallbackListByTag)
	}
	g.store.Succeed(op, req, store.Payload{Snippets: res.Items(), Message: res.Message})
	return res.Items(), nil
}

// FetchVersions loads a snippet's version history, oldest first
func (g *Gateway) FetchVersions(ctx context.Context, id string) ([]models.Version, error) {
	op := store.OpFetchVersions
	req, err := g.start(op)
	if err != nil {
		return nil, err
	}
	if err := g.requireID(op, req, id); err != nil {
		return nil, err
	}

	res, err := g.client.Versions(ctx, id)
	if err != nil {
		return nil, g.fail(op, req, id, err, apiclient.FallbackFetchVersions)
	}
	g.store.Succeed(op, req, store.Payload{Versions: res.Items(), ID: id, Message: res.Message})
	return res.Items(), nil
}

// RestoreVersion restores the held version at index onto snippet id.
// The version must exist in the list last fetched for id; otherwise no
// request is sent. The caller re-fetches versions afterwards.
func (g *Gateway) RestoreVersion(ctx context.Context, id string, index int) (models.Snippet, error) {
	op := store.OpRestoreVersion
	req, err := g.start(op)
	if err != nil {
		return models.Snippet{}, err
	}
	if err := g.requireID(op, req, id); err != nil {
		return models.Snippet{}, err
	}

	v, heldFor, ok := g.store.VersionAt(index)
	switch {
	case heldFor != "" && heldFor != id:
		return models.Snippet{}, g.fail(op, req, id, apiclient.LocalError(string(op), MsgVersionMismatch, apiclient.ErrVersionMismatch), "")
	case !ok:
		return models.Snippet{}, g.fail(op, req, id, apiclient.LocalError(string(op), MsgVersionNotFound, apiclient.ErrVersionNotFound), "")
	case v.SnippetID != "" && v.SnippetID != id:
		return models.Snippet{}, g.fail(op, req, id, apiclient.LocalError(string(op), MsgVersionMismatch, apiclient.ErrVersionMismatch), "")
	}

	res, err := g.client.RestoreVersion(ctx, id, index)
	if err != nil {
		return models.Snippet{}, g.fail(op, req, id, err, apiclient.FallbackRestoreVersion)
	}
	g.store.Succeed(op, req, store.Payload{Snippet: res.Snippet, ID: id, Message: res.Message})
	return *res.Snippet, nil
}

// Refresh loads the first page of active snippets, the trash and the
// favorites concurrently. Every load reports to the store on its own;
// the first error is returned.
func (g *Gateway) Refresh(ctx context.Context) error {
	var eg errgroup.Group
	eg.Go(func() error {
		_, _, err := g.ListActive(ctx, 1, g.pageSize)
		return err
	})
	eg.Go(func() error {
		_, err := g.ListTrash(ctx)
		return err
	})
	eg.Go(func() error {
		_, err := g.ListFavorites(ctx)
		return err
	})
	return eg.Wait()
}

// IsLocal reports whether err was rejected before any request was sent
func IsLocal(err error) bool {
	var apiErr *apiclient.Error
	return errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindLocal
}
