package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MohamedElashri/snipvault/internal/api/middleware"
	"github.com/MohamedElashri/snipvault/internal/auth"
	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/repository"
	"github.com/MohamedElashri/snipvault/internal/services"
	"github.com/MohamedElashri/snipvault/internal/testutil"
)

// withChiURLParams adds chi URL params to a request context
func withChiURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, val := range params {
		rctx.URLParams.Add(key, val)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// asUser marks the request as authenticated for userID
func asUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), userID))
}

type snippetFixture struct {
	handler *SnippetHandler
	repo    *repository.SnippetRepository
	userID  string
	otherID string
}

// setupSnippetHandler creates a snippet handler with test database
func setupSnippetHandler(t *testing.T) snippetFixture {
	t.Helper()
	db := testutil.TestDB(t)
	snippetRepo := repository.NewSnippetRepository(db)
	logger := testutil.TestLogger()

	service := services.NewSnippetService(snippetRepo, logger).
		WithVersionRepo(repository.NewVersionRepository(db))

	return snippetFixture{
		handler: NewSnippetHandler(service, logger),
		repo:    snippetRepo,
		userID:  testutil.CreateUser(t, db, "owner@example.com"),
		otherID: testutil.CreateUser(t, db, "other@example.com"),
	}
}

func (f snippetFixture) create(t *testing.T, title string, tags ...string) *models.Snippet {
	t.Helper()
	s, err := f.repo.Create(context.Background(), &models.SnippetInput{
		Title:    title,
		Code:     "fmt.Println(1)",
		Language: "go",
		Tags:     tags,
		UserID:   f.userID,
	})
	if err != nil {
		t.Fatalf("failed to create snippet: %v", err)
	}
	return s
}

func (f snippetFixture) request(method, target string, body any, params map[string]string) *http.Request {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req = asUser(req, f.userID)
	if params != nil {
		req = withChiURLParams(req, params)
	}
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", w.Body.String(), err)
	}
	return v
}

func TestSnippetHandler_Create(t *testing.T) {
	f := setupSnippetHandler(t)

	input := map[string]interface{}{
		"title":               "Test Snippet",
		"code":                "console.log('hello');",
		"programmingLanguage": "javascript",
		"tags":                []string{"web", "debug"},
	}
	w := httptest.NewRecorder()
	f.handler.Create(w, f.request(http.MethodPost, "/api/v1/snippet/", input, nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	resp := decode[SnippetResponse](t, w)
	if resp.Snippet == nil || resp.Snippet.ID == "" {
		t.Fatal("expected snippet with id")
	}
	if resp.Snippet.Title != "Test Snippet" {
		t.Errorf("expected title 'Test Snippet', got %q", resp.Snippet.Title)
	}
	if resp.Snippet.UserID != f.userID {
		t.Errorf("expected owner %s, got %s", f.userID, resp.Snippet.UserID)
	}
	if resp.Message == "" {
		t.Error("expected a message")
	}
}

func TestSnippetHandler_Create_OtherUser(t *testing.T) {
	f := setupSnippetHandler(t)

	input := map[string]interface{}{
		"title":  "Spoofed",
		"code":   "x",
		"userId": f.otherID,
	}
	w := httptest.NewRecorder()
	f.handler.Create(w, f.request(http.MethodPost, "/api/v1/snippet/", input, nil))

	if w.Code != http.StatusForbidden {
		t.Errorf("expected status %d, got %d", http.StatusForbidden, w.Code)
	}
}

func TestSnippetHandler_Create_InvalidJSON(t *testing.T) {
	f := setupSnippetHandler(t)

	invalid := []string{
		`{"title": "test", "code": }`,
		`{"title": "test", "code": "x", "content": "unknown field"}`,
		`[{"title": "test"}]`,
		`{"title": "a", "code": "b"}{"title": "c"}`,
	}
	for _, body := range invalid {
		w := httptest.NewRecorder()
		f.handler.Create(w, f.request(http.MethodPost, "/api/v1/snippet/", body, nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", body, http.StatusBadRequest, w.Code)
		}
	}
}

func TestSnippetHandler_Create_ValidationError(t *testing.T) {
	f := setupSnippetHandler(t)

	w := httptest.NewRecorder()
	f.handler.Create(w, f.request(http.MethodPost, "/api/v1/snippet/", map[string]string{"code": "x"}, nil))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	resp := decode[ErrorResponse](t, w)
	if resp.Success {
		t.Error("expected success=false")
	}
	if resp.Code != "VALIDATION_ERROR" {
		t.Errorf("expected VALIDATION_ERROR, got %s", resp.Code)
	}
	if resp.Message != "Title is required" {
		t.Errorf("expected first validation message, got %q", resp.Message)
	}
	if len(resp.Details) == 0 {
		t.Error("expected validation details")
	}
}

func TestSnippetHandler_Get(t *testing.T) {
	f := setupSnippetHandler(t)
	s := f.create(t, "Get Me")

	w := httptest.NewRecorder()
	f.handler.Get(w, f.request(http.MethodGet, "/api/v1/snippet/"+s.ID, nil, map[string]string{"id": s.ID}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	resp := decode[SnippetResponse](t, w)
	if resp.Snippet == nil || resp.Snippet.ID != s.ID {
		t.Errorf("expected snippet %s, got %+v", s.ID, resp.Snippet)
	}

	// raw field names are part of the wire format
	body := w.Body.String()
	for _, field := range []string{`"_id"`, `"programmingLanguage"`, `"isFavorite"`, `"createdAt"`, `"updatedAt"`} {
		if !strings.Contains(body, field) {
			t.Errorf("expected %s in response: %s", field, body)
		}
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}
}

func TestSnippetHandler_Get_NotFound(t *testing.T) {
	f := setupSnippetHandler(t)
	s := f.create(t, "Private")

	tests := []struct {
		name   string
		id     string
		userID string
	}{
		{"unknown id", "does-not-exist", f.userID},
		{"other user", s.ID, f.otherID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(http.MethodGet, "/api/v1/snippet/"+tt.id, nil, map[string]string{"id": tt.id})
			req = asUser(req, tt.userID)
			w := httptest.NewRecorder()
			f.handler.Get(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
			}
			resp := decode[ErrorResponse](t, w)
			if resp.Message != "Snippet not found" || resp.Code != "NOT_FOUND" {
				t.Errorf("unexpected error body: %+v", resp)
			}
		})
	}
}

func TestSnippetHandler_List_WithPagination(t *testing.T) {
	f := setupSnippetHandler(t)
	for _, title := range []string{"one", "two", "three"} {
		f.create(t, title)
	}

	w := httptest.NewRecorder()
	f.handler.List(w, f.request(http.MethodGet, "/api/v1/snippet/?page=2&limit=2", nil, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	resp := decode[SnippetsResponse](t, w)
	if len(resp.Snippets) != 1 {
		t.Errorf("expected 1 snippet on page 2, got %d", len(resp.Snippets))
	}
	if resp.Pagination == nil {
		t.Fatal("expected pagination")
	}
	if resp.Pagination.CurrentPage != 2 || resp.Pagination.TotalPages != 2 || resp.Pagination.TotalSnippets != 3 {
		t.Errorf("unexpected pagination: %+v", resp.Pagination)
	}
	if resp.Pagination.HasNextPage || !resp.Pagination.HasPrevPage {
		t.Errorf("unexpected page flags: %+v", resp.Pagination)
	}
}

func TestSnippetHandler_List_Empty(t *testing.T) {
	f := setupSnippetHandler(t)

	w := httptest.NewRecorder()
	f.handler.List(w, f.request(http.MethodGet, "/api/v1/snippet/", nil, nil))

	if !strings.Contains(w.Body.String(), `"snippets":[]`) {
		t.Errorf("expected empty array, got %s", w.Body.String())
	}
}

func TestSnippetHandler_Update(t *testing.T) {
	f := setupSnippetHandler(t)
	s := f.create(t, "Before")

	input := map[string]interface{}{"title": "After", "code": "fmt.Println(2)", "programmingLanguage": "go"}
	w := httptest.NewRecorder()
	f.handler.Update(w, f.request(http.MethodPut, "/api/v1/snippet/"+s.ID, input, map[string]string{"id": s.ID}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	resp := decode[SnippetResponse](t, w)
	if resp.Snippet.Title != "After" || resp.Snippet.ID != s.ID {
		t.Errorf("unexpected snippet: %+v", resp.Snippet)
	}

	w = httptest.NewRecorder()
	f.handler.Versions(w, f.request(http.MethodGet, "/", nil, map[string]string{"id": s.ID}))
	versions := decode[VersionsResponse](t, w)
	if len(versions.Versions) != 1 || versions.Versions[0].Title != "Before" {
		t.Errorf("expected the pre-edit state archived, got %+v", versions.Versions)
	}
}

func TestSnippetHandler_TrashLifecycle(t *testing.T) {
	f := setupSnippetHandler(t)
	s := f.create(t, "Trash me")
	params := map[string]string{"id": s.ID}

	// restoring an active snippet conflicts
	w := httptest.NewRecorder()
	f.handler.RestoreFromTrash(w, f.request(http.MethodPatch, "/", nil, params))
	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}

	w = httptest.NewRecorder()
	f.handler.MoveToTrash(w, f.request(http.MethodPatch, "/", nil, params))
	if w.Code != http.StatusOK {
		t.Fatalf("move to trash: expected %d, got %d", http.StatusOK, w.Code)
	}

	w = httptest.NewRecorder()
	f.handler.ListTrash(w, f.request(http.MethodGet, "/api/v1/snippet/trash", nil, nil))
	if trash := decode[SnippetsResponse](t, w); len(trash.Snippets) != 1 {
		t.Errorf("expected 1 trashed snippet, got %d", len(trash.Snippets))
	}

	w = httptest.NewRecorder()
	f.handler.Get(w, f.request(http.MethodGet, "/", nil, params))
	if w.Code != http.StatusNotFound {
		t.Errorf("trashed snippet should not be fetchable, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	f.handler.RestoreFromTrash(w, f.request(http.MethodPatch, "/", nil, params))
	if w.Code != http.StatusOK {
		t.Fatalf("restore: expected %d, got %d", http.StatusOK, w.Code)
	}
	if restored := decode[SnippetResponse](t, w); restored.Snippet.ID != s.ID {
		t.Errorf("expected restored snippet %s", s.ID)
	}

	f.handler.MoveToTrash(httptest.NewRecorder(), f.request(http.MethodPatch, "/", nil, params))
	w = httptest.NewRecorder()
	f.handler.EmptyTrash(w, f.request(http.MethodDelete, "/api/v1/snippet/trash", nil, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("empty trash: expected %d, got %d", http.StatusOK, w.Code)
	}

	// emptying an empty trash succeeds
	w = httptest.NewRecorder()
	f.handler.EmptyTrash(w, f.request(http.MethodDelete, "/api/v1/snippet/trash", nil, nil))
	if w.Code != http.StatusOK {
		t.Errorf("empty trash twice: expected %d, got %d", http.StatusOK, w.Code)
	}
}

func TestSnippetHandler_Delete(t *testing.T) {
	f := setupSnippetHandler(t)
	s := f.create(t, "Delete me")
	params := map[string]string{"id": s.ID}

	w := httptest.NewRecorder()
	f.handler.Delete(w, f.request(http.MethodDelete, "/", nil, params))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if resp := decode[MessageResponse](t, w); resp.Message == "" {
		t.Error("expected a message")
	}

	w = httptest.NewRecorder()
	f.handler.Delete(w, f.request(http.MethodDelete, "/", nil, params))
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestSnippetHandler_ToggleFavorite(t *testing.T) {
	f := setupSnippetHandler(t)
	s := f.create(t, "Fav")
	params := map[string]string{"id": s.ID}

	w := httptest.NewRecorder()
	f.handler.ToggleFavorite(w, f.request(http.MethodPatch, "/", nil, params))
	if resp := decode[SnippetResponse](t, w); !resp.Snippet.IsFavorite {
		t.Error("expected snippet to be favorite")
	}

	w = httptest.NewRecorder()
	f.handler.ListFavorites(w, f.request(http.MethodGet, "/api/v1/snippet/favorites", nil, nil))
	if favs := decode[SnippetsResponse](t, w); len(favs.Snippets) != 1 {
		t.Errorf("expected 1 favorite, got %d", len(favs.Snippets))
	}

	w = httptest.NewRecorder()
	f.handler.ToggleFavorite(w, f.request(http.MethodPatch, "/", nil, params))
	if resp := decode[SnippetResponse](t, w); resp.Snippet.IsFavorite {
		t.Error("expected snippet not to be favorite")
	}
}

func TestSnippetHandler_Search(t *testing.T) {
	f := setupSnippetHandler(t)
	f.create(t, "Binary search tree")
	f.create(t, "Linked list")

	w := httptest.NewRecorder()
	f.handler.Search(w, f.request(http.MethodGet, "/api/v1/snippet/search?query=binary", nil, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if resp := decode[SnippetsResponse](t, w); len(resp.Snippets) != 1 {
		t.Errorf("expected 1 result, got %d", len(resp.Snippets))
	}

	w = httptest.NewRecorder()
	f.handler.Search(w, f.request(http.MethodGet, "/api/v1/snippet/search?query=+", nil, nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank query: expected %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestSnippetHandler_ListByTag(t *testing.T) {
	f := setupSnippetHandler(t)
	f.create(t, "C++ thing", "c++")
	f.create(t, "Go thing", "go")

	req := f.request(http.MethodGet, "/api/v1/snippet/tag/c%2B%2B", nil, map[string]string{"tag": "c%2B%2B"})
	w := httptest.NewRecorder()
	f.handler.ListByTag(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	resp := decode[SnippetsResponse](t, w)
	if len(resp.Snippets) != 1 || resp.Snippets[0].Title != "C++ thing" {
		t.Errorf("unexpected snippets: %+v", resp.Snippets)
	}
}

func TestSnippetHandler_RestoreVersion(t *testing.T) {
	f := setupSnippetHandler(t)
	s := f.create(t, "v1")
	params := map[string]string{"id": s.ID}

	input := map[string]interface{}{"title": "v2", "code": "fmt.Println(1)", "programmingLanguage": "go"}
	f.handler.Update(httptest.NewRecorder(), f.request(http.MethodPut, "/", input, params))

	tests := []struct {
		name   string
		index  string
		status int
	}{
		{"not a number", "abc", http.StatusBadRequest},
		{"negative", "-1", http.StatusBadRequest},
		{"out of range", "5", http.StatusNotFound},
		{"valid", "0", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(http.MethodPost, "/", nil, map[string]string{"id": s.ID, "versionIndex": tt.index})
			w := httptest.NewRecorder()
			f.handler.RestoreVersion(w, req)
			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			if tt.status == http.StatusOK {
				resp := decode[SnippetResponse](t, w)
				if resp.Snippet.ID != s.ID || resp.Snippet.Title != "v1" {
					t.Errorf("unexpected restored snippet: %+v", resp.Snippet)
				}
			}
		})
	}
}

func setupAuthHandler(t *testing.T) (*AuthHandler, *auth.Service) {
	t.Helper()
	db := testutil.TestDB(t)
	users := repository.NewUserRepository(db)
	svc := auth.NewService(users, "test-secret", time.Hour, testutil.TestLogger())
	if _, err := svc.Register(context.Background(), "dev@example.com", "Dev", "correct horse"); err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	return NewAuthHandler(svc, users, testutil.TestLogger()), svc
}

func TestAuthHandler_Login(t *testing.T) {
	handler, svc := setupAuthHandler(t)

	body := `{"email": "dev@example.com", "password": "correct horse"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	resp := decode[LoginResponse](t, w)
	if resp.Token == "" || resp.User == nil || resp.User.Email != "dev@example.com" {
		t.Fatalf("unexpected login response: %+v", resp)
	}
	if strings.Contains(w.Body.String(), "argon2id") {
		t.Error("password hash leaked in login response")
	}
	if _, err := svc.Verify(resp.Token); err != nil {
		t.Errorf("issued token does not verify: %v", err)
	}

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value == resp.Token {
			found = true
		}
	}
	if !found {
		t.Error("expected session cookie")
	}
}

func TestAuthHandler_Login_Rejected(t *testing.T) {
	handler, _ := setupAuthHandler(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"wrong password", `{"email": "dev@example.com", "password": "nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"email": "who@example.com", "password": "correct horse"}`, http.StatusUnauthorized},
		{"missing fields", `{"email": ""}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Login(w, httptest.NewRequest(http.MethodPost, "/api/v1/user/login", strings.NewReader(tt.body)))
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestAuthHandler_MeAndLogout(t *testing.T) {
	handler, svc := setupAuthHandler(t)

	token, user, err := svc.Login(context.Background(), "dev@example.com", "correct horse")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	w := httptest.NewRecorder()
	handler.Me(w, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/user/me", nil), user.ID))
	if resp := decode[UserResponse](t, w); resp.User == nil || resp.User.ID != user.ID {
		t.Errorf("unexpected me response: %s", w.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.Logout(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if _, err := svc.Verify(token); err == nil {
		t.Error("expected token to be revoked after logout")
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	db := testutil.TestDB(t)
	handler := NewHealthHandler(db, "test", "abc123")

	w := httptest.NewRecorder()
	handler.Ping(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if w.Body.String() != "pong" {
		t.Errorf("expected body 'pong', got %q", w.Body.String())
	}
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return context.DeadlineExceeded }

func TestHealthHandler_Health(t *testing.T) {
	db := testutil.TestDB(t)

	tests := []struct {
		name    string
		handler *HealthHandler
		status  int
		state   string
	}{
		{"database only", NewHealthHandler(db, "1.0.0", "abc"), http.StatusOK, "healthy"},
		{"storage down", NewHealthHandler(db, "1.0.0", "abc").WithStorage(failingPinger{}), http.StatusOK, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			resp := decode[HealthResponse](t, w)
			if resp.Status != tt.state {
				t.Errorf("expected status %q, got %q", tt.state, resp.Status)
			}
			if resp.Version != "1.0.0" {
				t.Errorf("expected version '1.0.0', got %q", resp.Version)
			}
			if resp.SchemaVersion == 0 {
				t.Error("expected schema version to be reported")
			}
			if resp.Checks["database"] != StatusHealthy {
				t.Errorf("expected healthy database check, got %q", resp.Checks["database"])
			}
		})
	}
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	db := testutil.TestDB(t)
	handler := NewHealthHandler(db, "1.0.0", "abc")
	db.Close()

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	resp := decode[HealthResponse](t, w)
	if resp.Status != StatusUnhealthy {
		t.Errorf("expected status %q, got %q", StatusUnhealthy, resp.Status)
	}
	if !strings.HasPrefix(resp.Checks["database"], StatusUnhealthy) {
		t.Errorf("expected failed database check, got %q", resp.Checks["database"])
	}
}
