package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// TestSecurity_SQLInjection tests SQL injection prevention
func TestSecurity_SQLInjection(t *testing.T) {
	f := setupSnippetHandler(t)
	f.create(t, "canary")

	attempts := []string{
		"'; DROP TABLE snippets; --",
		"' OR '1'='1",
		"1' UNION SELECT * FROM users--",
		"\" OR title MATCH \"*",
	}

	for _, attempt := range attempts {
		t.Run(fmt.Sprintf("attempt:%s", attempt), func(t *testing.T) {
			input := models.SnippetInput{Title: attempt, Code: "test", Language: "go"}
			w := httptest.NewRecorder()
			f.handler.Create(w, f.request(http.MethodPost, "/api/v1/snippet/", input, nil))
			if w.Code != http.StatusCreated && w.Code != http.StatusBadRequest {
				t.Errorf("unexpected status code %d for injection attempt", w.Code)
			}

			w = httptest.NewRecorder()
			f.handler.Search(w, f.request(http.MethodGet, "/api/v1/snippet/search?query=x", nil, nil))
			if w.Code != http.StatusOK {
				t.Errorf("search broken after injection attempt: %d", w.Code)
			}

			// the attempt as a search query is treated as text
			req := f.request(http.MethodGet, "/api/v1/snippet/search", nil, nil)
			q := req.URL.Query()
			q.Set("query", attempt)
			req.URL.RawQuery = q.Encode()
			w = httptest.NewRecorder()
			f.handler.Search(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("expected search to succeed, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	w := httptest.NewRecorder()
	f.handler.List(w, f.request(http.MethodGet, "/api/v1/snippet/", nil, nil))
	if !strings.Contains(w.Body.String(), "canary") {
		t.Error("database appears compromised - canary snippet is gone")
	}
}

// TestSecurity_ExcessivePayload tests large payload handling
func TestSecurity_ExcessivePayload(t *testing.T) {
	f := setupSnippetHandler(t)

	testCases := []struct {
		name   string
		size   int
		status int
	}{
		{"small payload", 1024, http.StatusCreated},
		{"code over 1MB", 1024*1024 + 1, http.StatusBadRequest},
		{"body over 2MB", 3 * 1024 * 1024, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			input := models.SnippetInput{Title: "Large Payload Test", Code: strings.Repeat("A", tc.size)}
			w := httptest.NewRecorder()
			f.handler.Create(w, f.request(http.MethodPost, "/api/v1/snippet/", input, nil))

			if w.Code != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, w.Code)
			}
		})
	}
}

// TestSecurity_CrossUserAccess checks that every per-snippet operation is
// scoped to the owner
func TestSecurity_CrossUserAccess(t *testing.T) {
	f := setupSnippetHandler(t)
	s := f.create(t, "Owner only")
	params := map[string]string{"id": s.ID, "versionIndex": "0"}

	ops := map[string]http.HandlerFunc{
		"get":             f.handler.Get,
		"trash":           f.handler.MoveToTrash,
		"favorite":        f.handler.ToggleFavorite,
		"versions":        f.handler.Versions,
		"restore_version": f.handler.RestoreVersion,
		"delete":          f.handler.Delete,
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			req := asUser(f.request(http.MethodGet, "/", nil, params), f.otherID)
			w := httptest.NewRecorder()
			op(w, req)
			if w.Code != http.StatusNotFound {
				t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
			}
		})
	}

	// other user's lists stay empty
	w := httptest.NewRecorder()
	f.handler.List(w, asUser(f.request(http.MethodGet, "/", nil, nil), f.otherID))
	if strings.Contains(w.Body.String(), s.ID) {
		t.Error("snippet leaked into another user's list")
	}
}

// TestSecurity_ConcurrentAccess tests concurrent access safety
func TestSecurity_ConcurrentAccess(t *testing.T) {
	f := setupSnippetHandler(t)

	var wg sync.WaitGroup
	codes := make([]int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			input := models.SnippetInput{Title: fmt.Sprintf("Concurrent Snippet %d", n), Code: "test"}
			w := httptest.NewRecorder()
			f.handler.Create(w, f.request(http.MethodPost, "/api/v1/snippet/", input, nil))
			codes[n] = w.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusCreated {
			t.Errorf("request %d: expected status %d, got %d", i, http.StatusCreated, code)
		}
	}
}

// TestSecurity_NoDataLeakageInErrors tests that errors don't leak sensitive information
func TestSecurity_NoDataLeakageInErrors(t *testing.T) {
	f := setupSnippetHandler(t)

	testCases := []struct {
		name string
		call func(w http.ResponseWriter)
	}{
		{"invalid ID", func(w http.ResponseWriter) {
			f.handler.Get(w, f.request(http.MethodGet, "/", nil, map[string]string{"id": "invalid-id"}))
		}},
		{"malformed JSON", func(w http.ResponseWriter) {
			f.handler.Create(w, f.request(http.MethodPost, "/", "{invalid}", nil))
		}},
		{"bad version index", func(w http.ResponseWriter) {
			f.handler.RestoreVersion(w, f.request(http.MethodPost, "/", nil, map[string]string{"id": "x", "versionIndex": "x"}))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tc.call(w)

			body := strings.ToLower(w.Body.String())
			for _, keyword := range []string{"password", "secret", "token", "database", "sql", "/users/", "c:\\"} {
				if strings.Contains(body, keyword) {
					t.Errorf("error response contains sensitive keyword '%s': %s", keyword, body)
				}
			}
			if !strings.Contains(body, `"success":false`) {
				t.Errorf("expected failure envelope, got %s", body)
			}
		})
	}
}
