package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/MohamedElashri/snipvault/internal/database"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const healthTimeout = 5 * time.Second

type dependency struct {
	name     string
	pinger   Pinger
	critical bool
}

// HealthHandler reports server and dependency health
type HealthHandler struct {
	db        *sql.DB
	deps      []dependency
	startTime time.Time
	version   string
	commit    string
}

// NewHealthHandler creates a health handler. The database is a critical
// dependency: when it is down the server reports unhealthy.
func NewHealthHandler(db *sql.DB, version, commit string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		deps:      []dependency{{name: "database", pinger: db, critical: true}},
		startTime: time.Now(),
		version:   version,
		commit:    commit,
	}
}

// WithStorage adds the backup object store. Snippets keep working without
// it, so a failure only degrades the status.
func (h *HealthHandler) WithStorage(p Pinger) *HealthHandler {
	h.deps = append(h.deps, dependency{name: "storage", pinger: p})
	return h
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Commit        string            `json:"commit,omitempty"`
	SchemaVersion int               `json:"schema_version"`
	Uptime        string            `json:"uptime"`
	Checks        map[string]string `json:"checks"`
	Runtime       RuntimeStats      `json:"runtime"`
	Timestamp     string            `json:"timestamp"`
}

// RuntimeStats is a small view of the Go runtime
type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	HeapMB     uint64 `json:"heap_mb"`
	SysMB      uint64 `json:"sys_mb"`
	NumGC      uint32 `json:"num_gc"`
}

func readRuntimeStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     m.HeapAlloc >> 20,
		SysMB:      m.Sys >> 20,
		NumGC:      m.NumGC,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := StatusHealthy
	checks := make(map[string]string, len(h.deps))
	for _, dep := range h.deps {
		if err := dep.pinger.PingContext(ctx); err != nil {
			checks[dep.name] = StatusUnhealthy + ": " + err.Error()
			if dep.critical {
				status = StatusUnhealthy
			} else if status == StatusHealthy {
				status = StatusDegraded
			}
			continue
		}
		checks[dep.name] = StatusHealthy
	}

	resp := HealthResponse{
		Status:    status,
		Version:   h.version,
		Commit:    h.commit,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    checks,
		Runtime:   readRuntimeStats(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if status != StatusUnhealthy {
		if v, err := database.SchemaVersion(ctx, h.db); err == nil {
			resp.SchemaVersion = v
		}
	}

	if status == StatusUnhealthy {
		JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	OK(w, resp)
}

// Ping handles GET /ping
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}
