package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MohamedElashri/snipvault/internal/api/handlers"
	"github.com/MohamedElashri/snipvault/internal/api/middleware"
	"github.com/MohamedElashri/snipvault/internal/auth"
	"github.com/MohamedElashri/snipvault/internal/repository"
	"github.com/MohamedElashri/snipvault/internal/services"
)

// RouterConfig holds router configuration
type RouterConfig struct {
	DB             *sql.DB
	Logger         *slog.Logger
	AuthService    *auth.Service
	Version        string
	Commit         string
	AllowedOrigins []string
	LoginLimiter   *middleware.RateLimiter // nil disables login throttling
	Metrics        *prometheus.Registry    // nil disables /metrics
	Storage        handlers.Pinger         // optional, reported by /health
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetrics(cfg.Metrics).Middleware)
	}

	// Create repositories
	snippetRepo := repository.NewSnippetRepository(cfg.DB)
	versionRepo := repository.NewVersionRepository(cfg.DB)
	userRepo := repository.NewUserRepository(cfg.DB)

	// Create services
	snippetService := services.NewSnippetService(snippetRepo, cfg.Logger).
		WithVersionRepo(versionRepo)

	// Create handlers
	snippetHandler := handlers.NewSnippetHandler(snippetService, cfg.Logger)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, userRepo, cfg.Logger)
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version, cfg.Commit)
	if cfg.Storage != nil {
		healthHandler.WithStorage(cfg.Storage)
	}

	// Public routes (no auth required)
	r.Group(func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/ping", healthHandler.Ping)
		if cfg.Metrics != nil {
			r.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{}))
		}

		// Login is throttled per client IP
		r.Group(func(r chi.Router) {
			if cfg.LoginLimiter != nil {
				r.Use(cfg.LoginLimiter.Middleware)
			}
			r.Post("/api/v1/user/login", authHandler.Login)
		})

		r.Post("/api/v1/user/logout", authHandler.Logout)
	})

	// Protected routes (auth required)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.AuthService))

		r.Get("/api/v1/user/me", authHandler.Me)

		r.Route("/api/v1/snippet", func(r chi.Router) {
			r.Get("/", snippetHandler.List)
			r.Post("/", snippetHandler.Create)

			// static segments win over /{id} in chi's tree
			r.Get("/trash", snippetHandler.ListTrash)
			r.Delete("/trash", snippetHandler.EmptyTrash)
			r.Get("/favorites", snippetHandler.ListFavorites)
			r.Get("/search", snippetHandler.Search)
			r.Get("/tags", snippetHandler.Tags)
			r.Get("/tag/{tag}", snippetHandler.ListByTag)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", snippetHandler.Get)
				r.Put("/", snippetHandler.Update)
				r.Delete("/", snippetHandler.Delete)
				r.Patch("/trash", snippetHandler.MoveToTrash)
				r.Patch("/restore", snippetHandler.RestoreFromTrash)
				r.Patch("/favorite", snippetHandler.ToggleFavorite)
				r.Get("/versions", snippetHandler.Versions)
				r.Post("/restore/{versionIndex}", snippetHandler.RestoreVersion)
			})
		})
	})

	return r
}
