package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/MohamedElashri/snipvault/internal/auth"
)

// APIVersion is reported on every API response
const APIVersion = "v1"

type contextKey string

// Context keys set by this package
const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyUserID    contextKey = "user_id"
)

// TrustProxy makes getClientIP honor X-Forwarded-For and X-Real-IP.
// Only enable it behind a reverse proxy that sets those headers.
var TrustProxy = false

// RequestID keeps the caller's X-Request-ID, or assigns a new one, and
// echoes it on the response
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextKeyRequestID, id)))
	})
}

// GetRequestID returns the request id stored in ctx
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// WithUserID stores the authenticated user id in ctx
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// GetUserID returns the authenticated user id stored in ctx
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyUserID).(string)
	return id
}

// SecurityHeaders adds essential security headers to responses
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent XSS
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")

		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("X-API-Version", APIVersion)
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		} else {
			w.Header().Set("Content-Security-Policy", strings.Join([]string{
				"default-src 'self'",
				"script-src 'self'",
				"style-src 'self' 'unsafe-inline'",
				"img-src 'self' data:",
				"frame-ancestors 'none'",
				"base-uri 'self'",
			}, "; "))
		}

		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		next.ServeHTTP(w, r)
	})
}

// Logger logs HTTP requests
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
				"ip", getClientIP(r),
				"request_id", GetRequestID(r.Context()),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// writeError sends the API failure envelope
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
		"code":    code,
	})
}

// Recovery recovers from panics and logs the error
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"error", err,
						"stack", string(debug.Stack()),
						"path", r.URL.Path,
						"request_id", GetRequestID(r.Context()),
					)
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without a valid session token and stores
// the token's user id in the request context
func RequireAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authService.Verify(auth.GetSessionFromRequest(r))
			if err != nil {
				msg := "Authentication required"
				if errors.Is(err, auth.ErrSessionExpired) {
					msg = "Session expired. Please log in again."
				}
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.Subject)))
		})
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if TrustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			if ip := strings.TrimSpace(ips[0]); ip != "" {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CORS allows cross-origin API calls from the given origins. With no
// origins configured, cross-origin requests get no CORS headers.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		// an empty list means "*" to cors.Handler
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
}
