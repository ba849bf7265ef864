package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MohamedElashri/snipvault/internal/api/middleware"
	"github.com/MohamedElashri/snipvault/internal/auth"
	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/repository"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *auth.Service
	users       *repository.UserRepository
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, users *repository.UserRepository, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, users: users, logger: logger}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
	Message string       `json:"message,omitempty"`
}

// UserResponse carries the authenticated user
type UserResponse struct {
	User *models.User `json:"user"`
}

// Login handles POST /api/v1/user/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON payload")
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		Error(w, http.StatusBadRequest, "MISSING_FIELDS", "Email and password are required")
		return
	}

	token, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
			return
		}
		h.logger.Error("login failed", "error", err)
		InternalError(w)
		return
	}

	h.authService.SetSessionCookie(w, token)

	OK(w, LoginResponse{
		Token:   token,
		User:    user,
		Message: "Login successful",
	})
}

// Logout handles POST /api/v1/user/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := auth.GetSessionFromRequest(r); token != "" {
		_ = h.authService.Revoke(token)
	}

	h.authService.ClearSessionCookie(w)

	OK(w, MessageResponse{Message: "Logout successful"})
}

// Me handles GET /api/v1/user/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.Error("failed to load user", "error", err)
		InternalError(w)
		return
	}
	if user == nil {
		Unauthorized(w)
		return
	}

	OK(w, UserResponse{User: user})
}
