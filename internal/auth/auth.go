package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
	"golang.org/x/crypto/argon2"

	"github.com/MohamedElashri/snipvault/internal/models"
	"github.com/MohamedElashri/snipvault/internal/repository"
)

// Common errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
)

// SessionCookie is the cookie carrying the session token
const SessionCookie = "snipo_session"

// Argon2id parameters (OWASP recommended)
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// Claims are carried in every session token. The subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and verifies signed session tokens
type Service struct {
	users           *repository.UserRepository
	secret          []byte
	sessionDuration time.Duration
	secureCookies   bool
	logger          *slog.Logger
	now             func() time.Time
	parser          *jwt.Parser

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

// NewService creates a new authentication service
func NewService(users *repository.UserRepository, sessionSecret string, sessionDuration time.Duration, logger *slog.Logger) *Service {
	return &Service{
		users:           users,
		secret:          []byte(sessionSecret),
		sessionDuration: sessionDuration,
		secureCookies:   true,
		logger:          logger,
		now:             time.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
		revoked: make(map[string]time.Time),
	}
}

// WithSecureCookies controls the Secure flag of the session cookie
func (s *Service) WithSecureCookies(secure bool) *Service {
	s.secureCookies = secure
	return s
}

// WithClock overrides the clock used for issuing tokens
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	)
	return s
}

// Register creates a user with a hashed password
func (s *Service) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := s.users.Create(ctx, email, name, hash)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials and returns a fresh session token
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if user == nil || !VerifyPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("session created", "user_id", user.ID)
	return token, user, nil
}

// IssueToken signs a session token for user
func (s *Service) IssueToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionDuration)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

// Verify validates a session token and returns its claims
func (s *Service) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var claims Claims
	_, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, ErrTokenRevoked
	}

	return &claims, nil
}

// Revoke invalidates a token until it would have expired anyway
func (s *Service) Revoke(token string) error {
	claims, err := s.Verify(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	s.mu.Unlock()

	s.logger.Info("session revoked", "user_id", claims.Subject)
	return nil
}

// CleanupRevoked forgets revoked tokens that have expired
func (s *Service) CleanupRevoked() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("cleaned up revoked sessions", "count", removed)
	}
	return removed
}

// SetSessionCookie sets the session cookie on the response
func (s *Service) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.sessionDuration.Seconds()),
	})
}

// ClearSessionCookie clears the session cookie
func (s *Service) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// GetSessionFromRequest extracts the session token from the request
func GetSessionFromRequest(r *http.Request) string {
	// Check cookie first
	cookie, err := r.Cookie(SessionCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// Check Authorization header
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return ""
}

// HashPassword creates an Argon2id hash of a password
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	// Encode as: $argon2id$salt$hash
	return fmt.Sprintf("$argon2id$%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPasswordHash checks password against an Argon2id hash
func VerifyPasswordHash(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 4 || parts[1] != "argon2id" {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return false
	}

	hash, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(hash, computedHash) == 1
}

// GenerateSecret creates a random signing secret
func GenerateSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
