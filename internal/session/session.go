package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Common errors
var (
	ErrNoToken      = errors.New("no session token")
	ErrTokenExpired = errors.New("session token expired")
	ErrNoSubject    = errors.New("session token has no subject")
)

// Claims are the fields the client reads from a session token.
// The signature is verified by the server, not here.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenSource yields the current session token, or "" when logged out
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Session answers "is a user signed in, and who" from a token source
type Session struct {
	src    TokenSource
	now    func() time.Time
	parser *jwt.Parser
}

// New creates a session backed by src
func New(src TokenSource) *Session {
	return &Session{
		src:    src,
		now:    time.Now,
		parser: jwt.NewParser(),
	}
}

// WithClock overrides the clock used for expiry checks
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// Claims parses the current token
func (s *Session) Claims() (*Claims, error) {
	token := strings.TrimSpace(s.src.Token())
	if token == "" {
		return nil, ErrNoToken
	}

	var claims Claims
	if _, _, err := s.parser.ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}
	if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}

// IsAuthenticated reports whether a usable, unexpired token is held
func (s *Session) IsAuthenticated() bool {
	_, err := s.Claims()
	return err == nil
}

// UserID returns the signed-in user's id, or "" when there is none
func (s *Session) UserID() string {
	claims, err := s.Claims()
	if err != nil {
		return ""
	}
	return claims.Subject
}

// Email returns the signed-in user's email, or ""
func (s *Session) Email() string {
	claims, err := s.Claims()
	if err != nil {
		return ""
	}
	return claims.Email
}

// ExpiresAt returns when the current token expires; zero when unknown
func (s *Session) ExpiresAt() time.Time {
	claims, err := s.Claims()
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
