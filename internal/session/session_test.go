package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestSession_ValidToken(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	token := signed(t, Claims{
		Email: "dev@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})

	s := New(StaticToken(token)).WithClock(func() time.Time { return now })

	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "user-1", s.UserID())
	assert.Equal(t, "dev@example.com", s.Email())
	assert.Equal(t, now.Add(time.Hour), s.ExpiresAt().UTC())
}

func TestSession_NoToken(t *testing.T) {
	s := New(StaticToken(""))

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.UserID())
	_, err := s.Claims()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	token := signed(t, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	}})

	s := New(StaticToken(token)).WithClock(func() time.Time { return now })

	assert.False(t, s.IsAuthenticated())
	_, err := s.Claims()
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSession_MissingSubject(t *testing.T) {
	token := signed(t, Claims{Email: "x@y.z"})

	_, err := New(StaticToken(token)).Claims()
	assert.ErrorIs(t, err, ErrNoSubject)
}

func TestSession_Garbage(t *testing.T) {
	s := New(StaticToken("not-a-jwt"))
	assert.False(t, s.IsAuthenticated())
}

type swapSource struct{ token string }

func (s *swapSource) Token() string { return s.token }

func TestSession_FollowsSource(t *testing.T) {
	src := &swapSource{}
	s := New(src)
	assert.False(t, s.IsAuthenticated())

	src.token = signed(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u2"}})
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "u2", s.UserID())
}
