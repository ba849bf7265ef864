package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MohamedElashri/snipvault/internal/models"
)

// UserBasePath is the API prefix of the account endpoints
const UserBasePath = "/api/v1/user"

// LoginResult is returned by a successful login
type LoginResult struct {
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
	Message string       `json:"message,omitempty"`
}

func (r *LoginResult) validate() error {
	if r.Token == "" {
		return fmt.Errorf("%w: token", errMissingField)
	}
	if r.User == nil || r.User.ID == "" {
		return fmt.Errorf("%w: user", errMissingField)
	}
	return nil
}

// UserResult carries the current user
type UserResult struct {
	User *models.User `json:"user"`
}

func (r *UserResult) validate() error {
	if r.User == nil || r.User.ID == "" {
		return fmt.Errorf("%w: user", errMissingField)
	}
	return nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates and keeps the returned session token
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	var out LoginResult
	err := c.do(ctx, request{
		op:       "login",
		method:   http.MethodPost,
		path:     UserBasePath + "/login",
		body:     loginRequest{Email: email, Password: password},
		fallback: "Login failed",
	}, &out)
	if err != nil {
		return nil, err
	}
	c.SetToken(out.Token)
	return &out, nil
}

// Logout ends the session on the server and forgets the local token
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, request{op: "logout", method: http.MethodPost, path: UserBasePath + "/logout", fallback: "Logout failed"}, nil)
	c.SetToken("")
	return err
}

// Me returns the authenticated user
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var out UserResult
	if err := c.do(ctx, request{op: "me", method: http.MethodGet, path: UserBasePath + "/me", fallback: "Failed to fetch user"}, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}
