package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a single request round trip
const DefaultTimeout = 30 * time.Second

// SessionCookie is the cookie carrying the session token
const SessionCookie = "snipo_session"

// maxResponseSize caps how much of a response body is read
const maxResponseSize = 8 * 1024 * 1024

// Client talks to the snippet HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string

	mu    sync.RWMutex
	token string
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
// Cookies set by the server are kept in a jar and sent back.
func New(baseURL string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: base url %q must be absolute", ErrInvalidInput, baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		logger:    slog.Default(),
		userAgent: "snipctl",
	}, nil
}

// WithTimeout sets the per-request timeout
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithLogger sets the logger
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithToken sets the bearer token sent with every request
func (c *Client) WithToken(token string) *Client {
	c.SetToken(token)
	return c
}

// WithUserAgent sets the User-Agent header
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// SetToken replaces the session token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current session token: the explicit one if set,
// otherwise the session cookie held in the jar.
func (c *Client) Token() string {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		return token
	}
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// BaseURL returns the server address the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type request struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	fallback string
}

// do sends req and decodes a 2xx body into out. Non-2xx replies become
// KindRemote errors carrying the server's message, or the fallback.
func (c *Client) do(ctx context.Context, req request, out any) error {
	u := *c.baseURL
	u.RawPath = c.baseURL.EscapedPath() + req.path
	path, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return &Error{Kind: KindLocal, Op: req.op, Message: req.fallback, Err: err}
	}
	u.Path = path
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return &Error{Kind: KindLocal, Op: req.op, Message: req.fallback, Err: err}
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return &Error{Kind: KindLocal, Op: req.op, Message: req.fallback, Err: err}
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	httpReq.Header.Set("User-Agent", c.userAgent)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &Error{Kind: KindTransport, Op: req.op, Message: req.fallback, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &Error{Kind: KindTransport, Op: req.op, Status: resp.StatusCode, Message: req.fallback, Err: err}
	}

	c.logger.Debug("api request",
		"op", req.op,
		"method", req.method,
		"path", u.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Kind:    KindRemote,
			Op:      req.op,
			Status:  resp.StatusCode,
			Message: errorMessage(data, req.fallback),
			Err:     fmt.Errorf("http status %d", resp.StatusCode),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindMalformed, Op: req.op, Status: resp.StatusCode, Message: req.fallback, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	if v, ok := out.(validator); ok {
		if err := v.validate(); err != nil {
			return &Error{Kind: KindMalformed, Op: req.op, Status: resp.StatusCode, Message: req.fallback, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
		}
	}
	return nil
}

// errorBody is the server's failure envelope
type errorBody struct {
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// errorMessage reads the human-readable message from a failure body
func errorMessage(data []byte, fallback string) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return fallback
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	if body.Error != nil && strings.TrimSpace(body.Error.Message) != "" {
		return strings.TrimSpace(body.Error.Message)
	}
	return fallback
}

// validator is implemented by response envelopes that check their own shape
type validator interface {
	validate() error
}

var errMissingField = errors.New("missing field")
