// Package client talks to the notely REST API. A Client satisfies
// editor.Store, so an editor session can save through the network.
package client

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
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aretw0/notely/pkg/core"
	"github.com/aretw0/notely/pkg/editor"
)

// DefaultBaseURL is where a local `notely serve` listens.
const DefaultBaseURL = "http://localhost:8000/api"

const sessionCookie = "sessionid"

// ErrUnavailable is returned while the circuit breaker rejects requests.
var ErrUnavailable = errors.New("notely api unavailable")

// Client is a REST client with session handling and a circuit breaker.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its cookie jar, if
// any, is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken starts the client with a saved session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBreakerSettings replaces the circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) { c.breaker = gobreaker.NewCircuitBreaker(st) }
}

// New creates a client for baseURL, e.g. "http://localhost:8000/api".
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second, Jar: jar},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = gobreaker.NewCircuitBreaker(DefaultBreakerSettings("notely-api", c.logger))
	}
	return c
}

// DefaultBreakerSettings trips after five consecutive transport failures or
// server errors and probes again after ten seconds. Client errors (4xx)
// never count as failures.
func DefaultBreakerSettings(name string, logger *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.StatusCode < 500
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
}

// Token returns the current session token, or "" when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// BreakerState reports the circuit breaker state ("closed", "open", "half-open").
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = buf
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, method, path, payload, out)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.captureSession(resp)

	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// captureSession keeps the token the server sets on login and drops it on logout.
func (c *Client) captureSession(resp *http.Response) {
	for _, ck := range resp.Cookies() {
		if ck.Name != sessionCookie {
			continue
		}
		if ck.Value == "" || ck.MaxAge < 0 {
			c.setToken("")
		} else {
			c.setToken(ck.Value)
		}
	}
}

// --- Auth ---

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Health checks the server.
func (c *Client) Health(ctx context.Context) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	u.Path = "/health"
	return c.doJSON(ctx, http.MethodGet, u.String(), nil, nil)
}

// Register creates an account and logs in.
func (c *Client) Register(ctx context.Context, username, password, email string) (core.User, error) {
	var u core.User
	err := c.doJSON(ctx, http.MethodPost, "/auth/register/", credentials{username, password, email}, &u)
	return u, err
}

// Login starts a session.
func (c *Client) Login(ctx context.Context, username, password string) (core.User, error) {
	var u core.User
	err := c.doJSON(ctx, http.MethodPost, "/auth/login/", credentials{Username: username, Password: password}, &u)
	return u, err
}

// Logout ends the session. The local token is cleared even if the server
// call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout/", nil, nil)
	c.setToken("")
	return err
}

// Me returns the logged-in user.
func (c *Client) Me(ctx context.Context) (core.User, error) {
	var u core.User
	err := c.doJSON(ctx, http.MethodGet, "/auth/me/", nil, &u)
	return u, err
}

// --- Lists ---

type page[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// collect follows next links until the last page.
func collect[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for path != "" {
		var p page[T]
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Results...)
		path = ""
		if p.Next != nil {
			path = *p.Next
		}
	}
	if all == nil {
		all = []T{}
	}
	return all, nil
}

// ListCategories returns every category with the caller's note counts.
func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	return collect[core.Category](ctx, c, "/categories/")
}

// GetCategory returns one category.
func (c *Client) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var cat core.Category
	err := c.doJSON(ctx, http.MethodGet, "/categories/"+strconv.FormatInt(id, 10)+"/", nil, &cat)
	return cat, err
}

// --- Notes ---

// ListNotes returns the caller's notes, newest first. A categoryID of 0 lists all.
func (c *Client) ListNotes(ctx context.Context, categoryID int64) ([]core.Note, error) {
	path := "/notes/"
	if categoryID > 0 {
		path += "?category_id=" + strconv.FormatInt(categoryID, 10)
	}
	return collect[core.Note](ctx, c, path)
}

// GetNote returns one note.
func (c *Client) GetNote(ctx context.Context, id int64) (core.Note, error) {
	var n core.Note
	err := c.doJSON(ctx, http.MethodGet, notePath(id), nil, &n)
	return n, err
}

// CreateNote creates a note.
func (c *Client) CreateNote(ctx context.Context, in core.NoteInput) (core.Note, error) {
	var n core.Note
	err := c.doJSON(ctx, http.MethodPost, "/notes/", in, &n)
	return n, err
}

// UpdateNote sends a partial update.
func (c *Client) UpdateNote(ctx context.Context, id int64, patch core.NotePatch) (core.Note, error) {
	var n core.Note
	err := c.doJSON(ctx, http.MethodPatch, notePath(id), patch, &n)
	return n, err
}

// ReplaceNote overwrites every editable field.
func (c *Client) ReplaceNote(ctx context.Context, id int64, in core.NoteInput) (core.Note, error) {
	var n core.Note
	err := c.doJSON(ctx, http.MethodPut, notePath(id), in, &n)
	return n, err
}

// DeleteNote deletes a note.
func (c *Client) DeleteNote(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, notePath(id), nil, nil)
}

func notePath(id int64) string {
	return "/notes/" + strconv.FormatInt(id, 10) + "/"
}

var _ editor.Store = (*Client)(nil)
