// Package transport is the shared HTTP client used by the dashboard and the
// CLI. It attaches the session credential to every request, retries transient
// failures and coordinates a single session refresh for any number of
// concurrent callers that observe an expired session.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	DefaultRefreshPath = "/auth/refresh-token"
	userAgent          = "paneld/1.0"
)

// DefaultBypassRefresh are the credential-submission endpoints
var DefaultBypassRefresh = []string{"/auth/login", "/auth/register"}

// Config is resolved once at construction and never changes afterwards
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryStep  time.Duration

	// RefreshPath is POSTed to renew the session (default /auth/refresh-token)
	RefreshPath string
	// ExpiredStatus marks an expired session (default 401)
	ExpiredStatus int
	// BypassRefresh lists paths whose expired-session status is an ordinary
	// client error (credential submission). The refresh path is always bypassed.
	BypassRefresh []string

	Logger     zerolog.Logger
	Registerer prometheus.Registerer
	// Store persists the credential across processes (default in-memory)
	Store CredentialStore
	// RoundTripper overrides the HTTP transport (tests, TLS settings)
	RoundTripper http.RoundTripper
}

// Client represents the session-aware HTTP client for the backend API
type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	jar           *sessionJar
	store         CredentialStore
	maxRetries    int
	retryStep     time.Duration
	refreshPath   string
	expiredStatus int
	bypass        map[string]bool
	logger        zerolog.Logger
	metrics       *metrics

	// persistMu orders jar snapshots and store writes against ClearSession
	persistMu sync.Mutex
	saved     *Credential

	// mu guards everything below
	mu         sync.Mutex
	refreshing bool
	queue      []*pending
	generation uint64
	onExpired  []func(error)
}

// request is the replayable descriptor of one logical call
type request struct {
	method string
	path   string
	query  url.Values
	body   []byte
	id     string
}

// New creates a new API client
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	jar, err := newSessionJar()
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = DefaultRefreshPath
	}
	if cfg.ExpiredStatus == 0 {
		cfg.ExpiredStatus = http.StatusUnauthorized
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.BypassRefresh == nil {
		cfg.BypassRefresh = DefaultBypassRefresh
	}
	bypass := map[string]bool{cfg.RefreshPath: true}
	for _, p := range cfg.BypassRefresh {
		bypass[p] = true
	}

	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: cfg.RoundTripper,
		},
		jar:           jar,
		store:         cfg.Store,
		maxRetries:    cfg.MaxRetries,
		retryStep:     cfg.RetryStep,
		refreshPath:   cfg.RefreshPath,
		expiredStatus: cfg.ExpiredStatus,
		bypass:        bypass,
		logger:        cfg.Logger.With().Str("base_url", base.String()).Logger(),
		metrics:       newMetrics(cfg.Registerer),
	}

	cred, err := c.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session credential: %w", err)
	}
	c.jar.seed(c.baseURL, cred)
	c.saved = c.jar.snapshot(c.credentialURLs()...)

	return c, nil
}

// BaseURL returns the resolved backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get performs a GET request, decoding the JSON response into out
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Put performs a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// Patch performs a PATCH request with a JSON body
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, out)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, out)
}

// OnSessionExpired registers fn to run once per failed session refresh
func (c *Client) OnSessionExpired(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = append(c.onExpired, fn)
}

// HasCredential reports whether a session credential is currently held
func (c *Client) HasCredential() bool {
	return len(c.jar.snapshot(c.credentialURLs()...).Cookies) > 0
}

// credentialURLs are the URLs whose cookies make up the credential; the
// refresh endpoint may carry a path-scoped cookie of its own.
func (c *Client) credentialURLs() []*url.URL {
	return []*url.URL{c.baseURL, c.baseURL.JoinPath(c.refreshPath)}
}

// ClearSession drops the local session credential
func (c *Client) ClearSession() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.jar.reset()
	c.saved = &Credential{Cookies: []StoredCookie{}}

	if err := c.store.Clear(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear stored session credential")
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	req := request{
		method: method,
		path:   path,
		query:  query,
		id:     newRequestID(),
	}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		req.body = data
	}

	body, err := c.execute(ctx, req)
	if err == nil && out != nil && len(bytes.TrimSpace(body)) > 0 {
		if derr := json.Unmarshal(body, out); derr != nil {
			err = &Error{Kind: KindDecode, Method: method, Path: path, RequestID: req.id, Err: derr}
		}
	}

	c.metrics.observe(method, err)
	return err
}

// execute runs req through the retry policy and, on an expired session,
// through the refresh coordinator.
func (c *Client) execute(ctx context.Context, req request) ([]byte, error) {
	c.mu.Lock()
	sentUnder := c.generation
	c.mu.Unlock()

	body, err := c.send(ctx, req)
	if err == nil || !errors.Is(err, ErrSessionExpired) {
		return body, err
	}

	var terr *Error
	if c.bypass[req.path] && errors.As(err, &terr) {
		terr.Kind = KindClient
		return nil, terr
	}

	return c.awaitRefresh(ctx, req, sentUnder)
}

// send performs req with bounded, linearly delayed retries of transient failures
func (c *Client) send(ctx context.Context, req request) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := c.sendOnce(ctx, req)
		if err == nil {
			return body, nil
		}
		if attempt >= c.maxRetries || !retryable(err) || ctx.Err() != nil {
			return nil, err
		}

		delay := time.Duration(attempt+1) * c.retryStep
		c.metrics.retries.WithLabelValues(req.method).Inc()
		c.logger.Debug().
			Err(err).
			Str("method", req.method).
			Str("path", req.path).
			Str("request_id", req.id).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying transient failure")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, &Error{Kind: KindNetwork, Method: req.method, Path: req.path, RequestID: req.id, Err: ctx.Err()}
		}
	}
}

func (c *Client) sendOnce(ctx context.Context, req request) ([]byte, error) {
	u := c.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var reader io.Reader
	if req.body != nil {
		reader = bytes.NewReader(req.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", req.id)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Method: req.method, Path: req.path, RequestID: req.id, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Method: req.method, Path: req.path, Status: resp.StatusCode, RequestID: req.id, Err: err}
	}

	c.persistCredential()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{
			Kind:      classifyStatus(resp.StatusCode, c.expiredStatus),
			Method:    req.method,
			Path:      req.path,
			Status:    resp.StatusCode,
			Message:   errorMessage(body),
			RequestID: req.id,
		}
	}

	return body, nil
}

func newRequestID() string {
	return uuid.NewString()
}

// persistCredential mirrors the jar into the store whenever its contents change
func (c *Client) persistCredential() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	snap := c.jar.snapshot(c.credentialURLs()...)
	if snap.equal(c.saved) {
		return
	}
	c.saved = snap

	var err error
	if len(snap.Cookies) == 0 {
		err = c.store.Clear()
	} else {
		err = c.store.Save(snap)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist session credential")
	}
}
