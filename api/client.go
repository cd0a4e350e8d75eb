// Package api is the authenticated HTTP client used by every command. It
// attaches the stored access token to each request and transparently
// renews it when the backend answers 401.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/go-authgate/catalog-admin/session"
)

// Transport sends a prepared HTTP request. *retry.Client satisfies it.
type Transport interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is the facade the rest of the application talks to. Callers never
// handle tokens, refreshes or queuing.
type Client struct {
	baseURL   string
	store     session.Store
	transport Transport
	coord     *Coordinator
	log       *zap.SugaredLogger
	timeout   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the default retrying transport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithCoordinator injects the process-wide refresh coordinator. Without it
// the client builds its own.
func WithCoordinator(coord *Coordinator) Option {
	return func(c *Client) { c.coord = coord }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithRequestTimeout bounds every single attempt. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient returns a client for the backend rooted at baseURL.
func NewClient(baseURL string, store session.Store, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		rc, err := retry.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create retry client: %w", err)
		}
		c.transport = rc
	}
	if c.coord == nil {
		c.coord = NewCoordinator(
			store,
			NewRefresher(c.baseURL, c.transport),
			WithCoordinatorLogger(c.log),
		)
	}
	return c, nil
}

// Store returns the session store the client reads credentials from.
func (c *Client) Store() session.Store {
	return c.store
}

// Get fetches path and decodes the JSON reply into out (if non-nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.call(ctx, http.MethodGet, path, nil, out)
}

// Post sends in as JSON and decodes the reply into out (if non-nil).
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.call(ctx, http.MethodPost, path, in, out)
}

// Patch sends in as JSON and decodes the reply into out (if non-nil).
func (c *Client) Patch(ctx context.Context, path string, in, out any) error {
	return c.call(ctx, http.MethodPatch, path, in, out)
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	req, err := NewRequest(method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	return resp.DecodeJSON(out)
}

// Do sends req and routes any failure through the refresh coordinator.
// Replays come back through Do, so a replayed request that fails again is
// surfaced as is.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err == nil {
		return resp, nil
	}
	return c.coord.Recover(ctx, req, err, c.Do)
}

// send performs a single attempt.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	httpReq.Header.Set("X-Request-ID", requestID)

	req.sentWith = Decorate(ctx, c.store, req, httpReq)

	start := time.Now()
	resp, err := c.transport.DoWithContext(ctx, httpReq)
	if err != nil {
		c.log.Debugw("request failed", "method", req.Method, "path", req.Path,
			"request_id", requestID, "error", err)
		return nil, &TransportError{Method: req.Method, Path: req.Path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Method: req.Method,
			Path:   req.Path,
			Err:    fmt.Errorf("failed to read response: %w", err),
		}
	}

	c.log.Debugw("request done", "method", req.Method, "path", req.Path,
		"status", resp.StatusCode, "request_id", requestID,
		"retried", req.Retried, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       data,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
