package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/go-authgate/catalog-admin/session"
)

const defaultRefreshTimeout = 10 * time.Second

// RefreshFunc exchanges a refresh token for a new token pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

// ReplayFunc re-issues a request, normally through Client.Do.
type ReplayFunc func(ctx context.Context, req *Request) (*Response, error)

// Observer receives progress notifications from the Coordinator.
// tui.Displayer implementations satisfy it.
type Observer interface {
	AccessTokenRejected(path string)
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	RequestQueued(path string)
	RequestReplayed(path string)
}

type noopObserver struct{}

func (noopObserver) AccessTokenRejected(string) {}
func (noopObserver) Refreshing()                {}
func (noopObserver) RefreshOK()                 {}
func (noopObserver) RefreshFailed(error)        {}
func (noopObserver) RequestQueued(string)       {}
func (noopObserver) RequestReplayed(string)     {}

// pendingOutcome is delivered exactly once to a queued request.
// An empty token means the refresh failed.
type pendingOutcome struct {
	token string
}

// pendingRequest is a caller suspended behind an in-flight refresh.
type pendingRequest struct {
	cause error
	done  chan pendingOutcome
}

// Coordinator recovers from expired access tokens. Concurrent 401s
// collapse into a single refresh call; the other callers wait for its
// outcome and are replayed with the new token or failed with their own
// 401.
type Coordinator struct {
	store          session.Store
	refresh        RefreshFunc
	observer       Observer
	log            *zap.SugaredLogger
	pendingTimeout time.Duration
	refreshTimeout time.Duration

	mu         sync.Mutex
	refreshing bool
	pending    []*pendingRequest
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithObserver reports refresh progress to o.
func WithObserver(o Observer) CoordinatorOption {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithPendingTimeout bounds how long a queued request waits for the
// refresh. On expiry the request fails with its own 401. Zero waits
// forever.
func WithPendingTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.pendingTimeout = d }
}

// WithRefreshTimeout bounds the refresh call.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(log *zap.SugaredLogger) CoordinatorOption {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCoordinator returns an idle coordinator. Build one per process and
// share it between every Client talking to the same backend.
func NewCoordinator(store session.Store, refresh RefreshFunc, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:          store,
		refresh:        refresh,
		observer:       noopObserver{},
		log:            zap.NewNop().Sugar(),
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refreshing reports whether a refresh is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Pending returns the number of queued requests.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// isAuthRoute reports whether path is the login or refresh endpoint. Their
// 401s are final; refreshing on them would loop.
func isAuthRoute(path string) bool {
	return strings.Contains(path, LoginPath) || strings.Contains(path, RefreshPath)
}

// Recover decides what to do with a failed request. It returns failure
// unchanged unless failure is a 401 that a refresh can cure, in which case
// the request is replayed with a fresh access token.
func (c *Coordinator) Recover(
	ctx context.Context,
	req *Request,
	failure error,
	replay ReplayFunc,
) (*Response, error) {
	var httpErr *HTTPError
	if !errors.As(failure, &httpErr) {
		return nil, failure
	}
	if httpErr.StatusCode != http.StatusUnauthorized {
		return nil, failure
	}
	if isAuthRoute(req.Path) || req.Retried {
		return nil, failure
	}

	// Reading the store and claiming the refresh happen in one critical
	// section so two callers can never both start a refresh.
	c.mu.Lock()
	sess, err := c.store.Get(context.WithoutCancel(ctx))
	if err != nil {
		c.mu.Unlock()
		c.log.Warnw("session store unavailable, not refreshing", "error", err)
		return nil, failure
	}
	if sess == nil || sess.RefreshToken == "" {
		c.mu.Unlock()
		return nil, failure
	}

	req.Retried = true

	switch {
	case c.refreshing:
		p := &pendingRequest{cause: failure, done: make(chan pendingOutcome, 1)}
		c.pending = append(c.pending, p)
		c.mu.Unlock()

		c.observer.AccessTokenRejected(req.Path)
		c.log.Debugw("request queued behind refresh", "method", req.Method, "path", req.Path)
		c.observer.RequestQueued(req.Path)
		return c.wait(ctx, req, p, replay)

	case req.sentWith != sess.AccessToken:
		// A refresh finished after this request was sent.
		c.mu.Unlock()
		c.observer.AccessTokenRejected(req.Path)
		return c.replay(ctx, req, sess.AccessToken, replay)

	default:
		c.refreshing = true
		c.mu.Unlock()
		c.observer.AccessTokenRejected(req.Path)
		return c.refreshAndReplay(ctx, req, sess, replay)
	}
}

func (c *Coordinator) refreshAndReplay(
	ctx context.Context,
	req *Request,
	sess *session.Session,
	replay ReplayFunc,
) (*Response, error) {
	c.log.Debugw("refreshing access token", "trigger", req.Path)
	c.observer.Refreshing()

	// The refresh outlives the triggering caller; cancelling one request
	// must not log the operator out.
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	token, err := c.refresh(refreshCtx, sess.RefreshToken)
	if err == nil {
		err = c.store.Set(refreshCtx, session.Session{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			User:         sess.User,
		})
	}

	if err != nil {
		if clearErr := c.store.Clear(refreshCtx); clearErr != nil {
			c.log.Errorw("failed to clear session after refresh failure", "error", clearErr)
		}
		waiters := c.reset()
		for _, p := range waiters {
			p.done <- pendingOutcome{}
		}

		c.log.Warnw("token refresh failed", "error", err, "rejected", len(waiters))
		c.observer.RefreshFailed(err)
		return nil, &RefreshError{Err: err}
	}

	waiters := c.reset()
	for _, p := range waiters {
		p.done <- pendingOutcome{token: token.AccessToken}
	}

	c.log.Debugw("token refreshed", "replayed", len(waiters))
	c.observer.RefreshOK()
	return c.replay(ctx, req, token.AccessToken, replay)
}

// reset returns the coordinator to idle and hands back the queue.
func (c *Coordinator) reset() []*pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	waiters := c.pending
	c.pending = nil
	c.refreshing = false
	return waiters
}

func (c *Coordinator) wait(
	ctx context.Context,
	req *Request,
	p *pendingRequest,
	replay ReplayFunc,
) (*Response, error) {
	var expired <-chan time.Time
	if c.pendingTimeout > 0 {
		timer := time.NewTimer(c.pendingTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case out := <-p.done:
		if out.token == "" {
			return nil, p.cause
		}
		return c.replay(ctx, req, out.token, replay)

	case <-expired:
		c.abandon(p)
		c.log.Warnw("gave up waiting for refresh", "path", req.Path, "timeout", c.pendingTimeout)
		return nil, p.cause

	case <-ctx.Done():
		c.abandon(p)
		return nil, ctx.Err()
	}
}

// abandon removes p from the queue if it is still there.
func (c *Coordinator) abandon(p *pendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, q := range c.pending {
		if q == p {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Coordinator) replay(
	ctx context.Context,
	req *Request,
	token string,
	replay ReplayFunc,
) (*Response, error) {
	req.bearer = token
	c.observer.RequestReplayed(req.Path)
	return replay(ctx, req)
}
