package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-authgate/catalog-admin/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	tokenPair
	User session.UserIdentity `json:"user"`
}

// Login exchanges credentials for a session and persists it.
func (c *Client) Login(ctx context.Context, email, password string) (*session.UserIdentity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	var resp loginResponse
	if err := c.Post(ctx, LoginPath, loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, errors.New("login response is missing tokens")
	}

	user := resp.User
	if err := c.store.Set(ctx, session.Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		User:         &user,
	}); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	c.log.Infow("logged in", "email", user.Email, "role", user.Role)
	return &user, nil
}

// Logout forgets the stored session. The backend keeps no session state to
// revoke.
func (c *Client) Logout(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Profile returns the identity behind the current access token.
func (c *Client) Profile(ctx context.Context) (*session.UserIdentity, error) {
	var user session.UserIdentity
	if err := c.Get(ctx, ProfilePath, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Session returns the stored session, or nil when signed out.
func (c *Client) Session(ctx context.Context) (*session.Session, error) {
	return c.store.Get(ctx)
}

// Bootstrap restores the session at startup. With revalidate set the
// stored tokens are checked against the profile endpoint, which may renew
// them; a session the backend rejects is cleared and nil is returned with
// the rejection. An unreachable backend leaves the session untouched.
func (c *Client) Bootstrap(ctx context.Context, revalidate bool) (*session.Session, error) {
	s, err := c.store.Get(ctx)
	if err != nil || s == nil || !revalidate {
		return s, err
	}

	user, err := c.Profile(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			// already cleared by the coordinator
			return nil, err
		}
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			return s, err
		}
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.log.Warnw("failed to clear rejected session", "error", clearErr)
		}
		return nil, err
	}

	// the profile call may have rotated the tokens
	current, err := c.store.Get(ctx)
	if err != nil || current == nil {
		return current, err
	}
	current.User = user
	if err := c.store.Set(ctx, *current); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return current, nil
}
