package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Backend authentication endpoints, relative to the base URL.
const (
	LoginPath   = "/auth/login"
	RefreshPath = "/auth/refresh"
	ProfilePath = "/auth/profile"
)

// tokenPair is the body exchanged with the login and refresh endpoints.
type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// validateTokenPair checks a refresh response before it replaces the
// stored session.
func validateTokenPair(p tokenPair) error {
	if strings.TrimSpace(p.AccessToken) == "" {
		return errors.New("accessToken is empty")
	}
	return nil
}

// NewRefresher returns the RefreshFunc calling POST /auth/refresh on the
// backend at baseURL. The call bypasses the Client so a failing refresh
// can never re-enter the coordinator.
func NewRefresher(baseURL string, transport Transport) RefreshFunc {
	endpoint := strings.TrimRight(baseURL, "/") + RefreshPath

	return func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
		payload, err := json.Marshal(tokenPair{RefreshToken: refreshToken})
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			endpoint,
			bytes.NewReader(payload),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := transport.DoWithContext(ctx, req)
		if err != nil {
			return nil, &TransportError{Method: http.MethodPost, Path: RefreshPath, Err: err}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &HTTPError{
				Method:     http.MethodPost,
				Path:       RefreshPath,
				StatusCode: resp.StatusCode,
				Body:       body,
			}
		}

		var pair tokenPair
		if err := json.Unmarshal(body, &pair); err != nil {
			return nil, fmt.Errorf("failed to parse token response: %w", err)
		}
		if err := validateTokenPair(pair); err != nil {
			return nil, fmt.Errorf("invalid token response: %w", err)
		}

		// Rotation mode returns a new refresh token; fixed mode omits it and
		// the current one stays valid.
		if pair.RefreshToken == "" {
			pair.RefreshToken = refreshToken
		}

		return &oauth2.Token{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			TokenType:    "Bearer",
		}, nil
	}
}
