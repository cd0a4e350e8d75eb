// Package session persists the credentials of the signed-in operator: the
// access token, the refresh token and the cached user identity.
package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// Persisted storage keys. Every backend stores the three fields under these
// names so a session written by one run can be read by the next.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// Keys lists the persisted keys in a stable order.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// UserIdentity is the profile returned by the backend at login.
// It is cached for display only.
type UserIdentity struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Session holds the credentials issued by the backend.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *UserIdentity
}

// Complete reports whether both tokens are present. Partial sessions are
// treated as absent by every Store.
func (s *Session) Complete() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != ""
}

// Store is a durable key-value holder for a single Session.
//
// Get returns nil and no error when no complete session is stored. Set
// writes all three fields so readers never observe a mix of old and new
// values. Clear removes all three fields.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// encodeValues flattens s into the persisted key/value form.
func encodeValues(s Session) (map[string]string, error) {
	values := map[string]string{
		KeyAccessToken:  s.AccessToken,
		KeyRefreshToken: s.RefreshToken,
	}
	if s.User != nil {
		data, err := json.Marshal(s.User)
		if err != nil {
			return nil, fmt.Errorf("failed to encode user: %w", err)
		}
		values[KeyUser] = string(data)
	}
	return values, nil
}

// decodeValues rebuilds a Session from persisted values. A malformed user
// entry is dropped rather than failing the whole session.
func decodeValues(values map[string]string) *Session {
	s := &Session{
		AccessToken:  values[KeyAccessToken],
		RefreshToken: values[KeyRefreshToken],
	}
	if !s.Complete() {
		return nil
	}

	if raw := values[KeyUser]; raw != "" {
		var user UserIdentity
		if err := json.Unmarshal([]byte(raw), &user); err == nil {
			s.User = &user
		}
	}
	return s
}
