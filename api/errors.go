package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors matched by HTTPError.Is.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")

	// ErrSessionExpired is matched by RefreshError: the stored session could
	// not be renewed and has been cleared.
	ErrSessionExpired = errors.New("session expired, login required")
)

// TransportError is returned when no response was received at all.
// It never triggers a refresh.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: request failed: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	msg := e.Message()
	if msg == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is maps the status code onto the package sentinels.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Message extracts a human readable message from the error body. The
// backend answers with {"message": string | []string, "error": string}.
func (e *HTTPError) Message() string {
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return strings.TrimSpace(string(e.Body))
	}

	var single string
	if err := json.Unmarshal(body.Message, &single); err == nil && single != "" {
		return single
	}
	var list []string
	if err := json.Unmarshal(body.Message, &list); err == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return body.Error
}

// RefreshError wraps the failure of the refresh call itself. When it is
// returned the session store has already been cleared.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("session refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

func (e *RefreshError) Is(target error) bool {
	return target == ErrSessionExpired
}

// StatusCode returns the HTTP status carried by err, or 0 when err holds no
// response.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
