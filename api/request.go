package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one outgoing call. It is built once per call and
// reused when the call is replayed after a token refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// Retried marks a request that has already been replayed once after a
	// refresh. A retried request is never refreshed again.
	Retried bool

	// bearer overrides the stored access token on replay.
	bearer string
	// sentWith is the access token attached to the last attempt.
	sentWith string
}

// NewRequest builds a request descriptor. A non-nil body is encoded as JSON.
func NewRequest(method, path string, body any) (*Request, error) {
	req := &Request{
		Method: method,
		Path:   path,
		Header: make(http.Header),
	}
	if body == nil {
		return req, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req.Body = data
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Response is a successful (2xx) reply with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into out.
func (r *Response) DecodeJSON(out any) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
