package api

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/go-authgate/catalog-admin/session"
)

// Decorate attaches the bearer credential to out and returns the access
// token it used. A replay carries its own token; otherwise the stored
// session is consulted. Without a session the request goes out
// unauthenticated and "" is returned.
func Decorate(ctx context.Context, store session.Store, req *Request, out *http.Request) string {
	token := req.bearer
	if token == "" {
		// a store fault is indistinguishable from "no session" here
		if s, err := store.Get(ctx); err == nil && s != nil {
			token = s.AccessToken
		}
	}
	if token == "" {
		return ""
	}

	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(out)
	return token
}
