package tui

import (
	"time"
)

// ProductRow is one product as shown to the operator.
type ProductRow struct {
	ID      int64
	Name    string
	Price   string
	Created string
}

// SessionInfo summarises the stored session for the status view.
type SessionInfo struct {
	Server    string
	Store     string
	LoggedIn  bool
	Email     string
	Role      string
	ExpiresIn time.Duration // zero when unknown
}

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgSessionFound signals that a stored session was loaded.
type MsgSessionFound struct{ Email, Role string }

// MsgSessionMissing signals that no session is stored.
type MsgSessionMissing struct{}

// MsgSessionRejected signals that the backend refused the stored session.
type MsgSessionRejected struct{ Err error }

// MsgLoggingIn signals that credentials are being exchanged.
type MsgLoggingIn struct{ Email string }

// MsgLoginOK signals a successful login.
type MsgLoginOK struct{ Email, Role string }

// MsgLoggedOut signals that the stored session was removed.
type MsgLoggedOut struct{}

// MsgWorking signals that a backend call is in progress.
type MsgWorking struct{ What string }

// MsgAccessTokenRejected signals that a request was answered with 401.
type MsgAccessTokenRejected struct{ Path string }

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the token was refreshed successfully.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that token refresh failed and the session was cleared.
type MsgRefreshFailed struct{ Err error }

// MsgRequestQueued signals that a request is waiting for the refresh in flight.
type MsgRequestQueued struct{ Path string }

// MsgRequestReplayed signals that a request is re-sent with a new token.
type MsgRequestReplayed struct{ Path string }

// MsgProducts carries the product list to render.
type MsgProducts struct{ Rows []ProductRow }

// MsgProductSaved signals a create/update/delete result.
type MsgProductSaved struct {
	Action string
	Row    ProductRow
}

// MsgSession carries the status view.
type MsgSession struct{ Info SessionInfo }

// MsgDone signals successful completion of the command.
type MsgDone struct{ Summary string }

// MsgFatal signals a fatal error that should terminate the command.
type MsgFatal struct{ Err error }
