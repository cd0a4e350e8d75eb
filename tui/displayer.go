package tui

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all output of a command. It also receives the
// refresh progress notifications of the API client.
type Displayer interface {
	Banner()
	SessionFound(email, role string)
	SessionMissing()
	SessionRejected(err error)
	LoggingIn(email string)
	LoginOK(email, role string)
	LoggedOut()
	Working(what string)

	AccessTokenRejected(path string)
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	RequestQueued(path string)
	RequestReplayed(path string)

	Products(rows []ProductRow)
	ProductSaved(action string, row ProductRow)
	Session(info SessionInfo)
	Done(summary string)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== Catalog Admin ===")
	fmt.Fprintln(p.w)
}

func (p *PlainDisplayer) SessionFound(email, role string) {
	fmt.Fprintf(p.w, "Signed in as %s (%s)\n", orUnknown(email), orUnknown(role))
}

func (p *PlainDisplayer) SessionMissing() {
	fmt.Fprintln(p.w, "No stored session.")
}

func (p *PlainDisplayer) SessionRejected(err error) {
	fmt.Fprintf(p.w, "Stored session rejected: %v\n", err)
}

func (p *PlainDisplayer) LoggingIn(email string) {
	fmt.Fprintf(p.w, "Logging in as %s...\n", email)
}

func (p *PlainDisplayer) LoginOK(email, role string) {
	fmt.Fprintf(p.w, "Login successful: %s (%s)\n", email, role)
}

func (p *PlainDisplayer) LoggedOut() {
	fmt.Fprintln(p.w, "Logged out, session removed.")
}

func (p *PlainDisplayer) Working(what string) {
	fmt.Fprintf(p.w, "%s...\n", what)
}

func (p *PlainDisplayer) AccessTokenRejected(path string) {
	fmt.Fprintf(p.w, "Access token rejected (401) on %s\n", path)
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully!")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
	fmt.Fprintln(p.w, "Session cleared, please log in again.")
}

func (p *PlainDisplayer) RequestQueued(path string) {
	fmt.Fprintf(p.w, "Waiting for refresh: %s\n", path)
}

func (p *PlainDisplayer) RequestReplayed(path string) {
	fmt.Fprintf(p.w, "Retrying %s with new token\n", path)
}

func (p *PlainDisplayer) Products(rows []ProductRow) {
	if len(rows) == 0 {
		fmt.Fprintln(p.w, "No products.")
		return
	}
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tCREATED")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ID, r.Name, r.Price, r.Created)
	}
	tw.Flush()
}

func (p *PlainDisplayer) ProductSaved(action string, row ProductRow) {
	fmt.Fprintf(p.w, "Product %d %s: %s (%s)\n", row.ID, action, row.Name, row.Price)
}

func (p *PlainDisplayer) Session(info SessionInfo) {
	fmt.Fprintln(p.w, "========================================")
	fmt.Fprintf(p.w, "Server:     %s\n", info.Server)
	fmt.Fprintf(p.w, "Store:      %s\n", info.Store)
	if !info.LoggedIn {
		fmt.Fprintln(p.w, "Session:    none")
	} else {
		fmt.Fprintf(p.w, "User:       %s\n", orUnknown(info.Email))
		fmt.Fprintf(p.w, "Role:       %s\n", orUnknown(info.Role))
		fmt.Fprintf(p.w, "Expires In: %s\n", formatExpiry(info.ExpiresIn))
	}
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Done(summary string) {
	if summary != "" {
		fmt.Fprintln(p.w, summary)
	}
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func formatExpiry(d time.Duration) string {
	if d == 0 {
		return "unknown"
	}
	if d < 0 {
		return "expired"
	}
	return formatDuration(d)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                            {}
func (NoopDisplayer) SessionFound(_, _ string)           {}
func (NoopDisplayer) SessionMissing()                    {}
func (NoopDisplayer) SessionRejected(_ error)            {}
func (NoopDisplayer) LoggingIn(_ string)                 {}
func (NoopDisplayer) LoginOK(_, _ string)                {}
func (NoopDisplayer) LoggedOut()                         {}
func (NoopDisplayer) Working(_ string)                   {}
func (NoopDisplayer) AccessTokenRejected(_ string)       {}
func (NoopDisplayer) Refreshing()                        {}
func (NoopDisplayer) RefreshOK()                         {}
func (NoopDisplayer) RefreshFailed(_ error)              {}
func (NoopDisplayer) RequestQueued(_ string)             {}
func (NoopDisplayer) RequestReplayed(_ string)           {}
func (NoopDisplayer) Products(_ []ProductRow)            {}
func (NoopDisplayer) ProductSaved(_ string, _ ProductRow) {}
func (NoopDisplayer) Session(_ SessionInfo)              {}
func (NoopDisplayer) Done(_ string)                      {}
func (NoopDisplayer) Fatal(_ error)                      {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) SessionFound(email, role string) {
	t.p.Send(MsgSessionFound{Email: email, Role: role})
}

func (t *ProgramDisplayer) SessionMissing() {
	t.p.Send(MsgSessionMissing{})
}

func (t *ProgramDisplayer) SessionRejected(err error) {
	t.p.Send(MsgSessionRejected{Err: err})
}

func (t *ProgramDisplayer) LoggingIn(email string) {
	t.p.Send(MsgLoggingIn{Email: email})
}

func (t *ProgramDisplayer) LoginOK(email, role string) {
	t.p.Send(MsgLoginOK{Email: email, Role: role})
}

func (t *ProgramDisplayer) LoggedOut() {
	t.p.Send(MsgLoggedOut{})
}

func (t *ProgramDisplayer) Working(what string) {
	t.p.Send(MsgWorking{What: what})
}

func (t *ProgramDisplayer) AccessTokenRejected(path string) {
	t.p.Send(MsgAccessTokenRejected{Path: path})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) RequestQueued(path string) {
	t.p.Send(MsgRequestQueued{Path: path})
}

func (t *ProgramDisplayer) RequestReplayed(path string) {
	t.p.Send(MsgRequestReplayed{Path: path})
}

func (t *ProgramDisplayer) Products(rows []ProductRow) {
	t.p.Send(MsgProducts{Rows: rows})
}

func (t *ProgramDisplayer) ProductSaved(action string, row ProductRow) {
	t.p.Send(MsgProductSaved{Action: action, Row: row})
}

func (t *ProgramDisplayer) Session(info SessionInfo) {
	t.p.Send(MsgSession{Info: info})
}

func (t *ProgramDisplayer) Done(summary string) {
	t.p.Send(MsgDone{Summary: summary})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
