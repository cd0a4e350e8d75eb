package tui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tea "charm.land/bubbletea/v2"
)

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestModel_RefreshCycle(t *testing.T) {
	m := update(t, NewModel(),
		MsgWorking{What: "Loading products"},
		MsgAccessTokenRejected{Path: "/products"},
		MsgRefreshing{},
		MsgRequestQueued{Path: "/auth/profile"},
	)
	assert.Equal(t, stateRefreshing, m.state)
	assert.Equal(t, 1, m.queued)
	assert.Contains(t, m.viewMain(), "1 request(s) waiting")

	m = update(t, m, MsgRefreshOK{}, MsgRequestReplayed{Path: "/products"})
	assert.Equal(t, stateWorking, m.state)
	assert.Zero(t, m.queued)
	require.Len(t, m.statusLines, 5)
	assert.Equal(t, statusOK, m.statusLines[4].kind)
}

func TestModel_ProductsAndDone(t *testing.T) {
	m := update(t, NewModel(),
		MsgProducts{Rows: []ProductRow{
			{ID: 1, Name: "Lamp", Price: "12.50", Created: "2025-03-01"},
			{ID: 12, Name: "Desk", Price: "99.90", Created: "2025-03-02"},
		}},
		MsgDone{Summary: "2 products"},
	)
	assert.Equal(t, stateSuccess, m.state)

	out := m.viewSuccess()
	assert.Contains(t, out, "2 products")
	assert.Contains(t, out, "Lamp")
	assert.Contains(t, out, "Desk")
}

func TestModel_Fatal(t *testing.T) {
	m := update(t, NewModel(), MsgFatal{Err: errors.New("Session expired, please log in again.")})
	assert.Equal(t, stateError, m.state)
	assert.Contains(t, m.viewError(), "Session expired")
}

func TestPlainDisplayer(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)

	d.AccessTokenRejected("/products")
	d.Refreshing()
	d.RefreshOK()
	d.RequestReplayed("/products")
	d.Products([]ProductRow{{ID: 1, Name: "Lamp", Price: "12.50", Created: "2025-03-01"}})
	d.Session(SessionInfo{Server: "http://localhost:3000/api/v1", Store: "file", LoggedIn: true, Email: "admin@example.com", Role: "admin", ExpiresIn: 90 * time.Second})

	out := buf.String()
	assert.Contains(t, out, "Access token rejected (401) on /products")
	assert.Contains(t, out, "Token refreshed successfully!")
	assert.Contains(t, out, "Retrying /products with new token")
	assert.Contains(t, out, "Expires In: 1m 30s")

	lines := strings.Split(out, "\n")
	var header string
	for _, l := range lines {
		if strings.HasPrefix(l, "ID") {
			header = l
		}
	}
	assert.Contains(t, header, "NAME")
	assert.Contains(t, header, "PRICE")
}

func TestFormatExpiry(t *testing.T) {
	assert.Equal(t, "unknown", formatExpiry(0))
	assert.Equal(t, "expired", formatExpiry(-time.Second))
	assert.Equal(t, "45s", formatExpiry(45*time.Second))
	assert.Equal(t, "2h 5m", formatExpiry(2*time.Hour+5*time.Minute))
}

var _ Displayer = NoopDisplayer{}
var _ Displayer = (*PlainDisplayer)(nil)
var _ Displayer = (*ProgramDisplayer)(nil)
