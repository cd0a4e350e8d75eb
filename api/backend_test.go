package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/catalog-admin/session"
)

const (
	testEmail    = "admin@example.com"
	testPassword = "s3cret"
)

// fakeBackend mimics the catalog backend's auth contract.
type fakeBackend struct {
	srv *httptest.Server

	mu            sync.Mutex
	validAccess   map[string]bool
	validRefresh  map[string]bool
	issued        int
	seenAuth      []string
	refreshStatus int
	refreshGate   chan struct{}

	refreshCalls atomic.Int32
	hits         sync.Map // path -> *atomic.Int32

	user session.UserIdentity
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	b := &fakeBackend{
		validAccess:  map[string]bool{},
		validRefresh: map[string]bool{},
		user:         session.UserIdentity{UserID: 1, Email: testEmail, Role: "admin"},
	}

	r := chi.NewRouter()
	r.Post(LoginPath, b.handleLogin)
	r.Post(RefreshPath, b.handleRefresh)
	r.Get(ProfilePath, b.authorized(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, b.user)
	}))
	r.Get("/products", b.authorized(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "name": "Lamp", "price": "12.50"}})
	}))
	r.Get("/products/{id}", b.authorized(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": chi.URLParam(r, "id")})
	}))
	r.Get("/forbidden", b.authorized(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]any{"message": "Forbidden resource"})
	}))
	r.Get("/always401", func(w http.ResponseWriter, r *http.Request) {
		b.hit(r.URL.Path)
		b.recordAuth(r)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
	})

	b.srv = httptest.NewServer(r)
	t.Cleanup(b.srv.Close)
	return b
}

// issue hands out a fresh token pair and makes it the only valid one.
func (b *fakeBackend) issue() tokenPair {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.issued++
	pair := tokenPair{
		AccessToken:  fmt.Sprintf("access-%d", b.issued),
		RefreshToken: fmt.Sprintf("refresh-%d", b.issued),
	}
	b.validAccess = map[string]bool{pair.AccessToken: true}
	b.validRefresh = map[string]bool{pair.RefreshToken: true}
	return pair
}

// expireAccess revokes every access token while keeping refresh tokens.
func (b *fakeBackend) expireAccess() {
	b.mu.Lock()
	b.validAccess = map[string]bool{}
	b.mu.Unlock()
}

func (b *fakeBackend) hit(path string) {
	v, _ := b.hits.LoadOrStore(path, &atomic.Int32{})
	v.(*atomic.Int32).Add(1)
}

func (b *fakeBackend) hitCount(path string) int32 {
	v, ok := b.hits.Load(path)
	if !ok {
		return 0
	}
	return v.(*atomic.Int32).Load()
}

func (b *fakeBackend) recordAuth(r *http.Request) {
	b.mu.Lock()
	b.seenAuth = append(b.seenAuth, r.Header.Get("Authorization"))
	b.mu.Unlock()
}

func (b *fakeBackend) authHeaders() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.seenAuth...)
}

func (b *fakeBackend) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.hit(r.URL.Path)
		b.recordAuth(r)

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		ok := b.validAccess[token]
		b.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.hit(r.URL.Path)

	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}
	if body.Email != testEmail || body.Password != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials"})
		return
	}

	pair := b.issue()
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user":         b.user,
	})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.hit(r.URL.Path)
	b.refreshCalls.Add(1)

	b.mu.Lock()
	gate, status := b.refreshGate, b.refreshStatus
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-time.After(5 * time.Second):
		}
	}
	if status != 0 {
		writeJSON(w, status, map[string]any{"message": "Invalid refresh token"})
		return
	}

	var body tokenPair
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	ok := b.validRefresh[body.RefreshToken]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid refresh token"})
		return
	}

	writeJSON(w, http.StatusOK, b.issue())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// countingObserver records coordinator notifications. queuedReached is
// closed once the queue has seen want entries.
type countingObserver struct {
	noopObserver
	queued        atomic.Int32
	replayed      atomic.Int32
	refreshed     atomic.Int32
	failed        atomic.Int32
	want          int32
	queuedReached chan struct{}
	once          sync.Once
}

func newCountingObserver(want int32) *countingObserver {
	o := &countingObserver{want: want, queuedReached: make(chan struct{})}
	if want <= 0 {
		close(o.queuedReached)
	}
	return o
}

func (o *countingObserver) RequestQueued(string) {
	if o.queued.Add(1) >= o.want {
		o.once.Do(func() { close(o.queuedReached) })
	}
}

func (o *countingObserver) RequestReplayed(string) { o.replayed.Add(1) }
func (o *countingObserver) RefreshOK()             { o.refreshed.Add(1) }
func (o *countingObserver) RefreshFailed(error)    { o.failed.Add(1) }

// newTestClient wires a client to b with a memory store.
func newTestClient(t *testing.T, b *fakeBackend, opts ...CoordinatorOption) (*Client, *session.MemoryStore, *Coordinator) {
	t.Helper()

	transport, err := retry.NewClient()
	require.NoError(t, err)

	store := session.NewMemoryStore()
	coord := NewCoordinator(store, NewRefresher(b.srv.URL, transport), opts...)
	client, err := NewClient(b.srv.URL, store,
		WithTransport(transport),
		WithCoordinator(coord),
	)
	require.NoError(t, err)
	return client, store, coord
}

// storeIssued logs in out of band: it issues a pair on the backend and
// saves it in the store.
func storeIssued(t *testing.T, b *fakeBackend, store session.Store) tokenPair {
	t.Helper()
	pair := b.issue()
	require.NoError(t, store.Set(context.Background(), session.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         &b.user,
	}))
	return pair
}

// transportFunc adapts a function to Transport.
type transportFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

func (f transportFunc) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}
