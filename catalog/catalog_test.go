package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-authgate/catalog-admin/api"
	"github.com/go-authgate/catalog-admin/session"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{raw: "12.5", want: 12.5},
		{raw: "12,5", want: 12.5},
		{raw: " 0 ", want: 0},
		{raw: "-1", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePrice(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

func newCatalogBackend(t *testing.T, role string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()

	var recorded []recordedRequest
	record := func(r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		recorded = append(recorded, rec)
	}
	respond := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	adminOnly := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			record(r)
			if role != "admin" {
				respond(w, http.StatusForbidden, map[string]any{"message": "Forbidden resource"})
				return
			}
			next(w, r)
		}
	}

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := chi.NewRouter()
	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		respond(w, http.StatusOK, []Product{{ID: 1, Name: "Lamp", Price: "12.50", CreatedAt: created}})
	})
	r.Post("/products", adminOnly(func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusCreated, Product{ID: 2, Name: "Desk", Price: "99.90", CreatedAt: created})
	}))
	r.Patch("/products/{id}", adminOnly(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "2" {
			respond(w, http.StatusNotFound, map[string]any{"message": "Product not found"})
			return
		}
		respond(w, http.StatusOK, Product{ID: 2, Name: "Desk XL", Price: "120.00", CreatedAt: created})
	}))
	r.Delete("/products/{id}", adminOnly(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &recorded
}

func newService(t *testing.T, baseURL string) *Service {
	t.Helper()
	client, err := api.NewClient(baseURL, session.NewMemoryStore())
	require.NoError(t, err)
	return NewService(client)
}

func TestService_CRUD(t *testing.T) {
	srv, recorded := newCatalogBackend(t, "admin")
	svc := newService(t, srv.URL)
	ctx := context.Background()

	products, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Lamp", products[0].Name)
	assert.Equal(t, "12.50", products[0].Price)
	assert.Equal(t, 2025, products[0].CreatedAt.Year())

	created, err := svc.Create(ctx, " Desk ", "99,90")
	require.NoError(t, err)
	assert.EqualValues(t, 2, created.ID)

	updated, err := svc.Update(ctx, 2, "Desk XL", "120")
	require.NoError(t, err)
	assert.Equal(t, "Desk XL", updated.Name)

	require.NoError(t, svc.Delete(ctx, 2))

	require.Len(t, *recorded, 4)
	post := (*recorded)[1]
	assert.Equal(t, http.MethodPost, post.Method)
	assert.Equal(t, "Desk", post.Body["name"])
	assert.Equal(t, 99.9, post.Body["price"])
	assert.Equal(t, "/products/2", (*recorded)[2].Path)
	assert.Equal(t, http.MethodDelete, (*recorded)[3].Method)
}

func TestService_InvalidInputSendsNothing(t *testing.T) {
	srv, recorded := newCatalogBackend(t, "admin")
	svc := newService(t, srv.URL)

	_, err := svc.Create(context.Background(), "   ", "10")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Update(context.Background(), 2, "Desk", "ten")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, *recorded)
}

func TestService_ErrorsAreDescribed(t *testing.T) {
	srv, _ := newCatalogBackend(t, "user")
	svc := newService(t, srv.URL)

	_, err := svc.Create(context.Background(), "Desk", "10")
	assert.ErrorIs(t, err, api.ErrForbidden)
	assert.Equal(t, "Access denied (admin role required).", Describe(err))

	admin, _ := newCatalogBackend(t, "admin")
	_, err = newService(t, admin.URL).Update(context.Background(), 9, "Desk", "10")
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, "Product not found.", Describe(err))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"bad request", &api.HTTPError{StatusCode: http.StatusBadRequest}, "Invalid data (name/price)."},
		{"unauthorized", &api.HTTPError{StatusCode: http.StatusUnauthorized}, "Not logged in or session rejected, please log in."},
		{"session expired", &api.RefreshError{Err: &api.HTTPError{StatusCode: http.StatusUnauthorized}}, "Session expired, please log in again."},
		{"transport", &api.TransportError{Err: errors.New("connection refused")}, "Backend unreachable: connection refused"},
		{"other", errors.New("boom"), "Request failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Describe(tt.err))
		})
	}
}
