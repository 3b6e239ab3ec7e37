package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/credential"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/rolegate"
	"github.com/joao-fontenele/storefront/internal/session"
)

type backend struct {
	requests   atomic.Int32
	cartStatus atomic.Int32
}

func (b *backend) routes() http.Handler {
	user := domain.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleUser, Status: domain.AccountActive}
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok", "user": user})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, user)
	})
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		if status := int(b.cartStatus.Load()); status != 0 {
			writeJSON(w, status, map[string]string{"error": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{{
				"id": "l1", "product_id": "p1", "quantity": 2,
				"product": map[string]any{"id": "p1", "name": "Lamp", "price": 10, "stock": 5},
			}},
			"total": 20,
		})
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.requests.Add(1)
		mux.ServeHTTP(w, r)
	})
}

type recordedEvents struct {
	mu    sync.Mutex
	kinds []string
}

func (e *recordedEvents) Publish(_ context.Context, _, kind string, _ any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kinds = append(e.kinds, kind)
	return nil
}

func (e *recordedEvents) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.kinds...)
}

func newApp(t *testing.T, opts ...Option) (*App, *backend) {
	t.Helper()
	b := &backend{}
	srv := httptest.NewServer(b.routes())
	t.Cleanup(srv.Close)

	cfg := &config.Config{API: config.APIConfig{URL: srv.URL + "/api", Timeout: 5 * time.Second}}
	opts = append([]Option{WithCredentialStore(credential.NewMemoryStore(""))}, opts...)
	a, err := New(cfg, slog.New(slog.DiscardHandler), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, b
}

func TestSessionDrivesCart(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous start makes no cart request", func(t *testing.T) {
		a, b := newApp(t)
		require.NoError(t, a.Start(ctx))

		assert.Equal(t, session.Anonymous, a.Session.State())
		assert.Zero(t, b.requests.Load())
		assert.True(t, a.Cart.Snapshot().IsEmpty())
	})

	t.Run("login loads the cart", func(t *testing.T) {
		a, _ := newApp(t)
		require.NoError(t, a.Start(ctx))

		_, err := a.Session.Login(ctx, "ada@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, 2, a.Cart.ItemCount())
	})

	t.Run("logout clears everything without requests", func(t *testing.T) {
		a, b := newApp(t)
		require.NoError(t, a.Start(ctx))
		_, err := a.Session.Login(ctx, "ada@example.com", "secret1")
		require.NoError(t, err)

		before := b.requests.Load()
		require.NoError(t, a.Session.Logout(ctx))

		assert.Equal(t, rolegate.Capabilities{}, a.Session.Capabilities())
		assert.True(t, a.Cart.Snapshot().IsEmpty())
		assert.Equal(t, 0, a.Cart.ItemCount())
		assert.Equal(t, before, b.requests.Load())
	})

	t.Run("rejected token logs out and empties cart", func(t *testing.T) {
		a, b := newApp(t)
		require.NoError(t, a.Start(ctx))
		_, err := a.Session.Login(ctx, "ada@example.com", "secret1")
		require.NoError(t, err)
		require.Equal(t, 2, a.Cart.ItemCount())

		b.cartStatus.Store(http.StatusUnauthorized)
		require.Error(t, a.Cart.Fetch(ctx))

		assert.Equal(t, session.Anonymous, a.Session.State())
		assert.True(t, a.Cart.Snapshot().IsEmpty())
	})
}

func TestActivityIsPublished(t *testing.T) {
	ctx := context.Background()
	events := &recordedEvents{}
	a, _ := newApp(t, WithEventWriter(events))
	require.NoError(t, a.Start(ctx))

	_, err := a.Session.Login(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, a.Session.Logout(ctx))
	require.NoError(t, a.Close())

	kinds := events.all()
	assert.Contains(t, kinds, string(domain.ActivityLogin))
	assert.Contains(t, kinds, string(domain.ActivityCartChanged))
	assert.Contains(t, kinds, string(domain.ActivityLogout))
}

func TestRestoredSessionIsNotALogin(t *testing.T) {
	ctx := context.Background()
	events := &recordedEvents{}
	a, _ := newApp(t, WithEventWriter(events), WithCredentialStore(credential.NewMemoryStore("tok")))

	require.NoError(t, a.Start(ctx))
	require.Equal(t, session.Authenticated, a.Session.State())
	require.NoError(t, a.Close())

	kinds := events.all()
	assert.Contains(t, kinds, string(domain.ActivityRestored))
	assert.NotContains(t, kinds, string(domain.ActivityLogin))
}

func TestOpenCredentials(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("file", func(t *testing.T) {
		s, err := openCredentials(config.CredentialsConfig{Backend: "file", Path: filepath.Join(dir, "nested", "creds.json")})
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, "abc"))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc", got)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := openCredentials(config.CredentialsConfig{Backend: "sqlite", Path: filepath.Join(dir, "creds.db"), Profile: "default"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.(interface{ Close() error }).Close() })

		require.NoError(t, s.Save(ctx, "xyz"))
		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "xyz", got)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := openCredentials(config.CredentialsConfig{Backend: "keychain"})
		assert.ErrorContains(t, err, "keychain")
	})
}
