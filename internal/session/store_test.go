package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/credential"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/rolegate"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

// fakeBackend serves the auth endpoints for a single user.
type fakeBackend struct {
	user     domain.User
	token    string
	message  string
	requests atomic.Int32
	meStatus atomic.Int32
}

func (f *fakeBackend) handler(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "ok", "user": f.user, "token": f.token})
	case "/api/auth/register":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "taken@example.com" {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"Email already registered"}`))
			return
		}
		u := f.user
		u.Role = domain.Role(body["role"])
		if u.Role == domain.RoleSeller {
			u.Role = domain.RolePendingSeller
			u.Status = domain.AccountPending
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": f.message, "user": u, "token": f.token})
	case "/api/auth/me":
		if st := f.meStatus.Load(); st != 0 {
			w.WriteHeader(int(st))
			_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(f.user)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newStore(t *testing.T, fb *fakeBackend, creds credential.Store) (*Store, *api.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(fb.handler))
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL + "/api")
	store := NewStore(client, creds, slog.New(slog.DiscardHandler))
	client.SetTokenSource(store)
	client.OnUnauthorized(store.ForceLogout)
	return store, client
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("no credential resolves anonymous without a request", func(t *testing.T) {
		fb := &fakeBackend{}
		store, _ := newStore(t, fb, credential.NewMemoryStore(""))

		assert.False(t, store.Resolved())
		require.NoError(t, store.Refresh(ctx))
		assert.True(t, store.Resolved())
		assert.Equal(t, Anonymous, store.State())
		assert.Nil(t, store.Session())
		assert.Zero(t, fb.requests.Load())
	})

	t.Run("expired token is discarded without a request", func(t *testing.T) {
		fb := &fakeBackend{}
		creds := credential.NewMemoryStore(signedToken(t, time.Now().Add(-time.Hour)))
		store, _ := newStore(t, fb, creds)

		require.NoError(t, store.Refresh(ctx))
		assert.Equal(t, Anonymous, store.State())
		assert.Zero(t, fb.requests.Load())
		_, err := creds.Load(ctx)
		assert.ErrorIs(t, err, credential.ErrNoCredential)
	})

	t.Run("valid token populates session", func(t *testing.T) {
		token := signedToken(t, time.Now().Add(time.Hour))
		fb := &fakeBackend{
			token: token,
			user:  domain.User{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: domain.RoleAdmin, Status: domain.AccountActive},
		}
		store, _ := newStore(t, fb, credential.NewMemoryStore(token))
		var causes []domain.ActivityKind
		store.Subscribe(func(c Change) { causes = append(causes, c.Cause) })

		require.NoError(t, store.Refresh(ctx))
		require.Equal(t, Authenticated, store.State())
		assert.Equal(t, token, store.Token())
		assert.Equal(t, []domain.ActivityKind{domain.ActivityRestored}, causes)
		assert.True(t, store.Capabilities().IsAdmin)
		assert.NoError(t, store.Gate(rolegate.Admin))
	})

	t.Run("rejected token resolves anonymous", func(t *testing.T) {
		token := signedToken(t, time.Now().Add(time.Hour))
		fb := &fakeBackend{token: token}
		fb.meStatus.Store(http.StatusUnauthorized)
		creds := credential.NewMemoryStore(token)
		store, _ := newStore(t, fb, creds)

		require.NoError(t, store.Refresh(ctx))
		assert.Equal(t, Anonymous, store.State())
		assert.Empty(t, store.Token())
		_, err := creds.Load(ctx)
		assert.ErrorIs(t, err, credential.ErrNoCredential)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	token := signedToken(t, time.Now().Add(time.Hour))
	user := domain.User{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: domain.RoleSeller, Status: domain.AccountActive}

	t.Run("success persists token and notifies", func(t *testing.T) {
		fb := &fakeBackend{token: token, user: user}
		creds := credential.NewMemoryStore("")
		store, _ := newStore(t, fb, creds)

		var changes []Change
		store.Subscribe(func(c Change) { changes = append(changes, c) })

		sess, err := store.Login(ctx, "ana@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleSeller, sess.Role)
		assert.True(t, store.Capabilities().IsSeller)

		saved, err := creds.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, token, saved)

		require.Len(t, changes, 1)
		assert.Equal(t, Established, changes[0].Kind)
		assert.Equal(t, domain.ActivityLogin, changes[0].Cause)
	})

	t.Run("bad password is an auth error", func(t *testing.T) {
		fb := &fakeBackend{token: token, user: user}
		store, _ := newStore(t, fb, credential.NewMemoryStore(""))

		_, err := store.Login(ctx, "ana@example.com", "nope")
		require.ErrorIs(t, err, api.ErrAuth)
		assert.Equal(t, "Invalid credentials", api.Message(err))
		assert.NotEqual(t, Authenticated, store.State())
	})

	t.Run("failed re-login keeps the current session", func(t *testing.T) {
		fb := &fakeBackend{token: token, user: user}
		creds := credential.NewMemoryStore("")
		store, _ := newStore(t, fb, creds)
		_, err := store.Login(ctx, "ana@example.com", "secret1")
		require.NoError(t, err)

		var changes []Change
		store.Subscribe(func(c Change) { changes = append(changes, c) })

		_, err = store.Login(ctx, "ana@example.com", "wrong")
		require.ErrorIs(t, err, api.ErrAuth)

		assert.Equal(t, Authenticated, store.State())
		require.NotNil(t, store.Session())
		assert.Equal(t, token, store.Token())
		saved, err := creds.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, token, saved)
		assert.Empty(t, changes)
	})

	t.Run("missing fields fail before the network", func(t *testing.T) {
		fb := &fakeBackend{}
		store, _ := newStore(t, fb, credential.NewMemoryStore(""))

		_, err := store.Login(ctx, "  ", "secret1")
		assert.ErrorIs(t, err, api.ErrValidation)
		assert.Zero(t, fb.requests.Load())
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	token := signedToken(t, time.Now().Add(time.Hour))
	base := RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "secret1", ConfirmPassword: "secret1"}

	t.Run("validation happens before the network", func(t *testing.T) {
		cases := map[string]func(in *RegisterInput){
			"missing name":   func(in *RegisterInput) { in.Name = "" },
			"bad email":      func(in *RegisterInput) { in.Email = "bo" },
			"short password": func(in *RegisterInput) { in.Password, in.ConfirmPassword = "abc", "abc" },
			"mismatch":       func(in *RegisterInput) { in.ConfirmPassword = "secret2" },
			"admin role":     func(in *RegisterInput) { in.Role = domain.RoleAdmin },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				fb := &fakeBackend{}
				store, _ := newStore(t, fb, credential.NewMemoryStore(""))
				in := base
				mutate(&in)

				_, err := store.Register(ctx, in)
				assert.ErrorIs(t, err, api.ErrValidation)
				assert.Zero(t, fb.requests.Load())
			})
		}
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		fb := &fakeBackend{token: token}
		store, _ := newStore(t, fb, credential.NewMemoryStore(""))
		in := base
		in.Email = "taken@example.com"

		_, err := store.Register(ctx, in)
		assert.ErrorIs(t, err, api.ErrConflict)
	})

	t.Run("seller registration awaits approval", func(t *testing.T) {
		fb := &fakeBackend{
			token:   token,
			message: "Registration successful. Awaiting admin approval.",
			user:    domain.User{ID: "u2", Name: "Bo", Email: "bo@example.com"},
		}
		store, _ := newStore(t, fb, credential.NewMemoryStore(""))
		in := base
		in.Role = domain.RoleSeller

		res, err := store.Register(ctx, in)
		require.NoError(t, err)
		assert.True(t, res.AwaitingApproval)
		assert.Contains(t, res.Message, "Awaiting")

		caps := store.Capabilities()
		assert.True(t, caps.IsPendingSeller)
		assert.False(t, caps.IsSeller)
		assert.ErrorIs(t, store.Gate(rolegate.Seller), rolegate.ErrRedirect)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	token := signedToken(t, time.Now().Add(time.Hour))
	fb := &fakeBackend{token: token, user: domain.User{ID: "u1", Role: domain.RoleUser}}
	creds := credential.NewMemoryStore(token)
	store, _ := newStore(t, fb, creds)
	require.NoError(t, store.Refresh(ctx))
	before := fb.requests.Load()

	var mu sync.Mutex
	var kinds []ChangeKind
	unsubscribe := store.Subscribe(func(c Change) {
		mu.Lock()
		kinds = append(kinds, c.Kind)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, store.Logout(ctx))

	assert.Equal(t, Anonymous, store.State())
	assert.Nil(t, store.Session())
	assert.Empty(t, store.Token())
	assert.Equal(t, before, fb.requests.Load())
	_, err := creds.Load(ctx)
	assert.ErrorIs(t, err, credential.ErrNoCredential)
	assert.Equal(t, []ChangeKind{Cleared}, kinds)
}

func TestForceLogoutOnUnauthorized(t *testing.T) {
	ctx := context.Background()
	token := signedToken(t, time.Now().Add(time.Hour))
	fb := &fakeBackend{token: token, user: domain.User{ID: "u1", Role: domain.RoleUser}}
	store, client := newStore(t, fb, credential.NewMemoryStore(token))
	require.NoError(t, store.Refresh(ctx))

	var cause domain.ActivityKind
	store.Subscribe(func(c Change) { cause = c.Cause })

	fb.meStatus.Store(http.StatusUnauthorized)
	_, err := client.Me(ctx)
	require.ErrorIs(t, err, api.ErrAuth)

	assert.Equal(t, Anonymous, store.State())
	assert.Equal(t, domain.ActivityExpired, cause)
}
