package activity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	key, kind string
	event     domain.ActivityEvent
}

type fakeWriter struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (w *fakeWriter) Publish(_ context.Context, key, kind string, event any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, published{key: key, kind: kind, event: event.(domain.ActivityEvent)})
	return nil
}

func (w *fakeWriter) all() []published {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]published(nil), w.events...)
}

type fixedSession struct{ s *domain.Session }

func (f fixedSession) Session() *domain.Session { return f.s }

func TestPublisher(t *testing.T) {
	t.Run("stamps session identity and flushes on close", func(t *testing.T) {
		w := &fakeWriter{}
		sess := &domain.Session{UserID: "u1", Role: domain.RoleUser}
		p := NewPublisher(w, fixedSession{sess}, discardLogger())

		p.OnSession(session.Change{Kind: session.Established, Session: sess, Cause: domain.ActivityLogin})
		p.OnCart(domain.Cart{
			Lines: []domain.CartLine{{ID: "l1", Quantity: 2}, {ID: "l2", Quantity: 1}},
			Total: decimal.NewFromInt(30),
		})
		p.Record(context.Background(), domain.ActivityOrderPlaced, "o1")
		p.Close()

		got := w.all()
		require.Len(t, got, 3)

		assert.Equal(t, "u1", got[0].key)
		assert.Equal(t, string(domain.ActivityLogin), got[0].kind)

		assert.Equal(t, domain.ActivityCartChanged, got[1].event.Kind)
		assert.Equal(t, 3, got[1].event.ItemCount)
		assert.True(t, got[1].event.Total.Equal(decimal.NewFromInt(30)))

		assert.Equal(t, "o1", got[2].event.Subject)
		for _, e := range got {
			_, err := uuid.Parse(e.event.ID)
			assert.NoError(t, err)
			assert.False(t, e.event.OccurredAt.IsZero())
		}
	})

	t.Run("anonymous events use a shared key", func(t *testing.T) {
		w := &fakeWriter{}
		p := NewPublisher(w, fixedSession{}, discardLogger())
		p.OnCart(domain.Cart{})
		p.Close()

		got := w.all()
		require.Len(t, got, 1)
		assert.Equal(t, "anonymous", got[0].key)
	})

	t.Run("unrecorded session changes publish nothing", func(t *testing.T) {
		w := &fakeWriter{}
		p := NewPublisher(w, fixedSession{}, discardLogger())
		p.OnSession(session.Change{Kind: session.Cleared, Cause: domain.ActivityUnrecorded})
		p.OnSession(session.Change{Kind: session.Established, Session: &domain.Session{UserID: "u1"}, Cause: domain.ActivityRestored})
		p.Close()

		got := w.all()
		require.Len(t, got, 1)
		assert.Equal(t, string(domain.ActivityRestored), got[0].kind)
	})

	t.Run("broker failures are not surfaced", func(t *testing.T) {
		w := &fakeWriter{err: errors.New("broker down")}
		p := NewPublisher(w, fixedSession{}, discardLogger())
		p.Record(context.Background(), domain.ActivityOrderCancel, "o1")
		p.Close()
		assert.Empty(t, w.all())
	})

	t.Run("events after close are ignored", func(t *testing.T) {
		w := &fakeWriter{}
		p := NewPublisher(w, fixedSession{}, discardLogger())
		p.Close()
		p.Record(context.Background(), domain.ActivityOrderCancel, "o1")
		p.Close()
		assert.Empty(t, w.all())
	})
}

type fakeStore struct {
	mu     sync.Mutex
	events map[string]domain.ActivityEvent
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(map[string]domain.ActivityEvent)}
}

func (s *fakeStore) Insert(_ context.Context, e domain.ActivityEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.events[e.ID]; ok {
		return false, nil
	}
	s.events[e.ID] = e
	return true, nil
}

func delivery(t *testing.T, e domain.ActivityEvent) messaging.Delivery {
	t.Helper()
	payload, err := json.Marshal(e)
	require.NoError(t, err)
	return messaging.Delivery{Key: e.UserID, Kind: string(e.Kind), Payload: payload}
}

func TestIngester(t *testing.T) {
	ctx := context.Background()
	valid := domain.ActivityEvent{
		ID:         uuid.NewString(),
		Kind:       domain.ActivityLogin,
		UserID:     "u1",
		OccurredAt: time.Now().UTC(),
	}

	t.Run("records events once", func(t *testing.T) {
		store := newFakeStore()
		ing := NewIngester(store, discardLogger())

		require.NoError(t, ing.Handle(ctx, delivery(t, valid)))
		require.NoError(t, ing.Handle(ctx, delivery(t, valid)))
		assert.Len(t, store.events, 1)
	})

	t.Run("falls back to the header kind", func(t *testing.T) {
		store := newFakeStore()
		ing := NewIngester(store, discardLogger())

		e := valid
		e.ID = uuid.NewString()
		e.Kind = ""
		d := delivery(t, e)
		d.Kind = string(domain.ActivityLogout)

		require.NoError(t, ing.Handle(ctx, d))
		assert.Equal(t, domain.ActivityLogout, store.events[e.ID].Kind)
	})

	t.Run("skips malformed events", func(t *testing.T) {
		ing := NewIngester(newFakeStore(), discardLogger())

		err := ing.Handle(ctx, messaging.Delivery{Payload: []byte("{not json")})
		assert.ErrorIs(t, err, messaging.ErrSkip)

		bad := valid
		bad.ID = "not-a-uuid"
		assert.ErrorIs(t, ing.Handle(ctx, delivery(t, bad)), messaging.ErrSkip)

		undated := valid
		undated.ID = uuid.NewString()
		undated.OccurredAt = time.Time{}
		assert.ErrorIs(t, ing.Handle(ctx, delivery(t, undated)), messaging.ErrSkip)
	})

	t.Run("storage failures are retried", func(t *testing.T) {
		store := newFakeStore()
		store.err = errors.New("connection refused")
		ing := NewIngester(store, discardLogger())

		err := ing.Handle(ctx, delivery(t, valid))
		require.Error(t, err)
		assert.NotErrorIs(t, err, messaging.ErrSkip)
	})
}

type fakeReader struct {
	filter Filter
	since  time.Time
	events []domain.ActivityEvent
	counts map[string]int
	err    error
}

func (r *fakeReader) List(_ context.Context, f Filter) ([]domain.ActivityEvent, error) {
	r.filter = f
	return r.events, r.err
}

func (r *fakeReader) CountByKind(_ context.Context, since time.Time) (map[string]int, error) {
	r.since = since
	return r.counts, r.err
}

func TestHandleList(t *testing.T) {
	t.Run("parses filters", func(t *testing.T) {
		reader := &fakeReader{events: []domain.ActivityEvent{{ID: "e1", Kind: domain.ActivityLogin}}}
		h := NewHandler(reader, discardLogger())

		req := httptest.NewRequest(http.MethodGet,
			"/activity?kind=session.login,%20order.placed&user_id=u1&since=2026-01-02T03:04:05Z&limit=10", nil)
		rec := httptest.NewRecorder()
		h.HandleList(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"session.login", "order.placed"}, reader.filter.Kinds)
		assert.Equal(t, "u1", reader.filter.UserID)
		assert.Equal(t, 10, reader.filter.Limit)
		assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), reader.filter.Since.UTC())

		var got []domain.ActivityEvent
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, "e1", got[0].ID)
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		h := NewHandler(&fakeReader{}, discardLogger())
		for _, target := range []string{"/activity?limit=0", "/activity?limit=x", "/activity?since=yesterday"} {
			rec := httptest.NewRecorder()
			h.HandleList(rec, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		}
	})

	t.Run("hides repository errors", func(t *testing.T) {
		h := NewHandler(&fakeReader{err: errors.New("pq: relation does not exist")}, discardLogger())
		rec := httptest.NewRecorder()
		h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/activity", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	})
}

func TestHandleSummary(t *testing.T) {
	reader := &fakeReader{counts: map[string]int{"session.login": 4}}
	h := NewHandler(reader, discardLogger())

	rec := httptest.NewRecorder()
	before := time.Now()
	h.HandleSummary(rec, httptest.NewRequest(http.MethodGet, "/activity/summary?window=1h", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.WithinDuration(t, before.Add(-time.Hour), reader.since, time.Second)
	assert.JSONEq(t, `{"window":"1h0m0s","counts":{"session.login":4}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandleSummary(rec, httptest.NewRequest(http.MethodGet, "/activity/summary?window=-1h", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
