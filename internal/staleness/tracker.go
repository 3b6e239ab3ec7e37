// Package staleness discards responses that were superseded by a newer
// request for the same key.
package staleness

import (
	"context"
	"sync"
)

// Ticket identifies one request started with Begin.
type Ticket struct {
	key string
	seq uint64
}

type entry struct {
	seq    uint64
	cancel context.CancelFunc
}

// Tracker hands out tickets per key. Starting a new request for a key cancels
// the previous one, and only the newest ticket is Latest.
type Tracker struct {
	mu      sync.Mutex
	seq     uint64
	entries map[string]entry
}

func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]entry)}
}

// Begin starts a request for key and returns a context that is cancelled
// when a newer request for the same key begins or when Done is called.
func (t *Tracker) Begin(ctx context.Context, key string) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.entries[key]; ok {
		prev.cancel()
	}
	t.seq++
	t.entries[key] = entry{seq: t.seq, cancel: cancel}
	return ctx, Ticket{key: key, seq: t.seq}
}

// Latest reports whether tk is still the newest request for its key.
func (t *Tracker) Latest(tk Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[tk.key]
	return ok && e.seq == tk.seq
}

// Done releases tk's context. Results should be checked with Latest first.
func (t *Tracker) Done(tk Ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[tk.key]
	if !ok || e.seq != tk.seq {
		return
	}
	e.cancel()
	delete(t.entries, tk.key)
}

// Run executes fn under a fresh ticket and returns ok=false when a newer
// request for key superseded it before fn returned.
func Run[T any](ctx context.Context, t *Tracker, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	rctx, tk := t.Begin(ctx, key)
	v, err := fn(rctx)
	latest := t.Latest(tk)
	t.Done(tk)

	var zero T
	if !latest {
		return zero, false, nil
	}
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}
