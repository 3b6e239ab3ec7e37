// Package cart holds the client-side cart state and serializes every cart
// mutation through a single FIFO queue.
//
// The server owns the cart. After each successful mutation the view-model
// refetches GET /cart and replaces its snapshot wholesale, so line totals,
// product snapshots and stock are never computed locally.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/rolegate"
)

var meter = otel.Meter("storefront/cart")

var (
	ErrNoSession      = errors.New("login required to use the cart")
	ErrUnknownLine    = errors.New("cart line not found")
	ErrSessionChanged = errors.New("session changed before cart mutation ran")
	ErrClosed         = errors.New("cart view-model closed")
)

const queueSize = 64

type Backend interface {
	GetCart(ctx context.Context) (domain.Cart, error)
	AddToCart(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, lineID string, quantity int) error
	RemoveCartItem(ctx context.Context, lineID string) error
	ClearCart(ctx context.Context) error
}

// SessionView reports whether a session is present.
type SessionView interface {
	Capabilities() rolegate.Capabilities
}

// Observer receives a copy of the cart after every change.
type Observer func(domain.Cart)

type job struct {
	ctx        context.Context
	op         string
	generation uint64
	run        func(ctx context.Context, generation uint64) error
	done       chan error
}

type ViewModel struct {
	backend Backend
	session SessionView
	logger  *slog.Logger

	jobs      chan job
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu         sync.RWMutex
	cart       domain.Cart
	generation uint64
	inFlight   int
	observers  map[int]Observer
	nextID     int

	mutations  metric.Int64Counter
	queueDepth metric.Int64UpDownCounter
}

func NewViewModel(backend Backend, session SessionView, logger *slog.Logger) *ViewModel {
	vm := &ViewModel{
		backend:   backend,
		session:   session,
		logger:    logger,
		jobs:      make(chan job, queueSize),
		stop:      make(chan struct{}),
		cart:      emptyCart(),
		observers: make(map[int]Observer),
	}
	vm.mutations, _ = meter.Int64Counter("storefront.cart.mutations",
		metric.WithDescription("Cart operations by kind and outcome"))
	vm.queueDepth, _ = meter.Int64UpDownCounter("storefront.cart.queue_depth",
		metric.WithDescription("Cart operations waiting or running"))

	vm.wg.Add(1)
	go vm.worker()
	return vm
}

// Close stops the worker. Pending callers receive ErrClosed.
func (vm *ViewModel) Close() {
	vm.closeOnce.Do(func() {
		close(vm.stop)
	})
	vm.wg.Wait()
}

func (vm *ViewModel) Snapshot() domain.Cart {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.cart.Clone()
}

func (vm *ViewModel) ItemCount() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.cart.ItemCount()
}

// Loading reports whether a queued operation is executing.
func (vm *ViewModel) Loading() bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.inFlight > 0
}

func (vm *ViewModel) Observe(fn Observer) func() {
	vm.mu.Lock()
	id := vm.nextID
	vm.nextID++
	vm.observers[id] = fn
	vm.mu.Unlock()

	return func() {
		vm.mu.Lock()
		delete(vm.observers, id)
		vm.mu.Unlock()
	}
}

// Fetch replaces the snapshot with the server cart. Without a session the
// cart is emptied locally and no request is made.
func (vm *ViewModel) Fetch(ctx context.Context) error {
	if !vm.authenticated() {
		vm.replace(emptyCart())
		return nil
	}
	return vm.submit(ctx, "fetch", vm.refetch)
}

func (vm *ViewModel) Add(ctx context.Context, productID string, quantity int) error {
	if !vm.authenticated() {
		return ErrNoSession
	}
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return api.NewValidationError("quantity", "quantity must be at least 1")
	}

	return vm.submit(ctx, "add", func(ctx context.Context, gen uint64) error {
		if err := vm.backend.AddToCart(ctx, productID, quantity); err != nil {
			return err
		}
		return vm.refetch(ctx, gen)
	})
}

// UpdateQuantity sets a line's quantity. Quantities below 1 or above the
// line's product stock are rejected before any request.
func (vm *ViewModel) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if !vm.authenticated() {
		return ErrNoSession
	}
	if quantity < 1 {
		return api.NewValidationError("quantity", "quantity must be at least 1")
	}
	line, ok := vm.Snapshot().Line(lineID)
	if !ok {
		return ErrUnknownLine
	}
	if quantity > line.Product.Stock {
		return api.NewValidationError("quantity", fmt.Sprintf("only %d in stock", line.Product.Stock))
	}

	return vm.submit(ctx, "update", func(ctx context.Context, gen uint64) error {
		if err := vm.backend.UpdateCartItem(ctx, lineID, quantity); err != nil {
			return err
		}
		return vm.refetch(ctx, gen)
	})
}

// Increment and Decrement step a line by one unit relative to the snapshot.
func (vm *ViewModel) Increment(ctx context.Context, lineID string) error {
	line, ok := vm.Snapshot().Line(lineID)
	if !ok {
		return ErrUnknownLine
	}
	return vm.UpdateQuantity(ctx, lineID, line.Quantity+1)
}

func (vm *ViewModel) Decrement(ctx context.Context, lineID string) error {
	line, ok := vm.Snapshot().Line(lineID)
	if !ok {
		return ErrUnknownLine
	}
	return vm.UpdateQuantity(ctx, lineID, line.Quantity-1)
}

func (vm *ViewModel) Remove(ctx context.Context, lineID string) error {
	if !vm.authenticated() {
		return ErrNoSession
	}
	return vm.submit(ctx, "remove", func(ctx context.Context, gen uint64) error {
		if err := vm.backend.RemoveCartItem(ctx, lineID); err != nil {
			return err
		}
		return vm.refetch(ctx, gen)
	})
}

// Clear empties the local cart immediately and then clears the server cart
// in queue order. If the server call fails the cart is refetched.
func (vm *ViewModel) Clear(ctx context.Context) error {
	vm.replace(emptyCart())
	if !vm.authenticated() {
		return nil
	}

	return vm.submit(ctx, "clear", func(ctx context.Context, gen uint64) error {
		if err := vm.backend.ClearCart(ctx); err != nil {
			if ferr := vm.refetch(ctx, gen); ferr != nil {
				vm.logger.Warn("failed to reconcile cart after clear error", "error", ferr)
			}
			return err
		}
		vm.apply(gen, emptyCart())
		return nil
	})
}

// Reset drops the local cart without a request. Jobs queued before the reset
// fail with ErrSessionChanged and in-flight results are discarded.
func (vm *ViewModel) Reset() {
	vm.mu.Lock()
	vm.generation++
	vm.cart = emptyCart()
	observers := vm.snapshotObservers()
	vm.mu.Unlock()

	vm.notify(observers, emptyCart())
}

func (vm *ViewModel) refetch(ctx context.Context, gen uint64) error {
	c, err := vm.backend.GetCart(ctx)
	if err != nil {
		return fmt.Errorf("refresh cart: %w", err)
	}
	vm.apply(gen, c)
	return nil
}

func (vm *ViewModel) submit(ctx context.Context, op string, run func(context.Context, uint64) error) error {
	vm.mu.RLock()
	gen := vm.generation
	vm.mu.RUnlock()

	j := job{ctx: ctx, op: op, generation: gen, run: run, done: make(chan error, 1)}

	select {
	case <-vm.stop:
		return ErrClosed
	default:
	}

	select {
	case vm.jobs <- j:
		vm.queueDepth.Add(ctx, 1)
	case <-ctx.Done():
		return ctx.Err()
	case <-vm.stop:
		return ErrClosed
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-vm.stop:
		return ErrClosed
	}
}

func (vm *ViewModel) worker() {
	defer vm.wg.Done()
	for {
		select {
		case <-vm.stop:
			vm.drain()
			return
		case j := <-vm.jobs:
			vm.execute(j)
		}
	}
}

// drain answers jobs that were queued while Close raced with submit.
func (vm *ViewModel) drain() {
	for {
		select {
		case j := <-vm.jobs:
			vm.queueDepth.Add(context.Background(), -1)
			j.done <- ErrClosed
		default:
			return
		}
	}
}

func (vm *ViewModel) execute(j job) {
	defer vm.queueDepth.Add(context.Background(), -1)

	if err := j.ctx.Err(); err != nil {
		j.done <- err
		return
	}

	vm.mu.Lock()
	if vm.generation != j.generation {
		vm.mu.Unlock()
		vm.record(j.ctx, j.op, ErrSessionChanged)
		j.done <- ErrSessionChanged
		return
	}
	vm.inFlight++
	vm.mu.Unlock()

	err := j.run(j.ctx, j.generation)

	vm.mu.Lock()
	vm.inFlight--
	vm.mu.Unlock()

	vm.record(j.ctx, j.op, err)
	if err != nil {
		vm.logger.Warn("cart operation failed", "op", j.op, "error", err)
	}
	j.done <- err
}

// apply installs c if no reset happened since gen was captured.
func (vm *ViewModel) apply(gen uint64, c domain.Cart) bool {
	vm.mu.Lock()
	if vm.generation != gen {
		vm.mu.Unlock()
		vm.logger.Debug("discarding stale cart snapshot")
		return false
	}
	vm.cart = c.Clone()
	observers := vm.snapshotObservers()
	vm.mu.Unlock()

	vm.notify(observers, c)
	return true
}

func (vm *ViewModel) replace(c domain.Cart) {
	vm.mu.Lock()
	vm.cart = c
	observers := vm.snapshotObservers()
	vm.mu.Unlock()

	vm.notify(observers, c)
}

func (vm *ViewModel) authenticated() bool {
	return vm.session.Capabilities().IsAuthenticated
}

func (vm *ViewModel) snapshotObservers() []Observer {
	out := make([]Observer, 0, len(vm.observers))
	for _, o := range vm.observers {
		out = append(out, o)
	}
	return out
}

func (vm *ViewModel) notify(observers []Observer, c domain.Cart) {
	for _, o := range observers {
		o(c.Clone())
	}
}

func (vm *ViewModel) record(ctx context.Context, op string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, api.ErrOutOfStock):
		outcome = "out_of_stock"
	case errors.Is(err, ErrSessionChanged):
		outcome = "dropped"
	case err != nil:
		outcome = "error"
	}
	vm.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

func emptyCart() domain.Cart {
	return domain.Cart{Lines: []domain.CartLine{}}
}
