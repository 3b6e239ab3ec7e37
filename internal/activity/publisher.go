// Package activity turns client-side state changes into events, ships them
// to Kafka and records them in Postgres on the consuming side.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/session"
)

var meter = otel.Meter("storefront/activity")

// EventWriter is satisfied by *messaging.Producer.
type EventWriter interface {
	Publish(ctx context.Context, key, kind string, event any) error
}

// SessionView supplies the identity stamped on cart and action events.
type SessionView interface {
	Session() *domain.Session
}

const (
	defaultBuffer  = 256
	publishTimeout = 5 * time.Second
)

// Publisher queues events and writes them from a single goroutine so
// session and cart operations never wait on the broker. When the buffer is
// full events are dropped.
type Publisher struct {
	writer  EventWriter
	session SessionView
	logger  *slog.Logger
	now     func() time.Time

	events    chan domain.ActivityEvent
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool

	published metric.Int64Counter
}

func NewPublisher(writer EventWriter, session SessionView, logger *slog.Logger) *Publisher {
	p := &Publisher{
		writer:  writer,
		session: session,
		logger:  logger,
		now:     time.Now,
		events:  make(chan domain.ActivityEvent, defaultBuffer),
	}
	p.published, _ = meter.Int64Counter("storefront.activity.events",
		metric.WithDescription("Activity events by kind and outcome"))

	p.wg.Add(1)
	go p.run()
	return p
}

// OnSession is a session.Listener.
func (p *Publisher) OnSession(c session.Change) {
	if c.Cause == domain.ActivityUnrecorded {
		return
	}
	e := p.event(c.Cause)
	if c.Session != nil {
		e.UserID = c.Session.UserID
		e.Role = c.Session.Role
	}
	p.enqueue(e)
}

// OnCart is a cart.Observer.
func (p *Publisher) OnCart(c domain.Cart) {
	e := p.stamped(domain.ActivityCartChanged)
	e.ItemCount = c.ItemCount()
	e.Total = c.Total
	p.enqueue(e)
}

// Record implements views.Recorder.
func (p *Publisher) Record(_ context.Context, kind domain.ActivityKind, subject string) {
	e := p.stamped(kind)
	e.Subject = subject
	p.enqueue(e)
}

// Close flushes queued events and stops the writer goroutine.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

func (p *Publisher) event(kind domain.ActivityKind) domain.ActivityEvent {
	return domain.ActivityEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: p.now().UTC(),
	}
}

func (p *Publisher) stamped(kind domain.ActivityKind) domain.ActivityEvent {
	e := p.event(kind)
	if s := p.session.Session(); s != nil {
		e.UserID = s.UserID
		e.Role = s.Role
	}
	return e
}

func (p *Publisher) enqueue(e domain.ActivityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- e:
	default:
		p.logger.Warn("activity buffer full, dropping event", "kind", e.Kind)
		p.count(e.Kind, "dropped")
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for e := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := p.writer.Publish(ctx, partitionKey(e), string(e.Kind), e)
		cancel()
		if err != nil {
			p.logger.Warn("failed to publish activity event", "kind", e.Kind, "error", err)
			p.count(e.Kind, "error")
			continue
		}
		p.count(e.Kind, "ok")
	}
}

func (p *Publisher) count(kind domain.ActivityKind, outcome string) {
	p.published.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("outcome", outcome),
	))
}

func partitionKey(e domain.ActivityEvent) string {
	if e.UserID != "" {
		return e.UserID
	}
	return "anonymous"
}
