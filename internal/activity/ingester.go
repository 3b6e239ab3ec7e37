package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

type EventStore interface {
	Insert(ctx context.Context, e domain.ActivityEvent) (bool, error)
}

// Ingester is the consumer handler that records activity events.
type Ingester struct {
	store  EventStore
	logger *slog.Logger
}

func NewIngester(store EventStore, logger *slog.Logger) *Ingester {
	return &Ingester{store: store, logger: logger}
}

// Handle decodes one delivery. Malformed events are skipped; storage
// failures stop the consumer so the offset is retried.
func (i *Ingester) Handle(ctx context.Context, d messaging.Delivery) error {
	var e domain.ActivityEvent
	if err := json.Unmarshal(d.Payload, &e); err != nil {
		return fmt.Errorf("unmarshal activity event: %w: %w", messaging.ErrSkip, err)
	}
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("activity event id %q: %w", e.ID, messaging.ErrSkip)
	}
	if e.Kind == "" {
		e.Kind = domain.ActivityKind(d.Kind)
	}
	if e.Kind == "" || e.OccurredAt.IsZero() {
		return fmt.Errorf("activity event %s incomplete: %w", e.ID, messaging.ErrSkip)
	}

	inserted, err := i.store.Insert(ctx, e)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	if !inserted {
		i.logger.Debug("duplicate activity event", "id", e.ID)
		return nil
	}

	i.logger.Info("activity recorded", "id", e.ID, "kind", e.Kind, "user_id", e.UserID)
	return nil
}
