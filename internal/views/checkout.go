package views

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type CheckoutAPI interface {
	CreateOrder(ctx context.Context, in api.CheckoutInput) (domain.Order, error)
}

type Checkout struct {
	api      CheckoutAPI
	session  Session
	cart     *cart.ViewModel
	recorder Recorder
	logger   *slog.Logger
}

func NewCheckout(client CheckoutAPI, session Session, vm *cart.ViewModel, recorder Recorder, logger *slog.Logger) *Checkout {
	return &Checkout{api: client, session: session, cart: vm, recorder: recorder, logger: logger}
}

// PlaceOrder turns the server cart into an order. The server empties the
// cart, so the view-model is refetched afterwards.
func (c *Checkout) PlaceOrder(ctx context.Context, in api.CheckoutInput) (domain.Order, error) {
	if err := requireAuth(c.session); err != nil {
		return domain.Order{}, err
	}

	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.Address == "" {
		return domain.Order{}, api.NewValidationError("address", "shipping address is required")
	}
	if in.Phone == "" {
		return domain.Order{}, api.NewValidationError("phone", "phone number is required")
	}

	if c.cart.Snapshot().IsEmpty() {
		if err := c.cart.Fetch(ctx); err != nil {
			return domain.Order{}, err
		}
		if c.cart.Snapshot().IsEmpty() {
			return domain.Order{}, ErrEmptyCart
		}
	}

	order, err := c.api.CreateOrder(ctx, in)
	if err != nil {
		return domain.Order{}, err
	}
	record(ctx, c.recorder, domain.ActivityOrderPlaced, order.ID)

	if err := c.cart.Fetch(ctx); err != nil {
		c.logger.Warn("failed to refresh cart after checkout", "order_id", order.ID, "error", err)
	}
	return order, nil
}
