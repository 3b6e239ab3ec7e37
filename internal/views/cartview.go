package views

import (
	"context"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/domain"
)

type CartView struct {
	session Session
	cart    *cart.ViewModel
	confirm Confirmer
}

func NewCartView(session Session, vm *cart.ViewModel, confirmer Confirmer) *CartView {
	return &CartView{session: session, cart: vm, confirm: confirmer}
}

// Open refreshes and returns the cart. Anonymous users get ErrLoginRequired
// and no request is made.
func (v *CartView) Open(ctx context.Context) (domain.Cart, error) {
	if err := requireAuth(v.session); err != nil {
		return domain.Cart{}, err
	}
	if err := v.cart.Fetch(ctx); err != nil {
		return v.cart.Snapshot(), err
	}
	return v.cart.Snapshot(), nil
}

func (v *CartView) Increment(ctx context.Context, lineID string) error {
	if err := requireAuth(v.session); err != nil {
		return err
	}
	return v.cart.Increment(ctx, lineID)
}

func (v *CartView) Decrement(ctx context.Context, lineID string) error {
	if err := requireAuth(v.session); err != nil {
		return err
	}
	return v.cart.Decrement(ctx, lineID)
}

func (v *CartView) SetQuantity(ctx context.Context, lineID string, quantity int) error {
	if err := requireAuth(v.session); err != nil {
		return err
	}
	return v.cart.UpdateQuantity(ctx, lineID, quantity)
}

func (v *CartView) Remove(ctx context.Context, lineID string) error {
	if err := requireAuth(v.session); err != nil {
		return err
	}
	return v.cart.Remove(ctx, lineID)
}

func (v *CartView) Clear(ctx context.Context) error {
	if err := requireAuth(v.session); err != nil {
		return err
	}
	if err := confirm(ctx, v.confirm, "Remove every item from the cart?"); err != nil {
		return err
	}
	return v.cart.Clear(ctx)
}
