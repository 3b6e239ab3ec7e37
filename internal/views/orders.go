package views

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type OrdersAPI interface {
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	CancelOrder(ctx context.Context, id string) error
}

// Orders is the customer's order history.
type Orders struct {
	api      OrdersAPI
	session  Session
	confirm  Confirmer
	recorder Recorder
}

func NewOrders(client OrdersAPI, session Session, confirmer Confirmer, recorder Recorder) *Orders {
	return &Orders{api: client, session: session, confirm: confirmer, recorder: recorder}
}

func (o *Orders) List(ctx context.Context) ([]domain.Order, error) {
	if err := requireAuth(o.session); err != nil {
		return nil, err
	}
	return o.api.ListOrders(ctx)
}

func (o *Orders) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := requireAuth(o.session); err != nil {
		return domain.Order{}, err
	}
	return o.api.GetOrder(ctx, id)
}

// Cancel is offered only for pending orders. It returns the refreshed order.
func (o *Orders) Cancel(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := requireAuth(o.session); err != nil {
		return domain.Order{}, err
	}
	if !order.CanCancel() {
		return order, ErrNotOffered
	}
	if err := confirm(ctx, o.confirm, fmt.Sprintf("Cancel order %s?", order.ID)); err != nil {
		return order, err
	}
	if err := o.api.CancelOrder(ctx, order.ID); err != nil {
		return order, err
	}
	record(ctx, o.recorder, domain.ActivityOrderCancel, order.ID)
	return o.api.GetOrder(ctx, order.ID)
}
