package api

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type CheckoutInput struct {
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

// ListOrders returns the caller's orders, or every order for an admin.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := c.do(ctx, request{method: http.MethodGet, route: "/orders", path: "/orders"}, &orders)
	return orders, err
}

func (c *Client) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, request{method: http.MethodGet, route: "/orders/{id}", path: itemPath("/orders", id)}, &order)
	return order, err
}

func (c *Client) CreateOrder(ctx context.Context, in CheckoutInput) (domain.Order, error) {
	var order domain.Order
	err := c.do(ctx, request{method: http.MethodPost, route: "/orders", path: "/orders", body: in}, &order)
	return order, err
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	var order domain.Order
	body := updateStatusRequest{Status: status}
	err := c.do(ctx, request{method: http.MethodPut, route: "/orders/{id}/status", path: itemPath("/orders", id, "status"), body: body}, &order)
	return order, err
}

func (c *Client) CancelOrder(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPut, route: "/orders/{id}/cancel", path: itemPath("/orders", id, "cancel")}, nil)
}
