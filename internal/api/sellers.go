package api

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type userEnvelope struct {
	Message string      `json:"message"`
	User    domain.User `json:"user"`
}

// ListSellers returns active sellers.
func (c *Client) ListSellers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := c.do(ctx, request{method: http.MethodGet, route: "/sellers", path: "/sellers"}, &users)
	return users, err
}

func (c *Client) PendingSellers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := c.do(ctx, request{method: http.MethodGet, route: "/sellers/pending", path: "/sellers/pending"}, &users)
	return users, err
}

func (c *Client) ApproveSeller(ctx context.Context, id string) (domain.User, error) {
	return c.sellerTransition(ctx, id, "approve")
}

func (c *Client) RejectSeller(ctx context.Context, id string) (domain.User, error) {
	return c.sellerTransition(ctx, id, "reject")
}

func (c *Client) DeactivateSeller(ctx context.Context, id string) (domain.User, error) {
	return c.sellerTransition(ctx, id, "deactivate")
}

func (c *Client) sellerTransition(ctx context.Context, id, action string) (domain.User, error) {
	var env userEnvelope
	err := c.do(ctx, request{
		method: http.MethodPut,
		route:  "/sellers/{id}/" + action,
		path:   itemPath("/sellers", id, action),
	}, &env)
	return env.User, err
}
