package api

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type updateRoleRequest struct {
	Role domain.Role `json:"role"`
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := c.do(ctx, request{method: http.MethodGet, route: "/users", path: "/users"}, &users)
	return users, err
}

func (c *Client) UpdateUserRole(ctx context.Context, id string, role domain.Role) error {
	body := updateRoleRequest{Role: role}
	return c.do(ctx, request{method: http.MethodPut, route: "/users/{id}/role", path: itemPath("/users", id, "role"), body: body}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, route: "/users/{id}", path: itemPath("/users", id)}, nil)
}
