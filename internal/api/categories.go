package api

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := c.do(ctx, request{method: http.MethodGet, route: "/categories", path: "/categories"}, &categories)
	return categories, err
}

func (c *Client) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	var category domain.Category
	err := c.do(ctx, request{method: http.MethodGet, route: "/categories/{id}", path: itemPath("/categories", id)}, &category)
	return category, err
}

func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	var category domain.Category
	err := c.do(ctx, request{method: http.MethodPost, route: "/categories", path: "/categories", body: in}, &category)
	return category, err
}

func (c *Client) UpdateCategory(ctx context.Context, id string, in CategoryInput) (domain.Category, error) {
	var category domain.Category
	err := c.do(ctx, request{method: http.MethodPut, route: "/categories/{id}", path: itemPath("/categories", id), body: in}, &category)
	return category, err
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, route: "/categories/{id}", path: itemPath("/categories", id)}, nil)
}
