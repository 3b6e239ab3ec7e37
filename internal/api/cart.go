package api

import (
	"context"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type addToCartRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (c *Client) GetCart(ctx context.Context) (domain.Cart, error) {
	var cart domain.Cart
	if err := c.do(ctx, request{method: http.MethodGet, route: "/cart", path: "/cart"}, &cart); err != nil {
		return domain.Cart{}, err
	}
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	return cart, nil
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) error {
	body := addToCartRequest{ProductID: productID, Quantity: quantity}
	return c.do(ctx, request{method: http.MethodPost, route: "/cart", path: "/cart", body: body}, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, lineID string, quantity int) error {
	body := updateQuantityRequest{Quantity: quantity}
	return c.do(ctx, request{method: http.MethodPut, route: "/cart/{id}", path: itemPath("/cart", lineID), body: body}, nil)
}

func (c *Client) RemoveCartItem(ctx context.Context, lineID string) error {
	return c.do(ctx, request{method: http.MethodDelete, route: "/cart/{id}", path: itemPath("/cart", lineID)}, nil)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodDelete, route: "/cart", path: "/cart"}, nil)
}
