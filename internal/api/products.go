package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// ProductFilter narrows GET /products. Empty fields are omitted.
type ProductFilter struct {
	CategoryID string
	SellerID   string
	Search     string
}

func (f ProductFilter) values() url.Values {
	q := url.Values{}
	if f.CategoryID != "" {
		q.Set("category_id", f.CategoryID)
	}
	if f.SellerID != "" {
		q.Set("seller_id", f.SellerID)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

type ProductInput struct {
	CategoryID  string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Image       string
}

type productBody struct {
	CategoryID  string  `json:"category_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Image       string  `json:"image"`
}

func (in ProductInput) body() productBody {
	return productBody{
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price.InexactFloat64(),
		Stock:       in.Stock,
		Image:       in.Image,
	}
}

func (c *Client) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	var products []domain.Product
	err := c.do(ctx, request{method: http.MethodGet, route: "/products", path: "/products", query: filter.values()}, &products)
	return products, err
}

// MyProducts lists the products owned by the authenticated seller.
func (c *Client) MyProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := c.do(ctx, request{method: http.MethodGet, route: "/products/my", path: "/products/my"}, &products)
	return products, err
}

func (c *Client) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := c.do(ctx, request{method: http.MethodGet, route: "/products/{id}", path: itemPath("/products", id)}, &product)
	return product, err
}

func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	var product domain.Product
	err := c.do(ctx, request{method: http.MethodPost, route: "/products", path: "/products", body: in.body()}, &product)
	return product, err
}

func (c *Client) UpdateProduct(ctx context.Context, id string, in ProductInput) (domain.Product, error) {
	var product domain.Product
	err := c.do(ctx, request{method: http.MethodPut, route: "/products/{id}", path: itemPath("/products", id), body: in.body()}, &product)
	return product, err
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, route: "/products/{id}", path: itemPath("/products", id)}, nil)
}
