package views

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
)

// ProductForm is the raw text of the product editor.
type ProductForm struct {
	Name        string
	Description string
	Price       string
	Stock       string
	CategoryID  string
	Image       string
}

// FormFromProduct prefills the editor for an existing product.
func FormFromProduct(p domain.Product) ProductForm {
	return ProductForm{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.String(),
		Stock:       strconv.Itoa(p.Stock),
		CategoryID:  p.CategoryID,
		Image:       p.Image,
	}
}

// Parse checks required fields and numeric values.
func (f ProductForm) Parse() (api.ProductInput, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return api.ProductInput{}, api.NewValidationError("name", "name is required")
	}
	if strings.TrimSpace(f.CategoryID) == "" {
		return api.ProductInput{}, api.NewValidationError("category_id", "category is required")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(f.Price))
	if err != nil {
		return api.ProductInput{}, api.NewValidationError("price", "price must be a number")
	}
	if price.IsNegative() {
		return api.ProductInput{}, api.NewValidationError("price", "price cannot be negative")
	}

	stock, err := strconv.Atoi(strings.TrimSpace(f.Stock))
	if err != nil {
		return api.ProductInput{}, api.NewValidationError("stock", "stock must be a whole number")
	}
	if stock < 0 {
		return api.ProductInput{}, api.NewValidationError("stock", "stock cannot be negative")
	}

	return api.ProductInput{
		CategoryID:  strings.TrimSpace(f.CategoryID),
		Name:        name,
		Description: strings.TrimSpace(f.Description),
		Price:       price,
		Stock:       stock,
		Image:       strings.TrimSpace(f.Image),
	}, nil
}
