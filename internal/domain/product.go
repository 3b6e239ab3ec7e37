package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Product struct {
	ID          string          `json:"id"`
	SellerID    string          `json:"seller_id"`
	Seller      *User           `json:"seller,omitempty"`
	CategoryID  string          `json:"category_id"`
	Category    *Category       `json:"category,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (p Product) InStock() bool {
	return p.Stock > 0
}

// HasImage reports whether the product carries a served image path.
func (p Product) HasImage() bool {
	return p.Image != ""
}
