package domain

import "github.com/shopspring/decimal"

// CartLine is one cart entry with a denormalized product snapshot.
type CartLine struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}

// CanIncrement reports whether one more unit fits within the snapshot stock.
func (l CartLine) CanIncrement() bool {
	return l.Quantity < l.Product.Stock
}

// Subtotal is price * quantity for display only; the cart total comes from the server.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart mirrors the server's GET /cart response. Total is whatever the server
// last returned and is never recomputed from Lines.
type Cart struct {
	Lines []CartLine      `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) Line(id string) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return CartLine{}, false
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Clone returns a copy that does not share the Lines backing array.
func (c Cart) Clone() Cart {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines, Total: c.Total}
}
