package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// emit prints v as JSON when --json is set, otherwise calls table.
func (c *cli) emit(v any, table func(w *tabwriter.Writer)) error {
	if c.json {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	table(w)
	return w.Flush()
}

func (c *cli) printf(format string, args ...any) {
	if c.json {
		return
	}
	fmt.Fprintf(c.out, format, args...)
}

func row(w *tabwriter.Writer, cols ...any) {
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprint(col)
	}
	fmt.Fprintln(w, strings.Join(parts, "\t"))
}

func productTable(products []domain.Product) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		row(w, "ID", "NAME", "PRICE", "STOCK", "CATEGORY")
		for _, p := range products {
			row(w, p.ID, p.Name, p.Price.StringFixed(2), p.Stock, p.CategoryID)
		}
	}
}

func categoryTable(categories []domain.Category) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		row(w, "ID", "NAME", "DESCRIPTION")
		for _, cat := range categories {
			row(w, cat.ID, cat.Name, cat.Description)
		}
	}
}

func orderTable(orders []domain.Order) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		row(w, "ID", "STATUS", "ITEMS", "TOTAL", "CREATED")
		for _, o := range orders {
			row(w, o.ID, o.Status, len(o.Items), o.Total.StringFixed(2), o.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
}

func userTable(users []domain.User) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		row(w, "ID", "NAME", "EMAIL", "ROLE", "STATUS")
		for _, u := range users {
			row(w, u.ID, u.Name, u.Email, u.Role, u.Status)
		}
	}
}

func cartTable(cart domain.Cart) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		if cart.IsEmpty() {
			row(w, "Your cart is empty.")
			return
		}
		row(w, "LINE", "PRODUCT", "QTY", "PRICE", "SUBTOTAL")
		for _, l := range cart.Lines {
			row(w, l.ID, l.Product.Name, l.Quantity, l.Product.Price.StringFixed(2), l.Subtotal().StringFixed(2))
		}
		row(w, "", "", "", "TOTAL", cart.Total.StringFixed(2))
	}
}
