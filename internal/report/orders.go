// Package report reads and writes the spreadsheet formats used by the admin
// and seller dashboards.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	OrdersSheet = "Orders"
	ItemsSheet  = "Items"
)

var (
	orderHeader = []any{"Order ID", "Created", "Customer", "Email", "Status", "Items", "Total", "Address", "Phone"}
	itemHeader  = []any{"Order ID", "Product ID", "Product", "Quantity", "Price", "Subtotal"}
)

// WriteOrders writes orders as an xlsx workbook with one row per order on
// OrdersSheet and one row per line item on ItemsSheet.
func WriteOrders(w io.Writer, orders []domain.Order) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", OrdersSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return fmt.Errorf("create items sheet: %w", err)
	}

	if err := f.SetSheetRow(OrdersSheet, "A1", &orderHeader); err != nil {
		return fmt.Errorf("write order header: %w", err)
	}
	if err := f.SetSheetRow(ItemsSheet, "A1", &itemHeader); err != nil {
		return fmt.Errorf("write item header: %w", err)
	}

	itemRow := 2
	for i, o := range orders {
		var customer, email string
		if o.User != nil {
			customer, email = o.User.Name, o.User.Email
		}
		units := 0
		for _, it := range o.Items {
			units += it.Quantity
		}

		row := []any{
			o.ID,
			o.CreatedAt.Format("2006-01-02 15:04"),
			customer,
			email,
			string(o.Status),
			units,
			o.Total.InexactFloat64(),
			o.Address,
			o.Phone,
		}
		if err := f.SetSheetRow(OrdersSheet, cell(1, i+2), &row); err != nil {
			return fmt.Errorf("write order %s: %w", o.ID, err)
		}

		for _, it := range o.Items {
			name := ""
			if it.Product != nil {
				name = it.Product.Name
			}
			subtotal := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			line := []any{o.ID, it.ProductID, name, it.Quantity, it.Price.InexactFloat64(), subtotal.InexactFloat64()}
			if err := f.SetSheetRow(ItemsSheet, cell(1, itemRow), &line); err != nil {
				return fmt.Errorf("write item of order %s: %w", o.ID, err)
			}
			itemRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
