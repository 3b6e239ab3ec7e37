package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ProductRow is one row of a product import sheet, kept as raw text so the
// caller can run its own form validation.
type ProductRow struct {
	Line        int
	Name        string
	CategoryID  string
	Price       string
	Stock       string
	Description string
	Image       string
}

// ReadProducts reads the first sheet of an xlsx workbook with columns
// name, category_id, price, stock, description and image. The header row is
// skipped and blank rows are ignored.
func ReadProducts(r io.Reader) ([]ProductRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	var out []ProductRow
	for i, row := range rows {
		if i == 0 {
			continue
		}
		get := func(n int) string {
			if n < len(row) {
				return strings.TrimSpace(row[n])
			}
			return ""
		}
		pr := ProductRow{
			Line:        i + 1,
			Name:        get(0),
			CategoryID:  get(1),
			Price:       get(2),
			Stock:       get(3),
			Description: get(4),
			Image:       get(5),
		}
		if pr.Name == "" && pr.CategoryID == "" && pr.Price == "" && pr.Stock == "" {
			continue
		}
		out = append(out, pr)
	}
	return out, nil
}
