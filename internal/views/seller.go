package views

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/report"
	"github.com/joao-fontenele/storefront/internal/rolegate"
)

type SellerAPI interface {
	MyProducts(ctx context.Context) ([]domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateProduct(ctx context.Context, in api.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, in api.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	UploadImage(ctx context.Context, filename string, r io.Reader) (api.Upload, error)
}

// Seller is the seller's own product panel.
type Seller struct {
	api     SellerAPI
	session Session
	confirm Confirmer
	logger  *slog.Logger
}

func NewSeller(client SellerAPI, session Session, confirmer Confirmer, logger *slog.Logger) *Seller {
	return &Seller{api: client, session: session, confirm: confirmer, logger: logger}
}

// guard lets approved sellers through and reports pending ones separately
// so the caller can show the awaiting-approval notice.
func (s *Seller) guard() error {
	err := s.session.Gate(rolegate.Seller)
	if errors.Is(err, rolegate.ErrRedirect) && s.session.Capabilities().IsPendingSeller {
		return ErrAwaitingApproval
	}
	return err
}

func (s *Seller) Products(ctx context.Context) ([]domain.Product, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.api.MyProducts(ctx)
}

func (s *Seller) Categories(ctx context.Context) ([]domain.Category, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.api.ListCategories(ctx)
}

// Save creates a product when id is empty and updates it otherwise.
func (s *Seller) Save(ctx context.Context, id string, form ProductForm) (domain.Product, error) {
	if err := s.guard(); err != nil {
		return domain.Product{}, err
	}
	in, err := form.Parse()
	if err != nil {
		return domain.Product{}, err
	}
	if id == "" {
		return s.api.CreateProduct(ctx, in)
	}
	return s.api.UpdateProduct(ctx, id, in)
}

func (s *Seller) Delete(ctx context.Context, p domain.Product) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := confirm(ctx, s.confirm, fmt.Sprintf("Delete product %s?", p.Name)); err != nil {
		return err
	}
	return s.api.DeleteProduct(ctx, p.ID)
}

// Upload sends an image and returns the served path to store on the product.
func (s *Seller) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := s.guard(); err != nil {
		return "", err
	}
	up, err := s.api.UploadImage(ctx, filename, r)
	if err != nil {
		return "", err
	}
	return up.URL, nil
}

// ImportResult reports the outcome of a bulk import per sheet line.
type ImportResult struct {
	Created []domain.Product
	Failed  map[int]error
}

// Import creates one product per row of an xlsx sheet. Rows that fail
// validation or creation are reported in Failed and do not stop the import.
func (s *Seller) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	if err := s.guard(); err != nil {
		return ImportResult{}, err
	}
	rows, err := report.ReadProducts(r)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Failed: make(map[int]error)}
	for _, row := range rows {
		form := ProductForm{
			Name:        row.Name,
			Description: row.Description,
			Price:       row.Price,
			Stock:       row.Stock,
			CategoryID:  row.CategoryID,
			Image:       row.Image,
		}
		in, err := form.Parse()
		if err == nil {
			var p domain.Product
			p, err = s.api.CreateProduct(ctx, in)
			if err == nil {
				res.Created = append(res.Created, p)
				continue
			}
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		s.logger.Warn("product import row failed", "line", row.Line, "error", err)
		res.Failed[row.Line] = err
	}
	return res, nil
}
