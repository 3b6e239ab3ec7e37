package views

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/report"
	"github.com/joao-fontenele/storefront/internal/rolegate"
)

type AdminAPI interface {
	ListProducts(ctx context.Context, filter api.ProductFilter) ([]domain.Product, error)
	CreateProduct(ctx context.Context, in api.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, in api.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, in api.CategoryInput) (domain.Category, error)
	UpdateCategory(ctx context.Context, id string, in api.CategoryInput) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	ListOrders(ctx context.Context) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error)

	ListSellers(ctx context.Context) ([]domain.User, error)
	PendingSellers(ctx context.Context) ([]domain.User, error)
	ApproveSeller(ctx context.Context, id string) (domain.User, error)
	RejectSeller(ctx context.Context, id string) (domain.User, error)
	DeactivateSeller(ctx context.Context, id string) (domain.User, error)

	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUserRole(ctx context.Context, id string, role domain.Role) error
	DeleteUser(ctx context.Context, id string) error
}

type Stats struct {
	Products       int
	Categories     int
	Orders         int
	PendingOrders  int
	ActiveSellers  int
	PendingSellers int
}

// Admin backs the admin dashboard and its panels. Every method requires an
// admin session.
type Admin struct {
	api      AdminAPI
	session  Session
	confirm  Confirmer
	recorder Recorder
	logger   *slog.Logger
}

func NewAdmin(client AdminAPI, session Session, confirmer Confirmer, recorder Recorder, logger *slog.Logger) *Admin {
	return &Admin{api: client, session: session, confirm: confirmer, recorder: recorder, logger: logger}
}

func (a *Admin) guard() error {
	return a.session.Gate(rolegate.Admin)
}

// Stats loads the dashboard counters concurrently.
func (a *Admin) Stats(ctx context.Context) (Stats, error) {
	if err := a.guard(); err != nil {
		return Stats{}, err
	}

	var s Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := a.api.ListProducts(gctx, api.ProductFilter{})
		s.Products = len(products)
		return err
	})
	g.Go(func() error {
		cats, err := a.api.ListCategories(gctx)
		s.Categories = len(cats)
		return err
	})
	g.Go(func() error {
		orders, err := a.api.ListOrders(gctx)
		s.Orders = len(orders)
		for _, o := range orders {
			if o.Status == domain.OrderStatusPending {
				s.PendingOrders++
			}
		}
		return err
	})
	g.Go(func() error {
		sellers, err := a.api.ListSellers(gctx)
		s.ActiveSellers = len(sellers)
		return err
	})
	g.Go(func() error {
		pending, err := a.api.PendingSellers(gctx)
		s.PendingSellers = len(pending)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// SellerBoard is the seller approval panel.
type SellerBoard struct {
	Pending []domain.User
	Active  []domain.User
}

func (a *Admin) Sellers(ctx context.Context) (SellerBoard, error) {
	if err := a.guard(); err != nil {
		return SellerBoard{}, err
	}
	var b SellerBoard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		b.Pending, err = a.api.PendingSellers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		b.Active, err = a.api.ListSellers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return SellerBoard{}, err
	}
	return b, nil
}

// Approve and Reject are offered only for pending sellers.
func (a *Admin) Approve(ctx context.Context, u domain.User) (domain.User, error) {
	if err := a.guard(); err != nil {
		return u, err
	}
	if !rolegate.CanReviewSeller(u) {
		return u, ErrNotOffered
	}
	if err := confirm(ctx, a.confirm, fmt.Sprintf("Approve %s as a seller?", u.Name)); err != nil {
		return u, err
	}
	updated, err := a.api.ApproveSeller(ctx, u.ID)
	if err != nil {
		return u, err
	}
	record(ctx, a.recorder, domain.ActivitySellerReview, u.ID+":approved")
	return updated, nil
}

func (a *Admin) Reject(ctx context.Context, u domain.User) (domain.User, error) {
	if err := a.guard(); err != nil {
		return u, err
	}
	if !rolegate.CanReviewSeller(u) {
		return u, ErrNotOffered
	}
	if err := confirm(ctx, a.confirm, fmt.Sprintf("Reject %s? The account stays a regular customer.", u.Name)); err != nil {
		return u, err
	}
	updated, err := a.api.RejectSeller(ctx, u.ID)
	if err != nil {
		return u, err
	}
	record(ctx, a.recorder, domain.ActivitySellerReview, u.ID+":rejected")
	return updated, nil
}

// Deactivate is offered only for active sellers.
func (a *Admin) Deactivate(ctx context.Context, u domain.User) (domain.User, error) {
	if err := a.guard(); err != nil {
		return u, err
	}
	if !rolegate.CanDeactivateSeller(u) {
		return u, ErrNotOffered
	}
	if err := confirm(ctx, a.confirm, fmt.Sprintf("Deactivate seller %s? They will no longer be able to sell.", u.Name)); err != nil {
		return u, err
	}
	updated, err := a.api.DeactivateSeller(ctx, u.ID)
	if err != nil {
		return u, err
	}
	record(ctx, a.recorder, domain.ActivitySellerReview, u.ID+":deactivated")
	return updated, nil
}

func (a *Admin) Users(ctx context.Context) ([]domain.User, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	return a.api.ListUsers(ctx)
}

// SetRole changes a user between user and admin. Admins cannot change
// their own role.
func (a *Admin) SetRole(ctx context.Context, u domain.User, role domain.Role) error {
	if err := a.guard(); err != nil {
		return err
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return api.NewValidationError("role", "role must be user or admin")
	}
	if a.isSelf(u.ID) {
		return ErrNotOffered
	}
	if err := confirm(ctx, a.confirm, fmt.Sprintf("Change the role of %s to %s?", u.Name, role)); err != nil {
		return err
	}
	return a.api.UpdateUserRole(ctx, u.ID, role)
}

func (a *Admin) DeleteUser(ctx context.Context, u domain.User) error {
	if err := a.guard(); err != nil {
		return err
	}
	if a.isSelf(u.ID) {
		return ErrNotOffered
	}
	if err := confirm(ctx, a.confirm, fmt.Sprintf("Delete user %s?", u.Name)); err != nil {
		return err
	}
	return a.api.DeleteUser(ctx, u.ID)
}

func (a *Admin) Orders(ctx context.Context) ([]domain.Order, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	return a.api.ListOrders(ctx)
}

func (a *Admin) SetOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if err := a.guard(); err != nil {
		return domain.Order{}, err
	}
	if !status.Valid() {
		return domain.Order{}, api.NewValidationError("status", fmt.Sprintf("unknown order status %q", status))
	}
	return a.api.UpdateOrderStatus(ctx, orderID, status)
}

// ExportOrders writes every order to w as an xlsx workbook.
func (a *Admin) ExportOrders(ctx context.Context, w io.Writer) (int, error) {
	orders, err := a.Orders(ctx)
	if err != nil {
		return 0, err
	}
	if err := report.WriteOrders(w, orders); err != nil {
		return 0, err
	}
	a.logger.Info("exported orders", "count", len(orders))
	return len(orders), nil
}

func (a *Admin) Categories(ctx context.Context) ([]domain.Category, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	return a.api.ListCategories(ctx)
}

func (a *Admin) SaveCategory(ctx context.Context, id string, in api.CategoryInput) (domain.Category, error) {
	if err := a.guard(); err != nil {
		return domain.Category{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return domain.Category{}, api.NewValidationError("name", "name is required")
	}
	if id == "" {
		return a.api.CreateCategory(ctx, in)
	}
	return a.api.UpdateCategory(ctx, id, in)
}

func (a *Admin) DeleteCategory(ctx context.Context, c domain.Category) error {
	if err := a.guard(); err != nil {
		return err
	}
	if err := confirm(ctx, a.confirm, fmt.Sprintf("Delete category %s?", c.Name)); err != nil {
		return err
	}
	return a.api.DeleteCategory(ctx, c.ID)
}

func (a *Admin) Products(ctx context.Context) ([]domain.Product, error) {
	if err := a.guard(); err != nil {
		return nil, err
	}
	return a.api.ListProducts(ctx, api.ProductFilter{})
}

// SaveProduct creates a product when id is empty and updates it otherwise.
func (a *Admin) SaveProduct(ctx context.Context, id string, form ProductForm) (domain.Product, error) {
	if err := a.guard(); err != nil {
		return domain.Product{}, err
	}
	in, err := form.Parse()
	if err != nil {
		return domain.Product{}, err
	}
	if id == "" {
		return a.api.CreateProduct(ctx, in)
	}
	return a.api.UpdateProduct(ctx, id, in)
}

func (a *Admin) DeleteProduct(ctx context.Context, p domain.Product) error {
	if err := a.guard(); err != nil {
		return err
	}
	if err := confirm(ctx, a.confirm, fmt.Sprintf("Delete product %s?", p.Name)); err != nil {
		return err
	}
	return a.api.DeleteProduct(ctx, p.ID)
}

func (a *Admin) isSelf(userID string) bool {
	s := a.session.Session()
	return s != nil && s.UserID == userID
}
