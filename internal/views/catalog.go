package views

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/staleness"
)

type CatalogAPI interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListProducts(ctx context.Context, filter api.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

// CartAdder is the part of the cart view-model the catalog uses.
type CartAdder interface {
	Add(ctx context.Context, productID string, quantity int) error
}

type CatalogPage struct {
	Categories []domain.Category
	Products   []domain.Product
}

type Catalog struct {
	api     CatalogAPI
	session Session
	cart    CartAdder
	tracker *staleness.Tracker
	logger  *slog.Logger
}

func NewCatalog(client CatalogAPI, session Session, cart CartAdder, logger *slog.Logger) *Catalog {
	return &Catalog{
		api:     client,
		session: session,
		cart:    cart,
		tracker: staleness.NewTracker(),
		logger:  logger,
	}
}

// Load fetches categories and products concurrently.
func (c *Catalog) Load(ctx context.Context, filter api.ProductFilter) (CatalogPage, error) {
	var page CatalogPage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cats, err := c.api.ListCategories(gctx)
		page.Categories = cats
		return err
	})
	g.Go(func() error {
		products, err := c.api.ListProducts(gctx, filter)
		page.Products = products
		return err
	})
	if err := g.Wait(); err != nil {
		return CatalogPage{}, err
	}
	return page, nil
}

// Search re-queries products. fresh is false when a newer search started
// before this one finished, in which case the result must be ignored.
func (c *Catalog) Search(ctx context.Context, filter api.ProductFilter) (products []domain.Product, fresh bool, err error) {
	products, fresh, err = staleness.Run(ctx, c.tracker, "catalog.products", func(ctx context.Context) ([]domain.Product, error) {
		return c.api.ListProducts(ctx, filter)
	})
	if !fresh {
		c.logger.Debug("dropping superseded product search", "search", filter.Search, "category_id", filter.CategoryID)
	}
	return products, fresh, err
}

func (c *Catalog) Product(ctx context.Context, id string) (domain.Product, error) {
	return c.api.GetProduct(ctx, id)
}

// AddToCart requires a session; anonymous users get ErrLoginRequired.
func (c *Catalog) AddToCart(ctx context.Context, productID string, quantity int) error {
	if err := requireAuth(c.session); err != nil {
		return err
	}
	return c.cart.Add(ctx, productID, quantity)
}
