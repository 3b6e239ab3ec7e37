package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/session"
)

func runLogin(ctx context.Context, c *cli, args []string) error {
	var email, password string
	if _, err := subcommand("login", args, 0, func(fs *flag.FlagSet) {
		fs.StringVar(&email, "email", "", "")
		fs.StringVar(&password, "password", "", "")
	}); err != nil {
		return err
	}
	s, err := c.app.Session.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return c.emit(s, func(w *tabwriter.Writer) {
		row(w, fmt.Sprintf("Logged in as %s (%s)", s.Name, s.Role))
	})
}

func runRegister(ctx context.Context, c *cli, args []string) error {
	var in session.RegisterInput
	var seller bool
	if _, err := subcommand("register", args, 0, func(fs *flag.FlagSet) {
		fs.StringVar(&in.Name, "name", "", "")
		fs.StringVar(&in.Email, "email", "", "")
		fs.StringVar(&in.Password, "password", "", "")
		fs.StringVar(&in.ConfirmPassword, "confirm", "", "defaults to --password")
		fs.BoolVar(&seller, "seller", false, "")
	}); err != nil {
		return err
	}
	if in.ConfirmPassword == "" {
		in.ConfirmPassword = in.Password
	}
	in.Role = domain.RoleUser
	if seller {
		in.Role = domain.RoleSeller
	}

	res, err := c.app.Session.Register(ctx, in)
	if err != nil {
		return err
	}
	return c.emit(res, func(w *tabwriter.Writer) {
		row(w, fmt.Sprintf("Welcome, %s!", res.Session.Name))
		if res.AwaitingApproval {
			row(w, res.Message)
		}
	})
}

func runLogout(ctx context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := c.app.Session.Logout(ctx); err != nil {
		return err
	}
	c.printf("Logged out.\n")
	return nil
}

func runWhoami(_ context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	s := c.app.Session.Session()
	caps := c.app.Session.Capabilities()
	view := struct {
		Session      *domain.Session `json:"session"`
		IsAdmin      bool            `json:"is_admin"`
		IsSeller     bool            `json:"is_seller"`
		IsPending    bool            `json:"is_pending_seller"`
		CartQuantity int             `json:"cart_quantity"`
	}{s, caps.IsAdmin, caps.IsSeller, caps.IsPendingSeller, c.app.Cart.ItemCount()}

	return c.emit(view, func(w *tabwriter.Writer) {
		if s == nil {
			row(w, "Not logged in.")
			return
		}
		row(w, "NAME", s.Name)
		row(w, "EMAIL", s.Email)
		row(w, "ROLE", s.Role)
		row(w, "SELLER", s.SellerStatus)
		row(w, "CART", view.CartQuantity)
	})
}

func runProducts(ctx context.Context, c *cli, args []string) error {
	var filter api.ProductFilter
	if _, err := subcommand("products", args, 0, func(fs *flag.FlagSet) {
		fs.StringVar(&filter.CategoryID, "category", "", "")
		fs.StringVar(&filter.Search, "search", "", "")
	}); err != nil {
		return err
	}
	products, _, err := c.app.Catalog.Search(ctx, filter)
	if err != nil {
		return err
	}
	return c.emit(products, productTable(products))
}

func runProduct(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	p, err := c.app.Catalog.Product(ctx, args[0])
	if err != nil {
		return err
	}
	return c.emit(p, func(w *tabwriter.Writer) {
		row(w, "ID", p.ID)
		row(w, "NAME", p.Name)
		row(w, "PRICE", p.Price.StringFixed(2))
		row(w, "STOCK", p.Stock)
		row(w, "CATEGORY", p.CategoryID)
		row(w, "DESCRIPTION", p.Description)
	})
}

func runCategories(ctx context.Context, c *cli, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	page, err := c.app.Catalog.Load(ctx, api.ProductFilter{})
	if err != nil {
		return err
	}
	return c.emit(page.Categories, categoryTable(page.Categories))
}

func runCart(ctx context.Context, c *cli, args []string) error {
	if _, err := c.app.CartView.Open(ctx); err != nil {
		return err
	}

	var err error
	switch {
	case len(args) == 0:
	case args[0] == "add" && (len(args) == 2 || len(args) == 3):
		qty := 1
		if len(args) == 3 {
			if qty, err = strconv.Atoi(args[2]); err != nil {
				return errUsage
			}
		}
		err = c.app.Catalog.AddToCart(ctx, args[1], qty)
	case args[0] == "update" && len(args) == 3:
		qty, convErr := strconv.Atoi(args[2])
		if convErr != nil {
			return errUsage
		}
		err = c.app.CartView.SetQuantity(ctx, args[1], qty)
	case args[0] == "inc" && len(args) == 2:
		err = c.app.CartView.Increment(ctx, args[1])
	case args[0] == "dec" && len(args) == 2:
		err = c.app.CartView.Decrement(ctx, args[1])
	case args[0] == "remove" && len(args) == 2:
		err = c.app.CartView.Remove(ctx, args[1])
	case args[0] == "clear" && len(args) == 1:
		err = c.app.CartView.Clear(ctx)
	default:
		return errUsage
	}
	if err != nil {
		return err
	}

	cart := c.app.Cart.Snapshot()
	return c.emit(cart, cartTable(cart))
}

func runCheckout(ctx context.Context, c *cli, args []string) error {
	var in api.CheckoutInput
	if _, err := subcommand("checkout", args, 0, func(fs *flag.FlagSet) {
		fs.StringVar(&in.Address, "address", "", "")
		fs.StringVar(&in.Phone, "phone", "", "")
	}); err != nil {
		return err
	}
	order, err := c.app.Checkout.PlaceOrder(ctx, in)
	if err != nil {
		return err
	}
	return c.emit(order, func(w *tabwriter.Writer) {
		row(w, fmt.Sprintf("Order %s placed, total %s.", order.ID, order.Total.StringFixed(2)))
	})
}

func runOrders(ctx context.Context, c *cli, args []string) error {
	switch {
	case len(args) == 0:
		orders, err := c.app.Orders.List(ctx)
		if err != nil {
			return err
		}
		return c.emit(orders, orderTable(orders))
	case len(args) == 2 && args[0] == "show":
		o, err := c.app.Orders.Get(ctx, args[1])
		if err != nil {
			return err
		}
		return c.emit(o, orderDetail(o))
	case len(args) == 2 && args[0] == "cancel":
		o, err := c.app.Orders.Get(ctx, args[1])
		if err != nil {
			return err
		}
		o, err = c.app.Orders.Cancel(ctx, o)
		if err != nil {
			return err
		}
		return c.emit(o, orderDetail(o))
	}
	return errUsage
}

func orderDetail(o domain.Order) func(w *tabwriter.Writer) {
	return func(w *tabwriter.Writer) {
		row(w, "ORDER", o.ID)
		row(w, "STATUS", o.Status)
		row(w, "ADDRESS", o.Address)
		row(w, "PHONE", o.Phone)
		for _, it := range o.Items {
			name := it.ProductID
			if it.Product != nil {
				name = it.Product.Name
			}
			row(w, "ITEM", fmt.Sprintf("%s x%d @ %s", name, it.Quantity, it.Price.StringFixed(2)))
		}
		row(w, "TOTAL", o.Total.StringFixed(2))
	}
}

func findByID[T any](items []T, id string, idOf func(T) string, what string) (T, error) {
	for _, it := range items {
		if idOf(it) == id {
			return it, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s %q: %w", what, id, errNotListed)
}

var errNotListed = errors.New("not found")
