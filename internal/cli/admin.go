package cli

import (
	"context"
	"flag"
	"os"
	"text/tabwriter"

	"github.com/joao-fontenele/storefront/internal/api"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/views"
)

var adminCommands = map[string]func(ctx context.Context, c *cli, args []string) error{
	"stats":           adminStats,
	"sellers":         adminSellers,
	"pending":         adminPending,
	"approve":         adminReview((*views.Admin).Approve),
	"reject":          adminReview((*views.Admin).Reject),
	"deactivate":      adminReview((*views.Admin).Deactivate),
	"users":           adminUsers,
	"role":            adminRole,
	"delete-user":     adminDeleteUser,
	"orders":          adminOrders,
	"status":          adminStatus,
	"export":          adminExport,
	"category-create": adminCategorySave(false),
	"category-update": adminCategorySave(true),
	"category-delete": adminCategoryDelete,
	"product-delete":  adminProductDelete,
}

func runAdmin(ctx context.Context, c *cli, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	run, ok := adminCommands[args[0]]
	if !ok {
		return errUsage
	}
	return run(ctx, c, args[1:])
}

func adminStats(ctx context.Context, c *cli, _ []string) error {
	s, err := c.app.Admin.Stats(ctx)
	if err != nil {
		return err
	}
	return c.emit(s, func(w *tabwriter.Writer) {
		row(w, "PRODUCTS", s.Products)
		row(w, "CATEGORIES", s.Categories)
		row(w, "ORDERS", s.Orders)
		row(w, "PENDING ORDERS", s.PendingOrders)
		row(w, "ACTIVE SELLERS", s.ActiveSellers)
		row(w, "PENDING SELLERS", s.PendingSellers)
	})
}

func adminSellers(ctx context.Context, c *cli, _ []string) error {
	b, err := c.app.Admin.Sellers(ctx)
	if err != nil {
		return err
	}
	return c.emit(b.Active, userTable(b.Active))
}

func adminPending(ctx context.Context, c *cli, _ []string) error {
	b, err := c.app.Admin.Sellers(ctx)
	if err != nil {
		return err
	}
	return c.emit(b.Pending, userTable(b.Pending))
}

func adminReview(action func(*views.Admin, context.Context, domain.User) (domain.User, error)) func(context.Context, *cli, []string) error {
	return func(ctx context.Context, c *cli, args []string) error {
		if len(args) != 1 {
			return errUsage
		}
		b, err := c.app.Admin.Sellers(ctx)
		if err != nil {
			return err
		}
		u, err := findByID(append(b.Pending, b.Active...), args[0], userID, "seller")
		if err != nil {
			return err
		}
		u, err = action(c.app.Admin, ctx, u)
		if err != nil {
			return err
		}
		return c.emit(u, userTable([]domain.User{u}))
	}
}

func adminUsers(ctx context.Context, c *cli, _ []string) error {
	users, err := c.app.Admin.Users(ctx)
	if err != nil {
		return err
	}
	return c.emit(users, userTable(users))
}

func (c *cli) user(ctx context.Context, id string) (domain.User, error) {
	users, err := c.app.Admin.Users(ctx)
	if err != nil {
		return domain.User{}, err
	}
	return findByID(users, id, userID, "user")
}

func adminRole(ctx context.Context, c *cli, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	u, err := c.user(ctx, args[0])
	if err != nil {
		return err
	}
	if err := c.app.Admin.SetRole(ctx, u, domain.Role(args[1])); err != nil {
		return err
	}
	c.printf("Role of %s set to %s.\n", u.Email, args[1])
	return nil
}

func adminDeleteUser(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	u, err := c.user(ctx, args[0])
	if err != nil {
		return err
	}
	if err := c.app.Admin.DeleteUser(ctx, u); err != nil {
		return err
	}
	c.printf("Deleted %s.\n", u.Email)
	return nil
}

func adminOrders(ctx context.Context, c *cli, _ []string) error {
	orders, err := c.app.Admin.Orders(ctx)
	if err != nil {
		return err
	}
	return c.emit(orders, orderTable(orders))
}

func adminStatus(ctx context.Context, c *cli, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	o, err := c.app.Admin.SetOrderStatus(ctx, args[0], domain.OrderStatus(args[1]))
	if err != nil {
		return err
	}
	return c.emit(o, orderDetail(o))
}

func adminExport(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	n, err := c.app.Admin.ExportOrders(ctx, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(args[0])
		return err
	}
	c.printf("Exported %d orders to %s.\n", n, args[0])
	return nil
}

func adminCategorySave(update bool) func(context.Context, *cli, []string) error {
	return func(ctx context.Context, c *cli, args []string) error {
		var in api.CategoryInput
		want := 0
		if update {
			want = 1
		}
		rest, err := subcommand("category", args, want, func(fs *flag.FlagSet) {
			fs.StringVar(&in.Name, "name", "", "")
			fs.StringVar(&in.Description, "description", "", "")
		})
		if err != nil {
			return err
		}
		id := ""
		if update {
			id = rest[0]
		}
		cat, err := c.app.Admin.SaveCategory(ctx, id, in)
		if err != nil {
			return err
		}
		return c.emit(cat, categoryTable([]domain.Category{cat}))
	}
}

func adminCategoryDelete(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	categories, err := c.app.Admin.Categories(ctx)
	if err != nil {
		return err
	}
	cat, err := findByID(categories, args[0], func(c domain.Category) string { return c.ID }, "category")
	if err != nil {
		return err
	}
	if err := c.app.Admin.DeleteCategory(ctx, cat); err != nil {
		return err
	}
	c.printf("Deleted category %s.\n", cat.Name)
	return nil
}

func adminProductDelete(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	products, err := c.app.Admin.Products(ctx)
	if err != nil {
		return err
	}
	p, err := findByID(products, args[0], productID, "product")
	if err != nil {
		return err
	}
	if err := c.app.Admin.DeleteProduct(ctx, p); err != nil {
		return err
	}
	c.printf("Deleted product %s.\n", p.Name)
	return nil
}

func userID(u domain.User) string       { return u.ID }
func productID(p domain.Product) string { return p.ID }
