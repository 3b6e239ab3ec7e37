package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/views"
)

var sellerCommands = map[string]func(ctx context.Context, c *cli, args []string) error{
	"products":   sellerProducts,
	"categories": sellerCategories,
	"create":     sellerSave(false),
	"update":     sellerSave(true),
	"delete":     sellerDelete,
	"upload":     sellerUpload,
	"import":     sellerImport,
}

func runSeller(ctx context.Context, c *cli, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	run, ok := sellerCommands[args[0]]
	if !ok {
		return errUsage
	}
	return run(ctx, c, args[1:])
}

func sellerProducts(ctx context.Context, c *cli, _ []string) error {
	products, err := c.app.Seller.Products(ctx)
	if err != nil {
		return err
	}
	return c.emit(products, productTable(products))
}

func sellerCategories(ctx context.Context, c *cli, _ []string) error {
	categories, err := c.app.Seller.Categories(ctx)
	if err != nil {
		return err
	}
	return c.emit(categories, categoryTable(categories))
}

func (c *cli) ownProduct(ctx context.Context, id string) (domain.Product, error) {
	products, err := c.app.Seller.Products(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	return findByID(products, id, productID, "product")
}

// sellerSave creates or updates a product. On update, unset flags keep the
// current values.
func sellerSave(update bool) func(context.Context, *cli, []string) error {
	return func(ctx context.Context, c *cli, args []string) error {
		var form views.ProductForm
		var imageFile string
		set := map[string]bool{}
		want := 0
		if update {
			want = 1
		}

		fs := flag.NewFlagSet("seller", flag.ContinueOnError)
		fs.SetOutput(c.errOut)
		fs.StringVar(&form.Name, "name", "", "")
		fs.StringVar(&form.Description, "description", "", "")
		fs.StringVar(&form.Price, "price", "", "")
		fs.StringVar(&form.Stock, "stock", "", "")
		fs.StringVar(&form.CategoryID, "category", "", "")
		fs.StringVar(&form.Image, "image", "", "image URL")
		fs.StringVar(&imageFile, "image-file", "", "local image to upload")
		if err := fs.Parse(args); err != nil || fs.NArg() != want {
			return errUsage
		}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

		id := ""
		if update {
			id = fs.Arg(0)
			current, err := c.ownProduct(ctx, id)
			if err != nil {
				return err
			}
			base := views.FormFromProduct(current)
			merge(&form.Name, base.Name, set["name"])
			merge(&form.Description, base.Description, set["description"])
			merge(&form.Price, base.Price, set["price"])
			merge(&form.Stock, base.Stock, set["stock"])
			merge(&form.CategoryID, base.CategoryID, set["category"])
			merge(&form.Image, base.Image, set["image"])
		}

		if imageFile != "" {
			url, err := c.upload(ctx, imageFile)
			if err != nil {
				return err
			}
			form.Image = url
		}

		p, err := c.app.Seller.Save(ctx, id, form)
		if err != nil {
			return err
		}
		return c.emit(p, productTable([]domain.Product{p}))
	}
}

func merge(dst *string, current string, explicit bool) {
	if !explicit {
		*dst = current
	}
}

func sellerDelete(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	p, err := c.ownProduct(ctx, args[0])
	if err != nil {
		return err
	}
	if err := c.app.Seller.Delete(ctx, p); err != nil {
		return err
	}
	c.printf("Deleted product %s.\n", p.Name)
	return nil
}

func sellerUpload(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	url, err := c.upload(ctx, args[0])
	if err != nil {
		return err
	}
	return c.emit(map[string]string{"url": url}, func(w *tabwriter.Writer) {
		row(w, url)
	})
}

func (c *cli) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	return c.app.Seller.Upload(ctx, filepath.Base(path), f)
}

func sellerImport(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	res, err := c.app.Seller.Import(ctx, f)
	if err != nil {
		return err
	}

	lines := make([]int, 0, len(res.Failed))
	for line := range res.Failed {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	failed := make(map[string]string, len(res.Failed))
	for _, line := range lines {
		failed[fmt.Sprint(line)] = describe(res.Failed[line])
	}

	view := map[string]any{"created": res.Created, "failed": failed}
	return c.emit(view, func(w *tabwriter.Writer) {
		row(w, fmt.Sprintf("Created %d products.", len(res.Created)))
		for _, line := range lines {
			row(w, fmt.Sprintf("line %d:", line), describe(res.Failed[line]))
		}
	})
}
