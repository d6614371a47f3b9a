package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/checkout"
	"github.com/Skotchmaster/storefront/internal/client"
	"github.com/Skotchmaster/storefront/internal/session"
)

var (
	errUsage         = errors.New("invalid arguments")
	errNotLoggedIn   = errors.New("not logged in, run: shopctl login <email> <password>")
	errExpired       = errors.New("session expired, run: shopctl login <email> <password>")
	errLoginRejected = errors.New("invalid email or password")
)

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.authenticate(ctx, args, a.session.Register)
	case "login":
		return a.authenticate(ctx, args, a.session.Login)
	case "logout":
		if err := a.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "logged out")
		return nil
	case "whoami":
		return a.whoami()
	case "products":
		return a.products(ctx)
	case "search":
		return a.search(ctx, args)
	case "product-create":
		return a.productCreate(ctx, args)
	case "product-update":
		return a.productUpdate(ctx, args)
	case "product-delete":
		return a.productDelete(ctx, args)
	case "add":
		return a.add(ctx, args)
	case "remove":
		id, err := parseID(args, 1)
		if err != nil {
			return err
		}
		if err := a.cart.RemoveFromCart(ctx, id); err != nil {
			return err
		}
		return a.showCart()
	case "qty":
		if len(args) != 2 {
			return errUsage
		}
		id, err := parseID(args[:1], 1)
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: quantity must be an integer", errUsage)
		}
		if err := a.cart.UpdateQuantity(ctx, id, n); err != nil {
			return err
		}
		return a.showCart()
	case "clear":
		if err := a.cart.ClearCart(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "cart cleared")
		return nil
	case "cart":
		return a.showCart()
	case "checkout":
		return a.checkout(ctx)
	case "orders":
		return a.orders(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func parseID(args []string, want int) (uint, error) {
	if len(args) != want {
		return 0, errUsage
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", errUsage)
	}
	return uint(id), nil
}

// authed runs call with the session's access token, refreshing it once if
// the backend rejects it.
func (a *app) authed(ctx context.Context, call func(token string) error) error {
	err := a.session.Do(ctx, call)
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		return errNotLoggedIn
	case errors.Is(err, session.ErrExpired):
		return errExpired
	}
	return err
}

type sessionOrders struct{ a *app }

func (o sessionOrders) CreateOrder(ctx context.Context, productID uint, quantity int) (*client.Order, error) {
	var order *client.Order
	err := o.a.session.Do(ctx, func(token string) error {
		var err error
		order, err = o.a.api.CreateOrder(ctx, token, productID, quantity)
		return err
	})
	return order, err
}

func (a *app) authenticate(ctx context.Context, args []string, call func(context.Context, string, string) (bool, error)) error {
	if len(args) != 2 {
		return errUsage
	}
	ok, err := call(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !ok {
		return errLoginRejected
	}
	return a.whoami()
}

func (a *app) whoami() error {
	st := a.session.State()
	if !st.IsAuthenticated {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s (id %d, role %s)\n", st.User.Email, st.User.ID, st.User.Role)
	return nil
}

func printProducts(w io.Writer, items []client.Product) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tDESCRIPTION")
	for _, p := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Description)
	}
	_ = tw.Flush()
}

func (a *app) products(ctx context.Context) error {
	items, err := a.api.Products(ctx, a.session.Token())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "no products available")
		return nil
	}
	printProducts(a.out, items)
	return nil
}

func (a *app) search(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 20, "page size")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	res, err := a.api.Search(ctx, args[0], *page, *size)
	if err != nil {
		return err
	}
	printProducts(a.out, res.Data)
	fmt.Fprintf(a.out, "page %d, %d result(s)\n", res.Meta.Page, res.Meta.Total)
	return nil
}

type productFlags struct {
	fs    *flag.FlagSet
	name  string
	price string
	desc  string
	image string
}

func newProductFlags(cmd string) *productFlags {
	pf := &productFlags{fs: flag.NewFlagSet(cmd, flag.ContinueOnError)}
	pf.fs.StringVar(&pf.name, "name", "", "product name")
	pf.fs.StringVar(&pf.price, "price", "", "price, e.g. 19.99")
	pf.fs.StringVar(&pf.desc, "desc", "", "description")
	pf.fs.StringVar(&pf.image, "image", "", "image URL")
	return pf
}

// input copies only the flags that were given on the command line.
func (pf *productFlags) input() (client.ProductInput, error) {
	var in client.ProductInput
	var err error
	pf.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			in.Name = &pf.name
		case "desc":
			in.Description = &pf.desc
		case "image":
			in.ImageURL = &pf.image
		case "price":
			d, perr := decimal.NewFromString(pf.price)
			if perr != nil {
				err = fmt.Errorf("%w: bad price %q", errUsage, pf.price)
				return
			}
			in.Price = &d
		}
	})
	return in, err
}

func (a *app) productCreate(ctx context.Context, args []string) error {
	pf := newProductFlags("product-create")
	if err := pf.fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	in, err := pf.input()
	if err != nil {
		return err
	}
	if in.Name == nil || in.Price == nil {
		return fmt.Errorf("%w: -name and -price are required", errUsage)
	}

	var p *client.Product
	err = a.authed(ctx, func(token string) error {
		var err error
		p, err = a.api.CreateProduct(ctx, token, in)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created product %d\n", p.ID)
	return nil
}

func (a *app) productUpdate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	id, err := parseID(args[:1], 1)
	if err != nil {
		return err
	}
	pf := newProductFlags("product-update")
	if err := pf.fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	in, err := pf.input()
	if err != nil {
		return err
	}

	var p *client.Product
	err = a.authed(ctx, func(token string) error {
		var err error
		p, err = a.api.UpdateProduct(ctx, token, id, in)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated product %d\n", p.ID)
	return nil
}

func (a *app) productDelete(ctx context.Context, args []string) error {
	id, err := parseID(args, 1)
	if err != nil {
		return err
	}
	err = a.authed(ctx, func(token string) error {
		return a.api.DeleteProduct(ctx, token, id)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted product %d\n", id)
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	id, err := parseID(args, 1)
	if err != nil {
		return err
	}
	p, err := a.api.Product(ctx, id)
	if err != nil {
		return err
	}
	if err := a.cart.AddToCart(ctx, cart.Item{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		ImageURL: p.ImageURL,
	}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "added %s to cart\n", p.Name)
	return a.showCart()
}

func (a *app) showCart() error {
	st := a.cart.State()
	if st.IsEmpty() {
		fmt.Fprintln(a.out, "your cart is empty")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tQTY\tLINE")
	for _, it := range st.Cart {
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", it.ID, it.Name, it.Price.StringFixed(2), it.Quantity, line.StringFixed(2))
	}
	_ = tw.Flush()

	sum := st.Summary()
	fmt.Fprintf(a.out, "items: %d\n", st.TotalItems)
	fmt.Fprintf(a.out, "subtotal: %s\n", sum.Subtotal.StringFixed(2))
	fmt.Fprintf(a.out, "tax (10%%): %s\n", sum.Tax.StringFixed(2))
	fmt.Fprintln(a.out, "shipping: free")
	fmt.Fprintf(a.out, "total: %s\n", sum.Total.StringFixed(2))
	return nil
}

func (a *app) checkout(ctx context.Context) error {
	if !a.session.State().IsAuthenticated {
		return errNotLoggedIn
	}

	res, err := checkout.Checkout(ctx, sessionOrders{a}, a.cart)
	if res != nil {
		for _, o := range res.Orders {
			fmt.Fprintf(a.out, "order %d placed: product %d x%d\n", o.ID, o.ProductID, o.Quantity)
		}
		for _, f := range res.Failed {
			fmt.Fprintf(a.out, "not placed: %s x%d (%v)\n", f.Item.Name, f.Item.Quantity, f.Err)
		}
	}
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			fmt.Fprintln(a.out, "your cart is empty")
			return nil
		}
		if errors.Is(err, session.ErrExpired) {
			return errExpired
		}
		return fmt.Errorf("checkout incomplete, remaining items are still in the cart: %w", err)
	}
	fmt.Fprintln(a.out, "order placed successfully")
	return nil
}

func (a *app) orders(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	all := fs.Bool("all", false, "list every order (admin)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	var list []client.Order
	err := a.authed(ctx, func(token string) error {
		var err error
		if *all {
			list, err = a.api.AllOrders(ctx, token)
		} else {
			list, err = a.api.MyOrders(ctx, token)
		}
		return err
	})
	if err != nil {
		if client.IsStatus(err, 403) {
			return errors.New("admin access required")
		}
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "no orders yet")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tDATE\tPRODUCT\tQTY\tPRICE\tUSER")
	for _, o := range list {
		name, price := "?", "-"
		if o.Product != nil {
			name, price = o.Product.Name, o.Product.Price.StringFixed(2)
		}
		user := ""
		if o.User != nil {
			user = o.User.Email
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", o.ID, o.CreatedAt.Local().Format("2006-01-02 15:04"), name, o.Quantity, price, user)
	}
	return tw.Flush()
}
