package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/client"
)

var ErrEmptyCart = errors.New("cart is empty")

// OrderAPI places a single order on behalf of the signed-in user.
type OrderAPI interface {
	CreateOrder(ctx context.Context, productID uint, quantity int) (*client.Order, error)
}

// LineError is a cart line the backend refused or could not be reached for.
type LineError struct {
	Item cart.Item
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("order for %q (id %d): %v", e.Item.Name, e.Item.ID, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

type Result struct {
	Orders []client.Order
	Failed []LineError
}

// Checkout places one order per cart line. Placed lines are removed from the
// cart. The cart is cleared only when every line succeeded; otherwise the
// failed lines stay in the cart and the returned error joins their causes.
func Checkout(ctx context.Context, api OrderAPI, store *cart.Store) (*Result, error) {
	st := store.State()
	if st.IsEmpty() {
		return nil, ErrEmptyCart
	}

	res := &Result{}
	for _, it := range st.Cart {
		order, err := api.CreateOrder(ctx, it.ID, it.Quantity)
		if err != nil {
			res.Failed = append(res.Failed, LineError{Item: it, Err: err})
			if stopsCheckout(ctx, err) {
				break
			}
			continue
		}
		res.Orders = append(res.Orders, *order)
		if err := store.RemoveFromCart(ctx, it.ID); err != nil {
			return res, err
		}
	}

	if len(res.Failed) == 0 {
		return res, store.ClearCart(ctx)
	}

	errs := make([]error, 0, len(res.Failed))
	for i := range res.Failed {
		errs = append(errs, &res.Failed[i])
	}
	return res, errors.Join(errs...)
}

// stopsCheckout reports errors that would fail every remaining line too.
// Only a backend refusal of this particular line lets checkout go on.
func stopsCheckout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	return apiErr.Status == http.StatusUnauthorized
}
