package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/client"
)

type fakeOrders struct {
	missing map[uint]bool
	down    bool
	expired bool
	calls   int
	placed  []uint
}

func (f *fakeOrders) CreateOrder(_ context.Context, productID uint, quantity int) (*client.Order, error) {
	f.calls++
	if f.down {
		return nil, fmt.Errorf("%w: connection refused", client.ErrNetwork)
	}
	if f.expired {
		return nil, &client.APIError{Status: 401, Message: "invalid or expired token"}
	}
	if f.missing[productID] {
		return nil, &client.APIError{Status: 404, Message: fmt.Sprintf("Product with ID %d not found", productID)}
	}
	f.placed = append(f.placed, productID)
	return &client.Order{ID: uint(len(f.placed)), ProductID: productID, Quantity: quantity}, nil
}

func fill(t *testing.T, ids ...uint) *cart.Store {
	t.Helper()
	s := cart.NewStore(nil)
	for _, id := range ids {
		require.NoError(t, s.AddToCart(context.Background(), cart.Item{ID: id, Name: fmt.Sprint("p", id), Price: decimal.NewFromInt(1)}))
	}
	return s
}

func TestCheckout_AllLinesClearCart(t *testing.T) {
	s := fill(t, 1, 2, 2)
	api := &fakeOrders{}

	res, err := Checkout(context.Background(), api, s)
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.Equal(t, 2, res.Orders[1].Quantity)
	assert.True(t, s.State().IsEmpty())
	assert.Zero(t, s.State().TotalItems)
}

func TestCheckout_PartialFailureKeepsFailedLines(t *testing.T) {
	s := fill(t, 1, 2, 3)
	api := &fakeOrders{missing: map[uint]bool{2: true}}

	res, err := Checkout(context.Background(), api, s)
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, 404))
	assert.Len(t, res.Orders, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, uint(2), res.Failed[0].Item.ID)

	st := s.State()
	require.Len(t, st.Cart, 1)
	assert.Equal(t, uint(2), st.Cart[0].ID)
}

func TestCheckout_NetworkErrorStops(t *testing.T) {
	s := fill(t, 1, 2)
	res, err := Checkout(context.Background(), &fakeOrders{down: true}, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrNetwork))
	assert.Len(t, res.Failed, 1)
	assert.Len(t, s.State().Cart, 2)
}

func TestCheckout_EmptyCart(t *testing.T) {
	_, err := Checkout(context.Background(), &fakeOrders{}, cart.NewStore(nil))
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_UnauthorizedStops(t *testing.T) {
	s := fill(t, 1, 2, 3)
	api := &fakeOrders{expired: true}

	res, err := Checkout(context.Background(), api, s)
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, 401))
	assert.Equal(t, 1, api.calls)
	assert.Len(t, res.Failed, 1)
	assert.Len(t, s.State().Cart, 3)
}
