package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/storage"
	"github.com/Skotchmaster/storefront/internal/testutil"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/tokens"
)

var testAccessSecret = []byte("access")

func startBackend(t *testing.T) *service.CatalogService {
	t.Helper()
	r := repo.New(testutil.NewDB(t))
	secret := testAccessSecret
	authSvc := &service.AuthService{Repo: r, JWTSecret: secret, RefreshSecret: []byte("refresh"), Events: events.Nop{}}
	catalog := &service.CatalogService{Repo: r, Events: events.Nop{}}

	e := echo.New()
	httpserver.Register(e, &httpserver.Deps{
		DB:             r.DB,
		AuthHandler:    &httpserver.AuthHTTP{Svc: authSvc},
		CatalogHandler: &httpserver.CatalogHTTP{Svc: catalog},
		OrderHandler:   &httpserver.OrderHTTP{Svc: &service.OrderService{Repo: r, Events: events.Nop{}}},
		JWTSecret:      secret,
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	require.NoError(t, authSvc.EnsureAdmin(context.Background(), "admin@shop.test", "adminpass"))

	t.Setenv("SHOPCTL_API", srv.URL)
	t.Setenv("SHOPCTL_STATE", filepath.Join(t.TempDir(), "state.db"))
	return catalog
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args[0], args[1:], &out)
	return out.String(), err
}

func TestShopctl_CartAndCheckout(t *testing.T) {
	catalog := startBackend(t)
	_, err := catalog.CreateProduct(context.Background(), transport.CreateProductRequest{Name: "Mug", Price: decimal.RequireFromString("19.99")})
	require.NoError(t, err)

	out, err := runCmd(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not logged in")

	_, err = runCmd(t, "checkout")
	assert.ErrorIs(t, err, errNotLoggedIn)

	out, err = runCmd(t, "register", "alice@shop.test", "secret1")
	require.NoError(t, err)
	assert.Contains(t, out, "alice@shop.test")

	out, err = runCmd(t, "products")
	require.NoError(t, err)
	assert.Contains(t, out, "Mug")

	_, err = runCmd(t, "add", "1")
	require.NoError(t, err)
	out, err = runCmd(t, "add", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "items: 2")

	out, err = runCmd(t, "qty", "1", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "subtotal: 59.97")
	assert.Contains(t, out, "tax (10%): 6.00")
	assert.Contains(t, out, "total: 65.97")

	out, err = runCmd(t, "checkout")
	require.NoError(t, err)
	assert.Contains(t, out, "order placed successfully")

	out, err = runCmd(t, "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "your cart is empty")

	out, err = runCmd(t, "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "Mug")

	_, err = runCmd(t, "orders", "-all")
	assert.EqualError(t, err, "admin access required")

}

func TestShopctl_AdminProducts(t *testing.T) {
	startBackend(t)

	_, err := runCmd(t, "login", "admin@shop.test", "wrong")
	assert.ErrorIs(t, err, errLoginRejected)

	_, err = runCmd(t, "login", "admin@shop.test", "adminpass")
	require.NoError(t, err)

	out, err := runCmd(t, "product-create", "-name", "Lamp", "-price", "25.00", "-desc", "desk lamp")
	require.NoError(t, err)
	assert.Contains(t, out, "created product 1")

	_, err = runCmd(t, "product-update", "1", "-price", "20")
	require.NoError(t, err)

	out, err = runCmd(t, "search", "lamp")
	require.NoError(t, err)
	assert.Contains(t, out, "20.00")

	_, err = runCmd(t, "product-delete", "1")
	require.NoError(t, err)

	out, err = runCmd(t, "products")
	require.NoError(t, err)
	assert.Contains(t, out, "no products available")

	_, err = runCmd(t, "qty", "x")
	assert.ErrorIs(t, err, errUsage)

	out, err = runCmd(t, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")
}

// editSession rewrites the persisted auth state the way a restart after the
// access token lifetime would find it.
func editSession(t *testing.T, edit func(st *session.State)) session.State {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, os.Getenv("SHOPCTL_STATE"))
	require.NoError(t, err)
	defer store.Close()

	var st session.State
	ok, err := store.Get(ctx, session.StorageKey, &st)
	require.NoError(t, err)
	require.True(t, ok)
	edit(&st)
	require.NoError(t, store.Set(ctx, session.StorageKey, st))
	return st
}

func expiredAccessToken(t *testing.T, u session.State) string {
	t.Helper()
	tok, err := tokens.SignAccessToken(tokens.AccessClaims{
		Role:  u.User.Role,
		Email: u.User.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(u.User.ID), 10),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-20 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-5 * time.Minute)),
		},
	}, testAccessSecret)
	require.NoError(t, err)
	return tok
}

func TestShopctl_ExpiredTokenIsRefreshed(t *testing.T) {
	startBackend(t)

	_, err := runCmd(t, "register", "bob@shop.test", "secret1")
	require.NoError(t, err)

	var expired string
	before := editSession(t, func(st *session.State) {
		require.NotEmpty(t, st.RefreshToken)
		expired = expiredAccessToken(t, *st)
		st.Token = expired
	})

	out, err := runCmd(t, "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "no orders yet")

	after := editSession(t, func(*session.State) {})
	assert.True(t, after.IsAuthenticated)
	assert.NotEqual(t, expired, after.Token)
	assert.NotEqual(t, before.RefreshToken, after.RefreshToken)
}

func TestShopctl_ExpiredSessionLogsOut(t *testing.T) {
	startBackend(t)

	_, err := runCmd(t, "register", "carol@shop.test", "secret1")
	require.NoError(t, err)

	editSession(t, func(st *session.State) {
		st.Token = expiredAccessToken(t, *st)
		st.RefreshToken = "revoked"
	})

	_, err = runCmd(t, "orders")
	assert.ErrorIs(t, err, errExpired)

	out, err := runCmd(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "not logged in")
}
