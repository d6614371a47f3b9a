package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/testutil"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/jwthelp"
)

type testEnv struct {
	E       *echo.Echo
	Repo    *repo.GormRepo
	Auth    *service.AuthService
	Catalog *service.CatalogService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	r := repo.New(testutil.NewDB(t))
	rec := &events.Recorder{}
	secret := []byte("access-secret")

	authSvc := &service.AuthService{Repo: r, JWTSecret: secret, RefreshSecret: []byte("refresh-secret"), Events: rec}
	catalogSvc := &service.CatalogService{Repo: r, Events: rec}

	e := echo.New()
	Register(e, &Deps{
		DB:             r.DB,
		AuthHandler:    &AuthHTTP{Svc: authSvc},
		CatalogHandler: &CatalogHTTP{Svc: catalogSvc},
		OrderHandler:   &OrderHTTP{Svc: &service.OrderService{Repo: r, Events: rec}},
		JWTSecret:      secret,
	})
	return &testEnv{E: e, Repo: r, Auth: authSvc, Catalog: catalogSvc}
}

func (env *testEnv) do(t *testing.T, method, path string, body any, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) register(t *testing.T, email string) transport.AuthResponse {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/auth/register", transport.Credentials{Email: email, Password: "secret1"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp transport.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (env *testEnv) admin(t *testing.T) string {
	t.Helper()
	require.NoError(t, env.Auth.EnsureAdmin(context.Background(), "admin@shop.test", "adminpass"))
	rec := env.do(t, http.MethodPost, "/auth/login", transport.Credentials{Email: "admin@shop.test", Password: "adminpass"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp transport.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ADMIN", resp.User.Role)
	return resp.Token
}

func (env *testEnv) product(t *testing.T, name, price string) *models.Product {
	t.Helper()
	p, err := env.Catalog.CreateProduct(context.Background(), transport.CreateProductRequest{
		Name: name, Price: decimal.RequireFromString(price), ImageURL: "/img/" + name + ".png",
	})
	require.NoError(t, err)
	return p
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", nil, "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", nil, "").Code)
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.register(t, "alice@shop.test")
	assert.Equal(t, "alice@shop.test", resp.User.Email)
	assert.Equal(t, "USER", resp.User.Role)
	assert.NotEmpty(t, resp.Token)

	rec := env.do(t, http.MethodPost, "/auth/register", transport.Credentials{Email: "alice@shop.test", Password: "secret1"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/register", transport.Credentials{Email: "not-an-email", Password: "secret1"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", transport.Credentials{Email: "alice@shop.test", Password: "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/login", transport.Credentials{Email: "alice@shop.test", Password: "secret1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var refresh *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == jwthelp.RefreshCookie {
			refresh = ck
		}
	}
	require.NotNil(t, refresh)
	assert.True(t, refresh.HttpOnly)

	rec = env.do(t, http.MethodPost, "/auth/refresh", nil, "", &http.Cookie{Name: jwthelp.RefreshCookie, Value: refresh.Value})
	require.Equal(t, http.StatusOK, rec.Code)
	var tok transport.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	assert.NotEmpty(t, tok.Token)

	rec = env.do(t, http.MethodPost, "/auth/refresh", nil, "", &http.Cookie{Name: jwthelp.RefreshCookie, Value: refresh.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/logout", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProducts_PublicAndAdmin(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "alice@shop.test")
	adminToken := env.admin(t)

	body := map[string]any{"name": "Red Mug", "description": "ceramic", "price": "9.50", "imageUrl": "/img/mug.png"}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/products", body, "").Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPost, "/products", body, user.Token).Code)

	rec := env.do(t, http.MethodPost, "/products", body, adminToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Red Mug", created.Name)

	rec = env.do(t, http.MethodGet, "/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "/img/mug.png", list[0].ImageURL)

	rec = env.do(t, http.MethodGet, "/products/search?q=mug", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page transport.ProductPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.EqualValues(t, 1, page.Meta.Total)

	rec = env.do(t, http.MethodGet, "/products/search?q=mug&page=922337203685477581&size=20", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var far transport.ProductPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &far))
	assert.Empty(t, far.Data)
	assert.Less(t, far.Meta.Page, 922337203685477581)
	assert.True(t, far.Meta.HasPrev)
	assert.False(t, far.Meta.HasNext)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/products/search", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/products/abc", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/products/999", nil, "").Code)

	rec = env.do(t, http.MethodPatch, "/products/1", map[string]any{"price": "12.00"}, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var patched models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, "12", patched.Price.String())
	assert.Equal(t, "Red Mug", patched.Name)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/products/1", nil, adminToken).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/products/1", nil, adminToken).Code)
}

func TestOrders(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@shop.test")
	bob := env.register(t, "bob@shop.test")
	adminToken := env.admin(t)
	mug := env.product(t, "mug", "9.50")

	rec := env.do(t, http.MethodPost, "/orders", map[string]any{"productId": mug.ID, "quantity": 1}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/orders", map[string]any{"productId": 999, "quantity": 1}, alice.Token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Product with ID 999 not found")

	rec = env.do(t, http.MethodPost, "/orders", map[string]any{"productId": mug.ID, "quantity": 0}, alice.Token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/orders", map[string]any{"productId": mug.ID, "quantity": 2}, alice.Token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created transport.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 2, created.Quantity)
	assert.Equal(t, alice.User.ID, created.UserID)
	require.NotNil(t, created.Product)
	assert.Equal(t, "mug", created.Product.Name)
	assert.Equal(t, "/img/mug.png", created.Product.ImageURL)

	rec = env.do(t, http.MethodPost, "/orders", map[string]any{"productId": mug.ID, "quantity": 1}, bob.Token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/orders/my", nil, alice.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []transport.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, created.ID, mine[0].ID)

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/orders", nil, alice.Token).Code)

	rec = env.do(t, http.MethodGet, "/orders", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []transport.OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 2)
	require.NotNil(t, all[0].User)
	assert.Equal(t, "bob@shop.test", all[0].User.Email)
}
