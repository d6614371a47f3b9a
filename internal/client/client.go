package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/pkg/jwthelp"
)

var ErrNetwork = errors.New("network error")

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
	// RefreshToken comes from the refreshToken cookie, not the body.
	RefreshToken string `json:"-"`
}

type Tokens struct {
	Token        string
	RefreshToken string
}

type Product struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type ProductInput struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	ImageURL    *string          `json:"imageUrl,omitempty"`
}

type OrderProduct struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl"`
}

type OrderUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

type Order struct {
	ID        uint          `json:"id"`
	UserID    uint          `json:"userId"`
	ProductID uint          `json:"productId"`
	Quantity  int           `json:"quantity"`
	CreatedAt time.Time     `json:"createdAt"`
	Product   *OrderProduct `json:"product,omitempty"`
	User      *OrderUser    `json:"user,omitempty"`
}

type SearchResult struct {
	Data []Product `json:"data"`
	Meta struct {
		Page    int   `json:"page"`
		Size    int   `json:"size"`
		Total   int64 `json:"total"`
		HasNext bool  `json:"has_next"`
	} `json:"meta"`
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	_, err := c.exchange(ctx, method, path, token, nil, in, out)
	return err
}

// exchange is do with request cookies, returning the cookies set by the response.
func (c *Client) exchange(ctx context.Context, method, path, token string, cookies []*http.Cookie, in, out any) ([]*http.Cookie, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&msg) == nil {
			apiErr.Message = msg.Message
		}
		return nil, apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.Cookies(), nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.Cookies(), nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func refreshCookie(cookies []*http.Cookie) string {
	for _, ck := range cookies {
		if ck.Name == jwthelp.RefreshCookie {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*AuthResponse, error) {
	var out AuthResponse
	cookies, err := c.exchange(ctx, http.MethodPost, path, "", nil, credentials{email, password}, &out)
	if err != nil {
		return nil, err
	}
	out.RefreshToken = refreshCookie(cookies)
	return &out, nil
}

func (c *Client) Register(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", email, password)
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", email, password)
}

// Refresh trades a refresh token for a new access token. The server rotates
// the refresh token, so the returned one replaces the old.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	var out struct {
		Token string `json:"token"`
	}
	ck := &http.Cookie{Name: jwthelp.RefreshCookie, Value: refreshToken}
	cookies, err := c.exchange(ctx, http.MethodPost, "/auth/refresh", "", []*http.Cookie{ck}, nil, &out)
	if err != nil {
		return nil, err
	}
	next := refreshCookie(cookies)
	if out.Token == "" || next == "" {
		return nil, errors.New("refresh response without tokens")
	}
	return &Tokens{Token: out.Token, RefreshToken: next}, nil
}

// Logout revokes the refresh token on the server.
func (c *Client) Logout(ctx context.Context, refreshToken string) error {
	var cookies []*http.Cookie
	if refreshToken != "" {
		cookies = append(cookies, &http.Cookie{Name: jwthelp.RefreshCookie, Value: refreshToken})
	}
	_, err := c.exchange(ctx, http.MethodPost, "/auth/logout", "", cookies, nil, nil)
	return err
}

func (c *Client) Products(ctx context.Context, token string) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/products", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Product(ctx context.Context, id uint) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodGet, "/products/"+strconv.FormatUint(uint64(id), 10), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Search(ctx context.Context, q string, page, size int) (*SearchResult, error) {
	v := url.Values{}
	v.Set("q", q)
	v.Set("page", strconv.Itoa(page))
	v.Set("size", strconv.Itoa(size))

	var out SearchResult
	if err := c.do(ctx, http.MethodGet, "/products/search?"+v.Encode(), "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateProduct(ctx context.Context, token string, in ProductInput) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPost, "/products", token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateProduct(ctx context.Context, token string, id uint, in ProductInput) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodPatch, "/products/"+strconv.FormatUint(uint64(id), 10), token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteProduct(ctx context.Context, token string, id uint) error {
	return c.do(ctx, http.MethodDelete, "/products/"+strconv.FormatUint(uint64(id), 10), token, nil, nil)
}

func (c *Client) CreateOrder(ctx context.Context, token string, productID uint, quantity int) (*Order, error) {
	in := struct {
		ProductID uint `json:"productId"`
		Quantity  int  `json:"quantity"`
	}{productID, quantity}

	var out Order
	if err := c.do(ctx, http.MethodPost, "/orders", token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) MyOrders(ctx context.Context, token string) ([]Order, error) {
	var out []Order
	if err := c.do(ctx, http.MethodGet, "/orders/my", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AllOrders(ctx context.Context, token string) ([]Order, error) {
	var out []Order
	if err := c.do(ctx, http.MethodGet, "/orders", token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
