package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
)

type Credentials struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type AuthResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type CreateProductRequest struct {
	Name        string          `json:"name"        validate:"required,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"    validate:"omitempty,max=1024"`
}

type PatchProductRequest struct {
	Name        *string          `json:"name"        validate:"omitempty,max=255"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"imageUrl"    validate:"omitempty,max=1024"`
}

type CreateOrderRequest struct {
	ProductID uint `json:"productId" validate:"required,gt=0"`
	Quantity  int  `json:"quantity"  validate:"required,gte=1"`
}

type ProductProjection struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl"`
}

type UserProjection struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

type OrderResponse struct {
	ID        uint               `json:"id"`
	UserID    uint               `json:"userId"`
	ProductID uint               `json:"productId"`
	Quantity  int                `json:"quantity"`
	CreatedAt time.Time          `json:"createdAt"`
	Product   *ProductProjection `json:"product,omitempty"`
	User      *UserProjection    `json:"user,omitempty"`
}

type PageMeta struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"total_pages"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

type ProductPage struct {
	Data []models.Product `json:"data"`
	Meta PageMeta         `json:"meta"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Role: u.Role}
}

func NewProductProjection(p *models.Product) *ProductProjection {
	if p == nil {
		return nil
	}
	return &ProductProjection{ID: p.ID, Name: p.Name, Price: p.Price, ImageURL: p.ImageURL}
}

func NewOrderResponse(o *models.Order) OrderResponse {
	out := OrderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
		CreatedAt: o.CreatedAt,
		Product:   NewProductProjection(o.Product),
	}
	if o.User != nil {
		out.User = &UserProjection{ID: o.User.ID, Email: o.User.Email}
	}
	return out
}

func NewOrderResponses(orders []models.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, NewOrderResponse(&orders[i]))
	}
	return out
}
