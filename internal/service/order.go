package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/repo"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

type OrderService struct {
	Repo     *repo.GormRepo
	Events   events.Publisher
	Producer string
}

// CreateOrder places a single-product order for userID. No stock is reserved.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, req transport.CreateOrderRequest) (*transport.OrderResponse, error) {
	l := logging.FromContext(ctx).With("svc", "order.create", "user_id", userID)

	if req.ProductID == 0 {
		return nil, fmt.Errorf("%w: productId required", ErrValidation)
	}
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be > 0", ErrValidation)
	}

	product, err := s.Repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("create_order_error", "status", 404, "reason", "product not found", "product_id", req.ProductID)
			return nil, fmt.Errorf("%w: Product with ID %d not found", ErrNotFound, req.ProductID)
		}
		return nil, err
	}

	order := &models.Order{
		UserID:    userID,
		ProductID: product.ID,
		Quantity:  req.Quantity,
	}
	if err := s.Repo.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, fmt.Errorf("%w: Product with ID %d not found", ErrNotFound, req.ProductID)
		}
		return nil, err
	}
	order.Product = product

	s.publish(ctx, order)

	resp := transport.NewOrderResponse(order)
	return &resp, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID uint) ([]transport.OrderResponse, error) {
	orders, err := s.Repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return transport.NewOrderResponses(orders), nil
}

func (s *OrderService) ListAll(ctx context.Context) ([]transport.OrderResponse, error) {
	orders, err := s.Repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	return transport.NewOrderResponses(orders), nil
}

func (s *OrderService) publish(ctx context.Context, o *models.Order) {
	if s.Events == nil {
		return
	}
	key := strconv.FormatUint(uint64(o.UserID), 10)
	ev := events.NewEnvelope(events.TypeOrderCreated, s.Producer, key, events.OrderCreated{
		OrderID:   o.ID,
		UserID:    o.UserID,
		ProductID: o.ProductID,
		Quantity:  o.Quantity,
		CreatedAt: o.CreatedAt,
	})
	if err := s.Events.Publish(ctx, events.TopicOrders, key, ev); err != nil {
		logging.FromContext(ctx).Warn("publish_failed", "topic", events.TopicOrders, "type", ev.Type, "order_id", o.ID, "error", err)
	}
}
