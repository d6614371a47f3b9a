package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicUsers    = "user_events"
	TopicProducts = "product_events"
	TopicOrders   = "order_events"
)

const (
	TypeUserRegistered = "user_registered"
	TypeProductCreated = "product_created"
	TypeProductUpdated = "product_updated"
	TypeProductDeleted = "product_deleted"
	TypeOrderCreated   = "order_created"
)

// Envelope is the common wrapper for every published event.
type Envelope[T any] struct {
	Type         string    `json:"type"`
	EventID      string    `json:"eventId"`
	Producer     string    `json:"producer"`
	PartitionKey string    `json:"partitionKey"`
	OccurredAt   time.Time `json:"occurredAt"`
	Payload      T         `json:"payload"`
}

func NewEnvelope[T any](typ, producer, key string, payload T) Envelope[T] {
	return Envelope[T]{
		Type:         typ,
		EventID:      uuid.NewString(),
		Producer:     producer,
		PartitionKey: key,
		OccurredAt:   time.Now().UTC(),
		Payload:      payload,
	}
}

type UserRegistered struct {
	UserID uint   `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type ProductChanged struct {
	ProductID uint   `json:"productId"`
	Name      string `json:"name,omitempty"`
	Price     string `json:"price,omitempty"`
}

type OrderCreated struct {
	OrderID   uint      `json:"orderId"`
	UserID    uint      `json:"userId"`
	ProductID uint      `json:"productId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}
