package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	userOrdersPrefix = "user_orders_"
	orderLogPrefix   = "order_log_"
)

// UserOrdersKey is the cache key holding a user's order history.
func UserOrdersKey(userID string) string { return userOrdersPrefix + userID }

// OrderLogKey is the cache key holding the processing log of one order.
func OrderLogKey(id uuid.UUID) string { return orderLogPrefix + id.String() }

type OrderRepository interface {
	Add(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// GetByUserID returns orders newest first.
	GetByUserID(ctx context.Context, userID string) ([]*Order, error)
	Update(ctx context.Context, order *Order) error
}

// Cache stores encoded values. A miss is reported with ok == false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	RemoveByPattern(ctx context.Context, pattern string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event OrderPlaced) error
}
