package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced     = "order.placed"
	EventOrderPlacedType = "OrderPlaced"
)

type OrderPlaced struct {
	OrderID       uuid.UUID `json:"orderId"`
	UserID        string    `json:"userId"`
	ProductID     string    `json:"productId"`
	Quantity      int       `json:"quantity"`
	PaymentMethod string    `json:"paymentMethod"`
	PlacedAt      time.Time `json:"placedAt"`
}

// NewOrderPlaced stamps the event with the order's clock.
func NewOrderPlaced(o *Order) OrderPlaced {
	return OrderPlaced{
		OrderID:       o.ID(),
		UserID:        o.UserID(),
		ProductID:     o.ProductID(),
		Quantity:      o.Quantity(),
		PaymentMethod: o.PaymentMethod().String(),
		PlacedAt:      o.clock(),
	}
}

type OrderSummary struct {
	OrderID       uuid.UUID  `json:"orderId"`
	ProductID     string     `json:"productId"`
	Quantity      int        `json:"quantity"`
	PaymentMethod string     `json:"paymentMethod"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
}
