package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/domain"
)

// Logging is a sink for local runs without a broker: events are only logged.
type Logging struct {
	logger *zap.Logger
}

func NewLogging(logger *zap.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) Publish(_ context.Context, event domain.OrderPlaced) error {
	l.logger.Info("order placed",
		zap.String("event", domain.EventOrderPlaced),
		zap.String("order_id", event.OrderID.String()),
		zap.String("user_id", event.UserID),
		zap.String("product_id", event.ProductID),
		zap.Int("quantity", event.Quantity),
		zap.String("payment_method", event.PaymentMethod),
		zap.Time("placed_at", event.PlacedAt),
	)
	return nil
}
