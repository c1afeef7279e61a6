package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/application"
	"github.com/TemirB/ecommerce-orders/internal/domain"
	"github.com/TemirB/ecommerce-orders/internal/observability"
	"github.com/TemirB/ecommerce-orders/internal/telemetry"
)

//go:generate mockgen -source=create_order.go -destination=create_order_mock_test.go -package=command

const msgCreateFailed = "An error occurred while creating the order"

type Storage interface {
	Add(ctx context.Context, order *domain.Order) error
}

type Cache interface {
	Remove(ctx context.Context, key string) error
}

type Publisher interface {
	Publish(ctx context.Context, event domain.OrderPlaced) error
}

type CreateOrder struct {
	UserID        string `json:"userId"`
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	PaymentMethod string `json:"paymentMethod"`
}

type CreateOrderResult struct {
	OrderID   uuid.UUID `json:"orderId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateOrderHandler struct {
	storage   Storage
	cache     Cache
	publisher Publisher
	logger    *zap.Logger
	metrics   observability.Metrics

	postCommitTimeout time.Duration
	orderOpts         []domain.Option
}

func NewCreateOrderHandler(
	storage Storage,
	cache Cache,
	publisher Publisher,
	postCommitTimeout time.Duration,
	logger *zap.Logger,
	metrics observability.Metrics,
	orderOpts ...domain.Option,
) *CreateOrderHandler {
	return &CreateOrderHandler{
		storage:           storage,
		cache:             cache,
		publisher:         publisher,
		logger:            logger,
		metrics:           metrics,
		postCommitTimeout: postCommitTimeout,
		orderOpts:         orderOpts,
	}
}

// Validate checks the raw command and returns the parsed payment method.
func Validate(cmd CreateOrder) (domain.PaymentMethod, *domain.ValidationError) {
	verr := &domain.ValidationError{}
	if strings.TrimSpace(cmd.UserID) == "" {
		verr.Add("User ID is required")
	}
	if strings.TrimSpace(cmd.ProductID) == "" {
		verr.Add("Product ID is required")
	}
	if cmd.Quantity <= 0 {
		verr.Add("Quantity must be greater than zero")
	}
	method, err := domain.ParsePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		verr.Add(domain.PaymentMethodRule)
	}
	if verr.HasErrors() {
		return 0, verr
	}
	return method, nil
}

// Handle persists the order, drops the user's cached order list and
// publishes OrderPlaced. Nothing runs after a failed insert, and a failed
// publish is reported without undoing the insert.
func (h *CreateOrderHandler) Handle(ctx context.Context, cmd CreateOrder) (res CreateOrderResult, err error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "orders.create")
	defer func() {
		h.metrics.ObserveCreate(observability.SinceMs(start), err == nil)
		if err != nil {
			telemetry.RecordSpanError(span, err)
		} else {
			telemetry.SetSpanSuccess(span)
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("user.id", cmd.UserID))

	method, verr := Validate(cmd)
	if verr != nil {
		h.logger.Info("Create order rejected",
			zap.String("user_id", cmd.UserID),
			zap.Strings("violations", verr.Messages),
		)
		return res, application.Validation(verr.Error())
	}

	order, err := domain.NewOrder(cmd.UserID, cmd.ProductID, cmd.Quantity, method, h.orderOpts...)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return res, application.Validation(ve.Error())
		}
		return res, application.Validation(err.Error())
	}
	span.SetAttributes(attribute.String("order.id", order.ID().String()))

	t0 := time.Now()
	if err := h.storage.Add(ctx, order); err != nil {
		h.logger.Error("Error while saving order",
			zap.String("order_id", order.ID().String()),
			zap.String("user_id", order.UserID()),
			zap.Error(err),
		)
		return res, application.Infrastructure(msgCreateFailed, err)
	}
	dbMs := observability.SinceMs(t0)

	if ctx.Err() != nil {
		h.logger.Warn("request cancelled after order was persisted",
			zap.String("order_id", order.ID().String()),
			zap.Error(ctx.Err()),
		)
	}
	pctx, cancel := h.postCommitContext(ctx)
	defer cancel()

	if err := h.cache.Remove(pctx, domain.UserOrdersKey(order.UserID())); err != nil {
		h.logger.Warn("Can't invalidate user orders cache",
			zap.String("user_id", order.UserID()),
			zap.Error(err),
		)
	}

	event := domain.NewOrderPlaced(order)
	if err := h.publisher.Publish(pctx, event); err != nil {
		h.logger.Error("Error while publishing order placed event",
			zap.String("order_id", order.ID().String()),
			zap.Error(err),
		)
		return res, application.Infrastructure(msgCreateFailed, fmt.Errorf("%w: %w", domain.ErrPublish, err))
	}

	h.logger.Info("Order created",
		zap.String("order_id", order.ID().String()),
		zap.String("user_id", order.UserID()),
		zap.Float64("db_write_ms", dbMs),
	)

	return CreateOrderResult{
		OrderID:   order.ID(),
		Status:    order.Status().String(),
		CreatedAt: order.CreatedAt(),
	}, nil
}

// postCommitContext detaches the steps that follow a successful insert from
// the caller's cancellation, bounded by postCommitTimeout.
func (h *CreateOrderHandler) postCommitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if h.postCommitTimeout <= 0 {
		return detached, func() {}
	}
	return context.WithTimeout(detached, h.postCommitTimeout)
}
