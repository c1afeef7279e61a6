package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/config"
	"github.com/TemirB/ecommerce-orders/internal/domain"
	"github.com/TemirB/ecommerce-orders/internal/pkg/retry"
)

//go:generate mockgen -source=handler.go -destination=handler_mock_test.go -package=handler

var (
	ErrBadJSON     = errors.New("bad json")
	ErrProcess     = errors.New("order processing failed")
	ErrCircuitOpen = errors.New("circuit breaker open")
)

type Service interface {
	Process(ctx context.Context, orderID uuid.UUID) error
}

type brk interface {
	Allow() error
	Success()
	Failure()
}

type Handler struct {
	service     Service
	breaker     brk
	logger      *zap.Logger
	retryPolicy config.Retry
}

func NewHandler(service Service, brk brk, retryPolicy config.Retry, logger *zap.Logger) *Handler {
	return &Handler{
		service:     service,
		breaker:     brk,
		logger:      logger,
		retryPolicy: retryPolicy,
	}
}

// IsPoison reports whether redelivering the message can never succeed.
func IsPoison(err error) bool {
	return errors.Is(err, ErrBadJSON) || errors.Is(err, domain.ErrOrderFailed)
}

// Handle is called by the Kafka consumer for a single message. The consumer
// commits the offset itself after a nil return.
func (h *Handler) Handle(ctx context.Context, message kafkago.Message) error {
	return h.process(ctx, message.Value,
		zap.Int("partition", message.Partition),
		zap.Int64("offset", message.Offset),
	)
}

// Process handles a raw event body, as delivered by RabbitMQ.
func (h *Handler) Process(ctx context.Context, body []byte) error {
	return h.process(ctx, body)
}

func (h *Handler) process(ctx context.Context, body []byte, fields ...zap.Field) error {
	if err := h.breaker.Allow(); err != nil {
		h.logger.Warn("circuit breaker is open", append(fields, zap.Error(err))...)
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	var event domain.OrderPlaced
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("bad json format", append(fields, zap.Error(err))...)
		h.breaker.Failure()
		return ErrBadJSON
	}
	if event.OrderID == uuid.Nil {
		h.logger.Error("missing orderId", fields...)
		h.breaker.Failure()
		return ErrBadJSON
	}
	fields = append(fields, zap.String("order_id", event.OrderID.String()))

	err := retry.Do(ctx, h.retryPolicy, func() error {
		err := h.service.Process(ctx, event.OrderID)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrOrderFailed) {
			return retry.Permanent(err)
		}
		return err
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.breaker.Success()
		h.logger.Warn("event for unknown order acknowledged", fields...)
		return nil
	case err != nil:
		h.logger.Error("processing failed after retries", append(fields, zap.Error(err))...)
		h.breaker.Failure()
		return fmt.Errorf("%w: %w", ErrProcess, err)
	}

	h.breaker.Success()
	h.logger.Info("successfully processed order", append(fields, zap.Int("value_bytes", len(body)))...)
	return nil
}
