package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/config"
	"github.com/TemirB/ecommerce-orders/internal/domain"
)

var ErrNacked = errors.New("rabbitmq: publishing nacked by broker")

type Publisher struct {
	ch         Channel
	exchange   string
	routingKey string
	logger     *zap.Logger
	wait       func(ctx context.Context, dc *amqp.DeferredConfirmation) (bool, error)
}

// NewPublisher declares the topology, puts the channel into confirm mode and
// returns a ready publisher.
func NewPublisher(ch Channel, cfg config.RabbitMQ, logger *zap.Logger) (*Publisher, error) {
	if err := DeclareTopology(ch, cfg); err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &Publisher{
		ch:         ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
		wait:       waitConfirm,
	}, nil
}

// waitConfirm blocks until the broker acks or nacks the publishing. A nil
// confirmation means the channel is not in confirm mode.
func waitConfirm(ctx context.Context, dc *amqp.DeferredConfirmation) (bool, error) {
	if dc == nil {
		return true, nil
	}
	return dc.WaitContext(ctx)
}

func (p *Publisher) Publish(ctx context.Context, event domain.OrderPlaced) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", domain.EventOrderPlaced, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.PlacedAt,
		Type:         domain.EventOrderPlacedType,
		Body:         body,
	}
	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, p.routingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	acked, err := p.wait(ctx, dc)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("%w: message %s", ErrNacked, msg.MessageId)
	}

	p.logger.Debug("event published",
		zap.String("exchange", p.exchange),
		zap.String("routing_key", p.routingKey),
		zap.String("message_id", msg.MessageId),
		zap.String("order_id", event.OrderID.String()),
	)
	return nil
}
