package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/domain"
)

//go:generate mockgen -source=publisher.go -destination=publisher_mock_test.go -package=kafka

const HeaderEventType = "event-type"

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends OrderPlaced events keyed by order id so that every event of
// one order lands on the same partition.
type Publisher struct {
	writer Writer
	logger *zap.Logger
}

func NewWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewPublisher(writer Writer, logger *zap.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event domain.OrderPlaced) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", domain.EventOrderPlaced, err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.OrderID.String()),
		Value: body,
		Time:  event.PlacedAt,
		Headers: []kafkago.Header{
			{Key: HeaderEventType, Value: []byte(domain.EventOrderPlaced)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}

	p.logger.Debug("event published",
		zap.String("event", domain.EventOrderPlaced),
		zap.String("order_id", event.OrderID.String()),
		zap.Int("value_bytes", len(body)),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
