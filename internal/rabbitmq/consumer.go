package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/config"
	"github.com/TemirB/ecommerce-orders/internal/pkg/pool"
)

//go:generate mockgen -source=consumer.go -destination=consumer_mock_test.go -package=rabbitmq

var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

type BodyHandler interface {
	Process(ctx context.Context, body []byte) error
}

// Consumer fans deliveries out to a worker pool. Successful deliveries are
// acked, poison messages are dropped and everything else is requeued.
type Consumer struct {
	ch       Channel
	cfg      config.RabbitMQ
	handler  BodyHandler
	workers  int
	poison   func(error) bool
	logger   *zap.Logger
	tag      string
	handleTO time.Duration
}

func NewConsumer(ch Channel, cfg config.RabbitMQ, handler BodyHandler, workers int, poison func(error) bool, logger *zap.Logger) *Consumer {
	if poison == nil {
		poison = func(error) bool { return false }
	}
	return &Consumer{
		ch:       ch,
		cfg:      cfg,
		handler:  handler,
		workers:  workers,
		poison:   poison,
		logger:   logger,
		tag:      "order-worker",
		handleTO: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled or the broker closes the delivery channel.
// In-flight deliveries are finished before it returns.
func (c *Consumer) Run(ctx context.Context) error {
	if err := DeclareTopology(c.ch, c.cfg); err != nil {
		return err
	}
	if err := c.ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := c.ch.ConsumeWithContext(ctx,
		c.cfg.Queue,
		c.tag,
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}

	c.logger.Info("starting rabbitmq consumer",
		zap.String("queue", c.cfg.Queue),
		zap.Int("prefetch", c.cfg.Prefetch),
		zap.Int("workers", c.workers),
	)

	p := pool.New(c.workers)
	defer func() {
		p.Close()
		p.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			if !p.Submit(func() { c.handle(ctx, d) }) {
				_ = d.Nack(false, true)
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.handleTO)
	defer cancel()

	start := time.Now()
	err := c.handler.Process(hctx, d.Body)
	fields := []zap.Field{
		zap.String("message_id", d.MessageId),
		zap.Uint64("delivery_tag", d.DeliveryTag),
		zap.Duration("elapsed", time.Since(start)),
	}

	switch {
	case err == nil:
		if aerr := d.Ack(false); aerr != nil {
			c.logger.Warn("ack failed", append(fields, zap.Error(aerr))...)
			return
		}
		c.logger.Debug("delivery handled", fields...)
	case c.poison(err):
		c.logger.Error("dropping poison message", append(fields, zap.Error(err))...)
		_ = d.Nack(false, false)
	default:
		c.logger.Error("delivery failed, requeueing", append(fields, zap.Error(err))...)
		_ = d.Nack(false, true)
	}
}
