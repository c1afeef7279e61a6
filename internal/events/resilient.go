package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/config"
	"github.com/TemirB/ecommerce-orders/internal/domain"
	"github.com/TemirB/ecommerce-orders/internal/observability"
	"github.com/TemirB/ecommerce-orders/internal/pkg/breaker"
	"github.com/TemirB/ecommerce-orders/internal/pkg/retry"
)

//go:generate mockgen -source=resilient.go -destination=resilient_mock_test.go -package=events

var ErrCircuitOpen = errors.New("event sink circuit open")

type publisher interface {
	Publish(ctx context.Context, event domain.OrderPlaced) error
}

type brk interface {
	Allow() error
	Success()
	Failure()
}

// Resilient wraps a sink with retries and a circuit breaker. A whole retry
// sequence counts as one outcome for the breaker.
type Resilient struct {
	next        publisher
	sink        string
	breaker     brk
	retryPolicy config.Retry
	metrics     observability.Metrics
	logger      *zap.Logger
}

func NewResilient(
	next publisher,
	sink string,
	b *breaker.Breaker,
	retryPolicy config.Retry,
	metrics observability.Metrics,
	logger *zap.Logger,
) *Resilient {
	return &Resilient{
		next:        next,
		sink:        sink,
		breaker:     b,
		retryPolicy: retryPolicy,
		metrics:     metrics,
		logger:      logger,
	}
}

func (r *Resilient) Publish(ctx context.Context, event domain.OrderPlaced) error {
	start := time.Now()

	if err := r.breaker.Allow(); err != nil {
		r.logger.Warn("event sink circuit is open, event not sent",
			zap.String("sink", r.sink),
			zap.String("order_id", event.OrderID.String()),
		)
		r.metrics.ObservePublish(r.sink, observability.SinceMs(start), false)
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}

	attempt := 0
	err := retry.Do(ctx, r.retryPolicy, func() error {
		attempt++
		if err := r.next.Publish(ctx, event); err != nil {
			r.logger.Debug("publish attempt failed",
				zap.String("sink", r.sink),
				zap.String("order_id", event.OrderID.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return nil
	})
	r.metrics.ObservePublish(r.sink, observability.SinceMs(start), err == nil)

	if err != nil {
		r.breaker.Failure()
		r.logger.Error("publish failed",
			zap.String("sink", r.sink),
			zap.String("order_id", event.OrderID.String()),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return err
	}

	r.breaker.Success()
	return nil
}
