package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/config"
	"github.com/TemirB/ecommerce-orders/internal/domain"
	"github.com/TemirB/ecommerce-orders/internal/observability"
)

//go:generate mockgen -source=service.go -destination=service_mock_test.go -package=service

const processedLogLayout = "2006-01-02 15:04:05"

// errInterrupted marks a step that stopped before the order reached a
// terminal state. The order stays Processing and a redelivery resumes it.
var errInterrupted = errors.New("processing interrupted")

type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

type Storage interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
}

// Service drives a placed order through Processing to Completed, or to
// Failed when a step after MarkProcessing goes wrong for good.
type Service struct {
	cache   Cache
	storage Storage
	logger  *zap.Logger
	metrics observability.Metrics

	delay  time.Duration
	logTTL time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewService(cache Cache, storage Storage, cfg config.Worker, logger *zap.Logger, metrics observability.Metrics) *Service {
	return &Service{
		cache:   cache,
		storage: storage,
		logger:  logger,
		metrics: metrics,
		delay:   cfg.ProcessDelay,
		logTTL:  cfg.LogTTL,
		sleep:   sleepContext,
	}
}

func (s *Service) Process(ctx context.Context, orderID uuid.UUID) error {
	_, err := s.ProcessWithStats(ctx, orderID)
	return err
}

// ProcessWithStats returns domain.ErrNotFound untouched so that callers can
// acknowledge events about orders that do not exist, and wraps
// domain.ErrOrderFailed once the order has been marked Failed.
func (s *Service) ProcessWithStats(ctx context.Context, orderID uuid.UUID) (ProcessStats, error) {
	var st ProcessStats
	start := time.Now()

	t0 := time.Now()
	order, err := s.storage.GetByID(ctx, orderID)
	st.DBReadMs = observability.SinceMs(t0)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("Order not found, skipping",
				zap.String("order_id", orderID.String()),
			)
			return st, err
		}
		s.logger.Error("Error while loading order",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
		s.metrics.ObserveProcess(observability.SinceMs(start), false)
		return st, err
	}

	switch order.Status() {
	case domain.StatusPending:
		s.logger.Info("Processing order", zap.String("order_id", orderID.String()))

		if err := order.MarkProcessing(); err != nil {
			return st, err
		}
		t1 := time.Now()
		if err := s.storage.Update(ctx, order); err != nil {
			s.logger.Error("Error while marking order as processing",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
			s.metrics.ObserveProcess(observability.SinceMs(start), false)
			return st, err
		}
		st.DBWriteMs += observability.SinceMs(t1)
	case domain.StatusProcessing:
		s.logger.Info("Resuming interrupted order", zap.String("order_id", orderID.String()))
	default:
		s.logger.Info("Order already handled, skipping",
			zap.String("order_id", orderID.String()),
			zap.String("status", order.Status().String()),
		)
		return st, nil
	}

	if err := s.complete(ctx, order, &st); err != nil {
		s.metrics.ObserveProcess(observability.SinceMs(start), false)
		if interrupted(err) {
			s.logger.Warn("Order processing interrupted, left for redelivery",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
			return st, err
		}
		if ferr := s.fail(ctx, order, err); ferr != nil {
			// still Processing in the store, so a retry resumes it
			return st, err
		}
		return st, fmt.Errorf("%w: %w", domain.ErrOrderFailed, err)
	}

	s.invalidate(ctx, order)

	st.TotalMs = observability.SinceMs(start)
	s.metrics.ObserveProcess(st.TotalMs, true)
	s.logger.Info("Order processed successfully",
		zap.String("order_id", orderID.String()),
		zap.Float64("db_read_ms", st.DBReadMs),
		zap.Float64("db_write_ms", st.DBWriteMs),
		zap.Float64("total_ms", st.TotalMs),
	)
	s.logger.Info("Notification sent", zap.String("order_id", orderID.String()))
	return st, nil
}

func (s *Service) complete(ctx context.Context, order *domain.Order, st *ProcessStats) error {
	if err := s.sleep(ctx, s.delay); err != nil {
		return fmt.Errorf("%w: %w", errInterrupted, err)
	}

	// the transition is applied to order only once it is stored
	done := order.Clone()
	if err := done.MarkCompleted(); err != nil {
		return err
	}

	t0 := time.Now()
	if err := s.storage.Update(ctx, done); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	st.DBWriteMs += observability.SinceMs(t0)
	*order = *done

	processedAt := order.ProcessedAt()
	entry, err := json.Marshal("Processed at " + processedAt.UTC().Format(processedLogLayout))
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, domain.OrderLogKey(order.ID()), entry, s.logTTL); err != nil {
		s.logger.Warn("Can't store processing log",
			zap.String("order_id", order.ID().String()),
			zap.Error(err),
		)
	}
	return nil
}

// fail records the failure on a detached context so that a cancelled
// delivery still leaves the order in a terminal state.
func (s *Service) fail(ctx context.Context, order *domain.Order, cause error) error {
	s.logger.Error("Order processing failed",
		zap.String("order_id", order.ID().String()),
		zap.Error(cause),
	)
	if err := order.MarkFailed(); err != nil {
		s.logger.Error("Can't mark order as failed",
			zap.String("order_id", order.ID().String()),
			zap.Error(err),
		)
		return err
	}

	dctx := context.WithoutCancel(ctx)
	if err := s.storage.Update(dctx, order); err != nil {
		s.logger.Error("Can't persist failed status",
			zap.String("order_id", order.ID().String()),
			zap.Error(err),
		)
		return err
	}
	s.invalidate(dctx, order)
	return nil
}

// interrupted reports whether err comes from a cancelled or expired delivery
// rather than from the order itself.
func interrupted(err error) bool {
	return errors.Is(err, errInterrupted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *Service) invalidate(ctx context.Context, order *domain.Order) {
	if err := s.cache.Remove(ctx, domain.UserOrdersKey(order.UserID())); err != nil {
		s.logger.Warn("Can't invalidate user orders cache",
			zap.String("user_id", order.UserID()),
			zap.Error(err),
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
