package query

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/TemirB/ecommerce-orders/internal/application"
	"github.com/TemirB/ecommerce-orders/internal/domain"
	"github.com/TemirB/ecommerce-orders/internal/observability"
	"github.com/TemirB/ecommerce-orders/internal/telemetry"
)

//go:generate mockgen -source=get_user_orders.go -destination=get_user_orders_mock_test.go -package=query

const (
	UserOrdersTTL = 2 * time.Minute

	// loadTimeout bounds a store read shared by several callers. The read is
	// detached from any single caller so one disconnect can't fail the rest.
	loadTimeout = 10 * time.Second

	msgRetrieveFailed = "An error occurred while retrieving orders"
)

type Storage interface {
	GetByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	RecentUserIDs(ctx context.Context, limit int) ([]string, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// GetUserOrdersHandler serves a user's order history cache-aside. Concurrent
// misses on one key share a single store read.
type GetUserOrdersHandler struct {
	storage Storage
	cache   Cache
	logger  *zap.Logger
	metrics observability.Metrics
	group   singleflight.Group
}

func NewGetUserOrdersHandler(storage Storage, cache Cache, logger *zap.Logger, metrics observability.Metrics) *GetUserOrdersHandler {
	return &GetUserOrdersHandler{
		storage: storage,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
	}
}

type loaded struct {
	summaries []domain.OrderSummary
	dbMs      float64
}

func (h *GetUserOrdersHandler) Handle(ctx context.Context, userID string) ([]domain.OrderSummary, LookupStats, error) {
	var st LookupStats

	if strings.TrimSpace(userID) == "" {
		return nil, st, application.Validation("User ID is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "orders.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	key := domain.UserOrdersKey(userID)

	// Try cache
	tCacheStart := time.Now()
	if summaries, ok := h.fromCache(ctx, key); ok {
		st.Source = SourceCache
		st.CacheMs = observability.SinceMs(tCacheStart)
		h.metrics.IncCacheHit()
		h.metrics.ObserveLookup(string(st.Source), st.CacheMs, 0)
		span.SetAttributes(attribute.String("lookup.source", string(st.Source)))
		telemetry.SetSpanSuccess(span)

		h.logger.Info("Orders fetched from cache",
			zap.String("user_id", userID),
			zap.Int("count", len(summaries)),
			zap.Float64("cache_ms", st.CacheMs),
		)
		return summaries, st, nil
	}

	// Try DB
	h.metrics.IncCacheMiss()
	st.CacheMs = observability.SinceMs(tCacheStart)

	ch := h.group.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return h.load(lctx, userID)
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		r = singleflight.Result{Err: ctx.Err()}
	}
	v, err, shared := r.Val, r.Err, r.Shared
	if err != nil {
		h.logger.Error("Can't load orders",
			zap.String("user_id", userID),
			zap.Error(err),
			zap.Float64("cache_ms", st.CacheMs),
		)
		telemetry.RecordSpanError(span, err)
		return nil, st, application.Infrastructure(msgRetrieveFailed, err)
	}
	res := v.(loaded)

	st.Source = SourceDB
	st.DBMs = res.dbMs

	h.metrics.ObserveLookup(string(st.Source), st.CacheMs, st.DBMs)
	span.SetAttributes(attribute.String("lookup.source", string(st.Source)))
	telemetry.SetSpanSuccess(span)
	h.logger.Info("Orders fetched from DB",
		zap.String("user_id", userID),
		zap.Int("count", len(res.summaries)),
		zap.Bool("shared", shared),
		zap.Float64("cache_ms", st.CacheMs),
		zap.Float64("db_ms", st.DBMs),
	)

	out := make([]domain.OrderSummary, len(res.summaries))
	copy(out, res.summaries)
	return out, st, nil
}

// Warm preloads the cache for the owners of the most recent orders.
func (h *GetUserOrdersHandler) Warm(ctx context.Context, limit int) error {
	ids, err := h.storage.RecentUserIDs(ctx, limit)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := h.load(ctx, id); err != nil {
			return err
		}
	}
	h.logger.Info("Cache warmed", zap.Int("users", len(ids)))
	return nil
}

func (h *GetUserOrdersHandler) fromCache(ctx context.Context, key string) ([]domain.OrderSummary, bool) {
	raw, ok, err := h.cache.Get(ctx, key)
	if err != nil {
		h.logger.Warn("Cache read failed, falling back to store", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var summaries []domain.OrderSummary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		h.logger.Warn("Cached orders are unreadable, falling back to store", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if summaries == nil {
		summaries = []domain.OrderSummary{}
	}
	return summaries, true
}

func (h *GetUserOrdersHandler) load(ctx context.Context, userID string) (loaded, error) {
	t0 := time.Now()
	orders, err := h.storage.GetByUserID(ctx, userID)
	if err != nil {
		return loaded{}, err
	}
	res := loaded{
		summaries: make([]domain.OrderSummary, 0, len(orders)),
		dbMs:      observability.SinceMs(t0),
	}
	for _, o := range orders {
		res.summaries = append(res.summaries, o.Summary())
	}

	key := domain.UserOrdersKey(userID)
	body, err := json.Marshal(res.summaries)
	if err != nil {
		h.logger.Warn("Can't encode orders for cache", zap.String("key", key), zap.Error(err))
		return res, nil
	}
	if err := h.cache.Set(ctx, key, body, UserOrdersTTL); err != nil {
		h.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return res, nil
}
