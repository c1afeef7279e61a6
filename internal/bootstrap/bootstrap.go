// Package bootstrap opens the backends picked by configuration and hands
// them to the binaries as domain interfaces.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TemirB/ecommerce-orders/internal/cache"
	"github.com/TemirB/ecommerce-orders/internal/config"
	"github.com/TemirB/ecommerce-orders/internal/database"
	"github.com/TemirB/ecommerce-orders/internal/domain"
	"github.com/TemirB/ecommerce-orders/internal/events"
	"github.com/TemirB/ecommerce-orders/internal/kafka"
	"github.com/TemirB/ecommerce-orders/internal/observability"
	"github.com/TemirB/ecommerce-orders/internal/pkg/breaker"
	"github.com/TemirB/ecommerce-orders/internal/rabbitmq"
)

const (
	MetricsInmem      = "inmem"
	MetricsPrometheus = "prometheus"

	inmemWindow = 200
)

type Store interface {
	domain.OrderRepository
	RecentUserIDs(ctx context.Context, limit int) ([]string, error)
}

func noop() {}

// OpenStore connects the order store. With Postgres the embedded migrations
// run first when enabled.
func OpenStore(ctx context.Context, cfg config.Config, log *zap.Logger) (Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		log.Info("using in-memory order store")
		return database.NewMemory(), noop, nil
	case config.StorePostgres:
		dsn := cfg.DSN()
		if cfg.Pg.Migrate {
			if err := database.RunMigrations(dsn); err != nil {
				return nil, nil, fmt.Errorf("run migrations: %w", err)
			}
			log.Info("database migrations applied")
		}
		pool, err := database.Connect(ctx, dsn, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to postgres", zap.String("host", cfg.Pg.Host), zap.String("db", cfg.Pg.DB))
		return database.New(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store)
	}
}

func OpenCache(ctx context.Context, cfg config.Config, log *zap.Logger) (domain.Cache, func(), error) {
	switch cfg.Cache.Driver {
	case config.CacheMemory:
		c, err := cache.NewMemory(cfg.Cache.Capacity)
		if err != nil {
			return nil, nil, err
		}
		return c, noop, nil
	case config.CacheRedis:
		client, err := cache.Connect(ctx, cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to redis", zap.String("addr", cfg.Cache.Redis.Addr))
		return cache.NewRedis(client, log), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

// OpenSink connects the configured event sink and wraps it with the
// circuit breaker and retry policy.
func OpenSink(ctx context.Context, cfg config.Config, metrics observability.Metrics, log *zap.Logger) (domain.EventPublisher, func(), error) {
	var (
		next    domain.EventPublisher
		cleanup = noop
	)

	switch cfg.EventSink {
	case config.SinkKafka:
		if err := kafka.EnsureTopic(ctx, cfg.Kafka, log); err != nil {
			return nil, nil, fmt.Errorf("ensure topic: %w", err)
		}
		pub := kafka.NewPublisher(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), log)
		next = pub
		cleanup = func() { _ = pub.Close() }
	case config.SinkRabbitMQ:
		conn, ch, err := rabbitmq.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return nil, nil, err
		}
		pub, err := rabbitmq.NewPublisher(ch, cfg.RabbitMQ, log)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, err
		}
		next = pub
		cleanup = func() {
			_ = ch.Close()
			_ = conn.Close()
		}
	case config.SinkLog:
		next = events.NewLogging(log)
	default:
		return nil, nil, fmt.Errorf("unknown event sink %q", cfg.EventSink)
	}

	log.Info("event sink ready", zap.String("sink", cfg.EventSink))
	return events.NewResilient(next, cfg.EventSink, breaker.New(cfg.Breaker), cfg.Retry, metrics, log), cleanup, nil
}

// NewMetrics returns the metrics backend with the path and handler exposing it.
func NewMetrics(cfg config.Config, subsystem string) (observability.Metrics, string, http.Handler, error) {
	switch cfg.MetricsBackend {
	case MetricsInmem:
		m := observability.NewInmem(inmemWindow)
		return m, "/debug/metrics", m, nil
	case MetricsPrometheus:
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := observability.NewPrometheus(reg, subsystem)
		if err != nil {
			return nil, "", nil, err
		}
		return m, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}), nil
	default:
		return nil, "", nil, fmt.Errorf("unknown metrics backend %q", cfg.MetricsBackend)
	}
}
