package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TemirB/ecommerce-orders/internal/application/handler"
	"github.com/TemirB/ecommerce-orders/internal/application/service"
	"github.com/TemirB/ecommerce-orders/internal/bootstrap"
	"github.com/TemirB/ecommerce-orders/internal/config"
	"github.com/TemirB/ecommerce-orders/internal/kafka"
	"github.com/TemirB/ecommerce-orders/internal/pkg/breaker"
	"github.com/TemirB/ecommerce-orders/internal/pkg/logger"
	"github.com/TemirB/ecommerce-orders/internal/rabbitmq"
	"github.com/TemirB/ecommerce-orders/internal/telemetry"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker stopped with error", zap.Error(err))
		return
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	tel, err := telemetry.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	metrics, metricsPath, metricsHandler, err := bootstrap.NewMetrics(cfg, "worker")
	if err != nil {
		return err
	}

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	cache, closeCache, err := bootstrap.OpenCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	svc := service.NewService(cache, store, cfg.Worker, log, metrics)
	h := handler.NewHandler(svc, breaker.New(cfg.Breaker), cfg.Retry, log)

	var consume func(ctx context.Context) error

	switch cfg.EventSink {
	case config.SinkKafka:
		if err := kafka.EnsureTopic(ctx, cfg.Kafka, log); err != nil {
			return fmt.Errorf("ensure topic: %w", err)
		}
		reader := kafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Group)
		defer reader.Close()

		consumer := kafka.NewConsumer(h, reader, cfg.Kafka.Workers, log)
		consume = func(ctx context.Context) error {
			consumer.Start(ctx)
			return nil
		}
	case config.SinkRabbitMQ:
		conn, ch, err := rabbitmq.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer ch.Close()

		consumer := rabbitmq.NewConsumer(ch, cfg.RabbitMQ, h, cfg.RabbitMQ.Workers, handler.IsPoison, log)
		consume = consumer.Run
	default:
		return fmt.Errorf("event sink %q has no consumer", cfg.EventSink)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveMetrics(gctx, cfg.Worker.MetricsAddr, metricsPath, metricsHandler, log)
	})
	g.Go(func() error {
		return consume(gctx)
	})
	return g.Wait()
}

// serveMetrics exposes the worker's metrics and a liveness check.
func serveMetrics(ctx context.Context, addr, path string, h http.Handler, log *zap.Logger) error {
	r := chi.NewRouter()
	r.Handle(path, h)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("worker metrics listening", zap.String("addr", addr), zap.String("path", path))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
