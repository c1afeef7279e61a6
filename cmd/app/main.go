package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/TemirB/ecommerce-orders/internal/application/command"
	"github.com/TemirB/ecommerce-orders/internal/application/query"
	"github.com/TemirB/ecommerce-orders/internal/bootstrap"
	"github.com/TemirB/ecommerce-orders/internal/config"
	"github.com/TemirB/ecommerce-orders/internal/httpapi"
	"github.com/TemirB/ecommerce-orders/internal/pkg/logger"
	"github.com/TemirB/ecommerce-orders/internal/telemetry"
)

const (
	warmUsers   = 100
	warmTimeout = 10 * time.Second
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
		log.Error("app stopped with error", zap.Error(err))
		return
	}
	log.Info("app stopped")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	tel, err := telemetry.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	metrics, metricsPath, metricsHandler, err := bootstrap.NewMetrics(cfg, "api")
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

	publisher, closeSink, err := bootstrap.OpenSink(ctx, cfg, metrics, log)
	if err != nil {
		return err
	}
	defer closeSink()

	creator := command.NewCreateOrderHandler(store, cache, publisher, cfg.PostCommitTimeout, log, metrics)
	reader := query.NewGetUserOrdersHandler(store, cache, log, metrics)

	warmCtx, cancelWarm := context.WithTimeout(ctx, warmTimeout)
	if err := reader.Warm(warmCtx, warmUsers); err != nil {
		log.Warn("cache warm-up failed", zap.Error(err))
	}
	cancelWarm()

	server := httpapi.New(creator, reader, log, metrics)
	server.Handle(metricsPath, metricsHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.HTTPAddr), zap.String("metrics", metricsPath))
		return server.ListenAndServe(gctx, cfg.HTTPAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return nil
	})
	return g.Wait()
}
