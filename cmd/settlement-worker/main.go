package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/wager-ledger/internal/settlement/app"
	"github.com/radieske/wager-ledger/internal/settlement/scheduler"
	"github.com/radieske/wager-ledger/internal/shared/config"
	"github.com/radieske/wager-ledger/internal/shared/logger"
	"github.com/radieske/wager-ledger/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = config.ServiceSettlementWorker
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if err := cfg.RequireSharedStore(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal("settlement deps", zap.Error(err))
	}
	defer s.Close()

	worker := scheduler.NewWorker(log, s.Queue, s.Settler, s.Events, s.Metrics, scheduler.WorkerConfig{
		Concurrency:    cfg.WorkerConcurrency,
		JobTimeout:     cfg.JobTimeout,
		ReaperInterval: cfg.ReaperInterval,
	})
	metricsSrv := metrics.NewServer(cfg.MetricsPort, prometheus.DefaultGatherer, s.Checks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error {
		log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	log.Info("settlement-worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.Duration("jobTimeout", cfg.JobTimeout),
		zap.Int("maxAttempts", s.Queue.MaxAttempts()),
	)
	if err := g.Wait(); err != nil {
		log.Fatal("settlement-worker stopped with error", zap.Error(err))
	}
	log.Info("settlement-worker stopped")
}
