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
	"github.com/radieske/wager-ledger/internal/settlement/feed"
	shttp "github.com/radieske/wager-ledger/internal/settlement/http"
	"github.com/radieske/wager-ledger/internal/settlement/scheduler"
	"github.com/radieske/wager-ledger/internal/shared/config"
	sharedkafka "github.com/radieske/wager-ledger/internal/shared/kafka"
	"github.com/radieske/wager-ledger/internal/shared/logger"
	"github.com/radieske/wager-ledger/internal/shared/metrics"
)

// intervalo de atualização do gauge de saúde
const healthInterval = 30 * time.Second

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = config.ServiceSettlementScheduler
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

	sched := scheduler.New(log, s.Queue, s.Settler, s.Metrics, cfg.HealthBacklogThreshold)
	if err := sched.Start(cfg.SettlementSchedule); err != nil {
		log.Fatal("invalid SETTLEMENT_SCHEDULE", zap.String("spec", cfg.SettlementSchedule), zap.Error(err))
	}
	defer sched.Stop()

	// Kafka consumer: game_finished grava o resultado e enfileira grade_game
	reader := sharedkafka.NewReader(cfg.KafkaBrokers, cfg.TopicGameFinished, cfg.ConsumerGroup)
	defer reader.Close()
	consumer := &feed.Consumer{
		Log:        log.With(zap.String("component", "feed-consumer")),
		Reader:     reader,
		Store:      s.Outcomes,
		OnFinished: sched.EnqueueGame,
		OnConsumed: func() { s.Metrics.Feed("consumed") },
		OnUpserted: func() { s.Metrics.Feed("upserted") },
		OnError:    func(stage string) { s.Metrics.Feed(stage + "_error") },
	}

	api := &shttp.API{Log: log, Ops: sched}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewServer(cfg.MetricsPort, prometheus.DefaultGatherer, s.Checks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return watchHealth(gctx, log, sched) })
	g.Go(func() error { return serve(log, "settlement api", apiSrv) })
	g.Go(func() error { return serve(log, "metrics/health", metricsSrv) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(shutdownCtx)
		return metricsSrv.Shutdown(shutdownCtx)
	})

	log.Info("settlement-scheduler started",
		zap.String("schedule", cfg.SettlementSchedule),
		zap.String("consume", cfg.TopicGameFinished),
	)
	if err := g.Wait(); err != nil {
		log.Fatal("settlement-scheduler stopped with error", zap.Error(err))
	}
	log.Info("settlement-scheduler stopped")
}

// watchHealth recalcula a saúde periodicamente; Health exporta o gauge e loga degradação
func watchHealth(ctx context.Context, log *zap.Logger, sched *scheduler.Scheduler) error {
	t := time.NewTicker(healthInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := sched.Health(ctx); err != nil && ctx.Err() == nil {
				log.Warn("health check failed", zap.Error(err))
			}
		}
	}
}

func serve(log *zap.Logger, name string, srv *http.Server) error {
	log.Info(name+" listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
