package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
	"github.com/radieske/wager-ledger/internal/shared/cache"
	"github.com/radieske/wager-ledger/internal/shared/config"
	"github.com/radieske/wager-ledger/internal/shared/db"
	sharedkafka "github.com/radieske/wager-ledger/internal/shared/kafka"
	"github.com/radieske/wager-ledger/internal/shared/logger"
	"github.com/radieske/wager-ledger/internal/shared/metrics"
	whttp "github.com/radieske/wager-ledger/internal/wager-service/http"
	"github.com/radieske/wager-ledger/internal/wager-service/placement"
	"github.com/radieske/wager-ledger/internal/wager-service/producer"
	"github.com/radieske/wager-ledger/internal/wager/repo"
)

// wagerStore é o que o serviço precisa do repositório: transações do ledger e leituras
type wagerStore interface {
	ledger.Store
	whttp.WagerReader
}

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = config.ServiceWager
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var checks []metrics.HealthFunc

	// Repositório: Postgres ou memória (desenvolvimento local)
	var store wagerStore
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart and settlement processes will not see these wagers")
		store = repo.NewMemory()
	default:
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("pg connect", zap.Error(err))
		}
		defer pg.Close()
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pg); err != nil {
				log.Fatal("pg migrate", zap.Error(err))
			}
		}
		store = repo.NewPostgres(pg)
		checks = append(checks, pingPostgres(pg))
	}

	// Redis só entra no health: placement não depende dele
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable", zap.Error(err))
	} else {
		defer rdb.Close()
		checks = append(checks, pingRedis(rdb))
	}

	// Kafka producer: publica wager_placed
	writer := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced)
	defer writer.Close()

	pm := metrics.NewPlacement(prometheus.DefaultRegisterer)
	ldg := ledger.NewManager(store, log)
	svc := placement.NewService(log, ldg, producer.NewKafkaPublisher(writer), pm, placement.Config{
		PushRule: domain.PushRule(cfg.ChainPushRule),
	})

	api := &whttp.API{Log: log, Placement: svc, Ledger: ldg, Wagers: store, Metrics: pm}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsSrv := metrics.NewServer(cfg.MetricsPort, prometheus.DefaultGatherer, checks...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(log, "api", apiSrv) })
	g.Go(func() error { return serve(log, "metrics/health", metricsSrv) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = apiSrv.Shutdown(shutdownCtx)
		return metricsSrv.Shutdown(shutdownCtx)
	})

	log.Info("wager-service started", zap.String("store", cfg.StoreDriver), zap.String("publish", cfg.TopicWagerPlaced))
	if err := g.Wait(); err != nil {
		log.Fatal("wager-service stopped with error", zap.Error(err))
	}
	log.Info("wager-service stopped")
}

func serve(log *zap.Logger, name string, srv *http.Server) error {
	log.Info(name+" listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func pingPostgres(pg *sql.DB) metrics.HealthFunc {
	return func(ctx context.Context) error { return pg.PingContext(ctx) }
}

func pingRedis(rdb *redis.Client) metrics.HealthFunc {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}
