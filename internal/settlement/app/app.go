// Package app monta as dependências de liquidação compartilhadas pelo worker e pelo scheduler.
package app

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
	"github.com/radieske/wager-ledger/internal/settlement/feed"
	"github.com/radieske/wager-ledger/internal/settlement/grader"
	"github.com/radieske/wager-ledger/internal/settlement/outcomes"
	"github.com/radieske/wager-ledger/internal/settlement/queue"
	"github.com/radieske/wager-ledger/internal/settlement/scheduler"
	"github.com/radieske/wager-ledger/internal/shared/cache"
	"github.com/radieske/wager-ledger/internal/shared/config"
	"github.com/radieske/wager-ledger/internal/shared/db"
	sharedkafka "github.com/radieske/wager-ledger/internal/shared/kafka"
	"github.com/radieske/wager-ledger/internal/shared/metrics"
	"github.com/radieske/wager-ledger/internal/wager/repo"
)

const lockPrefix = "settle:lock"

type store interface {
	ledger.Store
	scheduler.Wagers
}

// Settlement reúne o que os processos de liquidação usam
type Settlement struct {
	Queue    *queue.Queue
	Outcomes outcomes.Store
	Settler  *scheduler.Settler
	Events   scheduler.Events
	Metrics  *metrics.Settlement
	Checks   []metrics.HealthFunc

	closers []func() error
}

// Options permite injetar Redis e registry (testes); nil usa o configurado
type Options struct {
	Redis    *redis.Client
	Registry prometheus.Registerer

	// Writers sobrescrevem os producers Kafka (settled, dlq)
	Settled sharedkafka.MessageWriter
	DLQ     sharedkafka.MessageWriter
}

// New conecta Postgres (ou memória), Redis e Kafka e monta o Settler
func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts Options) (*Settlement, error) {
	s := &Settlement{}

	var st store
	var outs outcomes.Store
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on restart and is not shared with other processes")
		st = repo.NewMemory()
		outs = outcomes.NewMemory()
	default:
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pg); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		st = repo.NewPostgres(pg)
		outs = outcomes.NewPostgres(pg)
		s.Checks = append(s.Checks, pingPostgres(pg))
	}

	rdb := opts.Redis
	if rdb == nil {
		var err error
		rdb, err = cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, rdb.Close)
	}
	s.Checks = append(s.Checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	s.Outcomes = outcomes.NewRedisCache(outs, rdb, cfg.OutcomeCacheTTL, log)

	s.Queue = queue.New(rdb, queue.Options{
		MaxAttempts:     cfg.JobMaxAttempts,
		Timeout:         cfg.JobTimeout,
		BackoffBase:     cfg.JobBackoffBase,
		BackoffMax:      cfg.JobBackoffMax,
		FailedRetention: cfg.JobFailedRetention,
	})

	settled, dlq := opts.Settled, opts.DLQ
	if settled == nil {
		w := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerSettled)
		s.closers = append(s.closers, w.Close)
		settled = w
	}
	if dlq == nil {
		w := sharedkafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementJobsDLQ)
		s.closers = append(s.closers, w.Close)
		dlq = w
	}
	s.Events = scheduler.NewKafkaPublisher(settled, dlq)

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s.Metrics = metrics.NewSettlement(reg)

	var src feed.Source
	if cfg.FeedURL != "" {
		src = feed.NewClient(cfg.FeedURL, cfg.FeedTimeout)
	} else {
		log.Warn("FEED_URL not set; outcomes arrive only through the game_finished topic")
	}

	s.Settler = scheduler.NewSettler(log, scheduler.SettlerDeps{
		Ledger:   ledger.NewManager(st, log),
		Wagers:   st,
		Outcomes: s.Outcomes,
		Feed:     src,
		Grader:   grader.New(nil, domain.PushRule(cfg.ChainPushRule)),
		Events:   s.Events,
		Locks:    cache.NewLockManager(rdb, lockPrefix),
		Queue:    s.Queue,
		Metrics:  s.Metrics,
	}, scheduler.SettlerConfig{
		Lookback: cfg.FeedLookback,
		LockTTL:  cfg.RunLockTTL,
	})
	return s, nil
}

// Close fecha as conexões na ordem inversa da abertura
func (s *Settlement) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

func pingPostgres(pg *sql.DB) metrics.HealthFunc {
	return func(ctx context.Context) error { return pg.PingContext(ctx) }
}
