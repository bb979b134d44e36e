package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/settlement/queue"
	"github.com/radieske/wager-ledger/internal/shared/metrics"
	"github.com/radieske/wager-ledger/pkg/contracts/events"
)

// Jobs é a fila vista pelo worker
type Jobs interface {
	Reserve(ctx context.Context) (*queue.Job, error)
	Complete(ctx context.Context, job *queue.Job) error
	Fail(ctx context.Context, job *queue.Job, cause error) (bool, error)
	Expired(ctx context.Context) ([]*queue.Job, error)
}

type WorkerConfig struct {
	Concurrency    int
	JobTimeout     time.Duration
	PollInterval   time.Duration
	ReaperInterval time.Duration
}

// Worker consome a fila de liquidação com N goroutines e um reaper
type Worker struct {
	log     *zap.Logger
	jobs    Jobs
	settler *Settler
	events  Events
	metrics *metrics.Settlement
	cfg     WorkerConfig
}

func NewWorker(log *zap.Logger, jobs Jobs, settler *Settler, ev Events, m *metrics.Settlement, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ReaperInterval <= 0 {
		cfg.ReaperInterval = 15 * time.Second
	}
	return &Worker{
		log:     log.With(zap.String("component", "worker")),
		jobs:    jobs,
		settler: settler,
		events:  ev,
		metrics: m,
		cfg:     cfg,
	}
}

// Run bloqueia até o contexto ser cancelado
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		id := i
		g.Go(func() error { return w.loop(ctx, id) })
	}
	g.Go(func() error { return w.reapLoop(ctx) })
	w.log.Info("worker started", zap.Int("concurrency", w.cfg.Concurrency))
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context, id int) error {
	log := w.log.With(zap.Int("slot", id))
	for {
		processed, err := w.ProcessNext(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Warn("reserve failed", zap.Error(err))
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) reapLoop(ctx context.Context) error {
	t := time.NewTicker(w.cfg.ReaperInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if n, err := w.Reap(ctx); err != nil {
				w.log.Warn("reaper failed", zap.Error(err))
			} else if n > 0 {
				w.log.Warn("requeued expired jobs", zap.Int("count", n))
			}
		}
	}
}

// ProcessNext reserva e executa um job. processed=false quando a fila está vazia.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.jobs.Reserve(ctx)
	if err != nil || job == nil {
		return false, err
	}

	jctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	err = w.execute(jctx, job)
	cancel()
	if err == nil {
		if err := w.jobs.Complete(ctx, job); err != nil {
			w.log.Warn("complete job failed", zap.String("jobId", job.ID), zap.Error(err))
		}
		w.metrics.Job(string(job.Type), "completed")
		return true, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", queue.ErrJobTimeout, err)
	}
	w.fail(ctx, job, err)
	return true, nil
}

func (w *Worker) execute(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobSyncOutcomes:
		_, err := w.settler.RunOnce(ctx, job.Trigger)
		if errors.Is(err, domain.ErrLockHeld) {
			// outra rodada já está cobrindo o mesmo trabalho
			return nil
		}
		return err
	case queue.JobGradeGame:
		_, err := w.settler.SettleGame(ctx, job.GameRef)
		return err
	}
	return fmt.Errorf("unknown job type %q", job.Type)
}

// Reap devolve para retry os jobs ativos com prazo vencido
func (w *Worker) Reap(ctx context.Context) (int, error) {
	expired, err := w.jobs.Expired(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range expired {
		w.fail(ctx, job, queue.ErrJobTimeout)
	}
	return len(expired), nil
}

func (w *Worker) fail(ctx context.Context, job *queue.Job, cause error) {
	exhausted, err := w.jobs.Fail(ctx, job, cause)
	if err != nil {
		w.log.Error("record job failure", zap.String("jobId", job.ID), zap.Error(err))
		return
	}
	if !exhausted {
		w.metrics.Job(string(job.Type), "retried")
		w.log.Warn("settlement job failed, will retry",
			zap.String("jobId", job.ID),
			zap.String("gameRef", job.GameRef),
			zap.Int("attempts", job.Attempts),
			zap.Error(cause),
		)
		return
	}

	w.metrics.Job(string(job.Type), "exhausted")
	w.log.Error("settlement job exhausted",
		zap.String("jobId", job.ID),
		zap.String("gameRef", job.GameRef),
		zap.Int("attempts", job.Attempts),
		zap.Error(cause),
	)
	if w.events == nil {
		return
	}
	failedAt := job.FailedAt
	if failedAt.IsZero() {
		failedAt = time.Now().UTC()
	}
	ev := events.SettlementJobFailed{
		JobID:    job.ID,
		Type:     string(job.Type),
		GameRef:  job.GameRef,
		Attempts: job.Attempts,
		Error:    cause.Error(),
		FailedAt: failedAt,
	}
	if err := w.events.PublishJobFailed(ctx, ev); err != nil {
		w.log.Error("publish dlq failed", zap.String("jobId", job.ID), zap.Error(err))
	}
}
