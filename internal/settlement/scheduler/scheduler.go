package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/settlement/queue"
	"github.com/radieske/wager-ledger/internal/shared/metrics"
)

// StatsSource é a fila vista pelo health check
type StatsSource interface {
	Enqueue(ctx context.Context, job queue.Job) (bool, error)
	Stats(ctx context.Context) (queue.Stats, error)
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// QueueDepth é a profundidade da fila por estado
type QueueDepth struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Delayed int64 `json:"delayed"`
	Failed  int64 `json:"failed"`
}

type Health struct {
	Status      string     `json:"status"`
	Score       int        `json:"score"`
	Queue       QueueDepth `json:"queue"`
	FailureRate float64    `json:"failureRate"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
}

// Scheduler dispara sync_outcomes no cron e responde trigger/health
type Scheduler struct {
	log              *zap.Logger
	cron             *cron.Cron
	entry            cron.EntryID
	queue            StatsSource
	settler          *Settler
	metrics          *metrics.Settlement
	backlogThreshold int64
}

func New(log *zap.Logger, q StatsSource, settler *Settler, m *metrics.Settlement, backlogThreshold int) *Scheduler {
	if backlogThreshold <= 0 {
		backlogThreshold = 100
	}
	return &Scheduler{
		log:              log.With(zap.String("component", "scheduler")),
		cron:             cron.New(),
		queue:            q,
		settler:          settler,
		metrics:          m,
		backlogThreshold: int64(backlogThreshold),
	}
}

// Start registra a rodada periódica (ex.: "@every 1m") e inicia o cron
func (s *Scheduler) Start(spec string) error {
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.Enqueue(ctx, "schedule"); err != nil {
			s.log.Error("scheduled enqueue failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = id
	s.cron.Start()
	s.log.Info("scheduler started", zap.String("schedule", spec))
	return nil
}

// Stop para o cron e espera a execução corrente terminar
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Enqueue coloca um sync_outcomes na fila. false se já havia um vivo.
func (s *Scheduler) Enqueue(ctx context.Context, trigger string) (bool, error) {
	return s.queue.Enqueue(ctx, queue.SyncOutcomesJob(trigger))
}

// EnqueueGame coloca um grade_game na fila (usado pelo consumer do feed)
func (s *Scheduler) EnqueueGame(ctx context.Context, gameRef string) {
	if _, err := s.queue.Enqueue(ctx, queue.GradeGameJob(gameRef, "feed")); err != nil {
		s.log.Error("enqueue grade_game failed", zap.String("gameRef", gameRef), zap.Error(err))
	}
}

// Trigger roda uma liquidação imediata fora do cron
func (s *Scheduler) Trigger(ctx context.Context) (RunReport, error) {
	return s.settler.RunOnce(ctx, "manual")
}

// Health calcula o score 0-100: até 60 pontos perdidos pela taxa de falha e até 40 pelo backlog
func (s *Scheduler) Health(ctx context.Context) (Health, error) {
	st, err := s.queue.Stats(ctx)
	if err != nil {
		return Health{}, err
	}
	h := Health{
		Queue: QueueDepth{Waiting: st.Waiting, Active: st.Active, Delayed: st.Delayed, Failed: st.Failed},
	}
	if total := st.Completed + st.FailedTotal; total > 0 {
		h.FailureRate = float64(st.FailedTotal) / float64(total)
	}
	backlog := float64(st.Waiting+st.Delayed) / float64(s.backlogThreshold)
	score := 100 - math.Min(60, h.FailureRate*60) - math.Min(40, backlog*40)
	h.Score = int(math.Round(score))
	h.Status = band(h.Score)

	if s.entry != 0 {
		if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
			h.NextRun = &next
		}
	}

	s.metrics.Health(h.Score, map[string]int64{
		"waiting": st.Waiting,
		"active":  st.Active,
		"delayed": st.Delayed,
		"failed":  st.Failed,
	})
	if h.Status != StatusHealthy {
		s.log.Warn("settlement degraded",
			zap.String("status", h.Status),
			zap.Int("score", h.Score),
			zap.Float64("failureRate", h.FailureRate),
			zap.Int64("backlog", st.Waiting+st.Delayed),
		)
	}
	return h, nil
}

func band(score int) string {
	switch {
	case score >= 80:
		return StatusHealthy
	case score >= 50:
		return StatusDegraded
	}
	return StatusUnhealthy
}
