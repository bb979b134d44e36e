// Package scheduler coordena a liquidação: sincroniza resultados, gradua apostas abertas,
// processa a fila de jobs e expõe a saúde do processo.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
	"github.com/radieske/wager-ledger/internal/settlement/feed"
	"github.com/radieske/wager-ledger/internal/settlement/grader"
	"github.com/radieske/wager-ledger/internal/settlement/outcomes"
	"github.com/radieske/wager-ledger/internal/settlement/queue"
	"github.com/radieske/wager-ledger/internal/shared/cache"
	"github.com/radieske/wager-ledger/internal/shared/metrics"
	"github.com/radieske/wager-ledger/pkg/contracts/events"
)

const runLockName = "settlement:run"

// Wagers é a leitura de apostas abertas usada pela liquidação
type Wagers interface {
	ListOpenByGame(ctx context.Context, gameRef string) ([]*domain.Wager, error)
	OpenGameRefs(ctx context.Context) ([]string, error)
}

// Enqueuer recebe os jogos que falharam numa rodada
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) (bool, error)
}

// RunReport resume uma rodada de liquidação
type RunReport struct {
	GamesSynced   int `json:"gamesSynced"`
	GamesUpdated  int `json:"gamesUpdated"`
	WagersSettled int `json:"wagersSettled"`
	GamesFailed   int `json:"gamesFailed"`
	CorruptWagers int `json:"corruptWagers"`
}

// GameReport resume a liquidação de um jogo
type GameReport struct {
	Examined int
	Settled  int
	Corrupt  int
}

type SettlerConfig struct {
	// Lookback é a janela pedida ao feed em cada sincronização
	Lookback time.Duration
	LockTTL  time.Duration
}

// Settler aplica resultados às apostas abertas
type Settler struct {
	log      *zap.Logger
	ledger   *ledger.Manager
	wagers   Wagers
	outcomes outcomes.Store
	feed     feed.Source
	grader   *grader.Grader
	events   Events
	locks    *cache.LockManager
	queue    Enqueuer
	metrics  *metrics.Settlement
	cfg      SettlerConfig
	now      func() time.Time
}

// SettlerDeps agrupa as dependências. Feed, Events, Locks, Queue e Metrics são opcionais.
type SettlerDeps struct {
	Ledger   *ledger.Manager
	Wagers   Wagers
	Outcomes outcomes.Store
	Feed     feed.Source
	Grader   *grader.Grader
	Events   Events
	Locks    *cache.LockManager
	Queue    Enqueuer
	Metrics  *metrics.Settlement
}

func NewSettler(log *zap.Logger, deps SettlerDeps, cfg SettlerConfig) *Settler {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Settler{
		log:      log.With(zap.String("component", "settler")),
		ledger:   deps.Ledger,
		wagers:   deps.Wagers,
		outcomes: deps.Outcomes,
		feed:     deps.Feed,
		grader:   deps.Grader,
		events:   deps.Events,
		locks:    deps.Locks,
		queue:    deps.Queue,
		metrics:  deps.Metrics,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SyncOutcomes puxa do feed os resultados recentes e grava os que mudaram
func (s *Settler) SyncOutcomes(ctx context.Context) (synced, updated int, err error) {
	if s.feed == nil {
		return 0, 0, nil
	}
	games, err := s.feed.Finished(ctx, s.now().Add(-s.cfg.Lookback))
	if err != nil {
		return 0, 0, &domain.SettlementError{GameRef: "*", Err: err}
	}
	for _, ev := range games {
		g, err := feed.ToOutcome(ev)
		if err != nil {
			s.log.Warn("feed returned invalid game", zap.Error(err))
			s.metrics.Feed("decode_error")
			continue
		}
		synced++
		changed, err := s.outcomes.Upsert(ctx, g)
		if err != nil {
			return synced, updated, &domain.SettlementError{GameRef: g.GameRef, Err: err}
		}
		if changed {
			updated++
			s.metrics.Feed("upserted")
		}
	}
	return synced, updated, nil
}

// SettleGame gradua todas as apostas abertas que têm perna no jogo. Settled conta mudanças de status.
// Aposta corrompida é isolada e logada; as demais seguem.
func (s *Settler) SettleGame(ctx context.Context, gameRef string) (GameReport, error) {
	var rep GameReport
	ws, err := s.wagers.ListOpenByGame(ctx, gameRef)
	if err != nil {
		return rep, &domain.SettlementError{GameRef: gameRef, Err: err}
	}
	if len(ws) == 0 {
		return rep, nil
	}

	refs := map[string]struct{}{}
	for _, w := range ws {
		for _, ref := range w.GameRefs() {
			refs[ref] = struct{}{}
		}
	}
	list := make([]string, 0, len(refs))
	for ref := range refs {
		list = append(list, ref)
	}
	outs, err := s.outcomes.Get(ctx, list)
	if err != nil {
		return rep, &domain.SettlementError{GameRef: gameRef, Err: err}
	}

	grade := func(_ context.Context, w *domain.Wager) (domain.Decision, error) {
		return s.grader.Grade(w, outs)
	}
	for _, w := range ws {
		rep.Examined++
		res, err := s.ledger.Settle(ctx, w.ID, grade)
		if err != nil {
			var corrupt *domain.CorruptWagerError
			if errors.As(err, &corrupt) {
				rep.Corrupt++
				s.metrics.CorruptWager()
				s.log.Error("corrupt wager isolated",
					zap.String("wagerId", w.ID),
					zap.String("ownerId", w.OwnerID),
					zap.String("gameRef", gameRef),
					zap.Error(err),
				)
				continue
			}
			return rep, &domain.SettlementError{GameRef: gameRef, Err: err}
		}
		// resultado de perna gravado sem mudança de status não é evento
		if !res.Changed || res.Wager.Status == res.Previous {
			continue
		}
		rep.Settled++
		s.metrics.WagerSettled(string(res.Wager.Status))
		s.publishSettled(ctx, res, gameRef)
	}
	return rep, nil
}

func (s *Settler) publishSettled(ctx context.Context, res ledger.Settlement, gameRef string) {
	if s.events == nil {
		return
	}
	w := res.Wager
	settledAt := s.now().UTC()
	if w.SettledAt != nil {
		settledAt = *w.SettledAt
	}
	ev := events.WagerSettled{
		WagerID:   w.ID,
		OwnerID:   w.OwnerID,
		Kind:      string(w.Kind),
		From:      string(res.Previous),
		Status:    string(w.Status),
		Payout:    w.Payout.StringFixed(2),
		Credited:  res.Credited.StringFixed(2),
		GameRef:   gameRef,
		SettledAt: settledAt,
	}
	if err := s.events.PublishWagerSettled(ctx, ev); err != nil {
		s.log.Warn("publish wager_settled failed", zap.String("wagerId", w.ID), zap.Error(err))
	}
}

// RunOnce sincroniza o feed e liquida todos os jogos finalizados com apostas abertas.
// Só uma rodada roda por vez; outra rodada em andamento retorna domain.ErrLockHeld.
// Jogos que falham vão para a fila como grade_game.
func (s *Settler) RunOnce(ctx context.Context, trigger string) (RunReport, error) {
	var rep RunReport
	if s.locks != nil {
		lock, err := s.locks.Acquire(ctx, runLockName, s.cfg.LockTTL)
		if err != nil {
			return rep, err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("release run lock", zap.Error(err))
			}
		}()
	}

	started := s.now()
	var err error
	rep.GamesSynced, rep.GamesUpdated, err = s.SyncOutcomes(ctx)
	if err != nil {
		s.metrics.Run("failed")
		return rep, err
	}

	refs, err := s.wagers.OpenGameRefs(ctx)
	if err != nil {
		s.metrics.Run("failed")
		return rep, &domain.SettlementError{GameRef: "*", Err: err}
	}
	outs, err := s.outcomes.Get(ctx, refs)
	if err != nil {
		s.metrics.Run("failed")
		return rep, &domain.SettlementError{GameRef: "*", Err: err}
	}

	for _, ref := range refs {
		g, ok := outs[ref]
		if !ok || !g.Finished {
			continue
		}
		gr, err := s.SettleGame(ctx, ref)
		rep.WagersSettled += gr.Settled
		rep.CorruptWagers += gr.Corrupt
		if err != nil {
			rep.GamesFailed++
			s.log.Warn("game settlement failed", zap.String("gameRef", ref), zap.Error(err))
			s.retry(ctx, ref, trigger)
		}
	}

	s.metrics.Run("completed")
	s.log.Info("settlement run finished",
		zap.String("trigger", trigger),
		zap.Int("gamesSynced", rep.GamesSynced),
		zap.Int("gamesUpdated", rep.GamesUpdated),
		zap.Int("wagersSettled", rep.WagersSettled),
		zap.Int("gamesFailed", rep.GamesFailed),
		zap.Duration("took", s.now().Sub(started)),
	)
	return rep, nil
}

func (s *Settler) retry(ctx context.Context, gameRef, trigger string) {
	if s.queue == nil {
		return
	}
	if _, err := s.queue.Enqueue(ctx, queue.GradeGameJob(gameRef, trigger)); err != nil {
		s.log.Error("enqueue grade_game failed", zap.String("gameRef", gameRef), zap.Error(err))
	}
}
