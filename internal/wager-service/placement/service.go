// Package placement orquestra a colocação de uma aposta: valida as pernas, monta a estrutura
// combinatória, admite o stake no ledger e publica wager_placed.
package placement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
	"github.com/radieske/wager-ledger/internal/shared/metrics"
	"github.com/radieske/wager-ledger/internal/wager-service/dto"
	"github.com/radieske/wager-ledger/internal/wager/combinator"
	"github.com/radieske/wager-ledger/internal/wager/normalize"
	"github.com/radieske/wager-ledger/pkg/contracts/events"
)

// Publisher publica apostas admitidas
type Publisher interface {
	PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error
}

type Config struct {
	Teasers combinator.TeaserTable
	// PushRule é a regra gravada nas apostas em cadeia quando o cliente não escolhe
	PushRule domain.PushRule
}

type Service struct {
	log     *zap.Logger
	ledger  *ledger.Manager
	pub     Publisher
	metrics *metrics.Placement
	cfg     Config
	now     func() time.Time
	newID   func() string
}

func NewService(log *zap.Logger, l *ledger.Manager, pub Publisher, m *metrics.Placement, cfg Config) *Service {
	if cfg.Teasers == nil {
		cfg.Teasers = combinator.DefaultTeaserTable
	}
	if !cfg.PushRule.Valid() {
		cfg.PushRule = domain.PushContinue
	}
	return &Service{
		log:     log.With(zap.String("component", "placement")),
		ledger:  l,
		pub:     pub,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Result é o que a colocação devolve ao chamador
type Result struct {
	Wager   *domain.Wager
	Created bool
	Account ledger.AccountView
}

// Place valida e admite a aposta. Chave de idempotência repetida devolve a aposta original.
func (s *Service) Place(ctx context.Context, ownerID string, req dto.PlaceWagerRequest) (Result, error) {
	verr := req.Validate()
	if ownerID == "" {
		verr.Add("ownerId", "is required")
	}
	if !req.Stake.IsPositive() {
		verr.Add("stake", "must be positive")
	} else if !req.Stake.Equal(req.Stake.Round(2)) {
		verr.Add("stake", "must have at most 2 decimal places")
	}
	var legs []domain.Leg
	if len(req.Legs) > 0 {
		var err error
		legs, err = normalize.NormalizeAll(req.Legs)
		var lerr *domain.ValidationError
		if errors.As(err, &lerr) {
			verr.Fields = append(verr.Fields, lerr.Fields...)
		} else if err != nil {
			return Result{}, err
		}
	}
	if err := verr.Err(); err != nil {
		s.metrics.Rejected("validation")
		return Result{}, err
	}

	pushRule := domain.PushRule(req.PushRule)
	if pushRule == "" {
		pushRule = s.cfg.PushRule
	}
	kind := domain.Kind(req.Kind)
	quote, err := combinator.Build(kind, req.Stake, legs, combinator.Options{
		RoundRobinSizes: req.RoundRobinSizes,
		TeaserPoints:    req.TeaserPoints,
		PushRule:        pushRule,
		Teasers:         s.cfg.Teasers,
	})
	if err != nil {
		s.metrics.Rejected("validation")
		return Result{}, err
	}

	// timestamptz guarda microssegundos; o replay precisa devolver o mesmo placedAt
	w := &domain.Wager{
		ID:              s.newID(),
		OwnerID:         ownerID,
		Kind:            kind,
		Stake:           quote.Stake,
		PotentialPayout: quote.PotentialPayout,
		Legs:            quote.Legs,
		Plan:            quote.Plan,
		Results:         domain.PendingResults(len(quote.Legs)),
		Status:          domain.StatusPending,
		IdempotencyKey:  req.IdempotencyKey,
		PlacedAt:        s.now().UTC().Truncate(time.Microsecond),
	}
	adm, err := s.ledger.Admit(ctx, w)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			s.metrics.Rejected("insufficient_funds")
		}
		return Result{}, err
	}

	if !adm.Created {
		view, err := s.ledger.Account(ctx, ownerID)
		if err != nil {
			return Result{}, err
		}
		s.log.Info("idempotent replay", zap.String("wagerId", adm.Wager.ID), zap.String("ownerId", ownerID))
		return Result{Wager: adm.Wager, Created: false, Account: view}, nil
	}

	stake, _ := w.Stake.Float64()
	s.metrics.Placed(string(w.Kind), stake)
	s.log.Info("wager placed",
		zap.String("wagerId", w.ID),
		zap.String("ownerId", ownerID),
		zap.String("kind", string(w.Kind)),
		zap.String("stake", w.Stake.StringFixed(2)),
		zap.String("potentialPayout", w.PotentialPayout.StringFixed(2)),
	)
	s.publish(ctx, w)

	return Result{
		Wager:   w,
		Created: true,
		Account: ledger.AccountView{OwnerID: ownerID, Balance: adm.Balance, Risk: adm.Risk, Available: adm.Available},
	}, nil
}

// publish é best-effort: a aposta já está admitida
func (s *Service) publish(ctx context.Context, w *domain.Wager) {
	if s.pub == nil {
		return
	}
	ev := events.WagerPlaced{
		WagerID:         w.ID,
		OwnerID:         w.OwnerID,
		Kind:            string(w.Kind),
		Stake:           w.Stake.StringFixed(2),
		PotentialPayout: w.PotentialPayout.StringFixed(2),
		GameRefs:        w.GameRefs(),
		PlacedAt:        w.PlacedAt,
	}
	if err := s.pub.PublishWagerPlaced(ctx, ev); err != nil {
		s.log.Warn("publish wager_placed failed", zap.String("wagerId", w.ID), zap.Error(err))
	}
}
