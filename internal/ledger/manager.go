// Package ledger admite stakes contra o saldo disponível e aplica os efeitos financeiros da liquidação.
//
// Placement nunca debita: o risco é a soma dos stakes das apostas abertas, recalculada dentro da
// mesma transação que insere a nova aposta. Um prêmio é creditado uma única vez, protegido pela
// referência única do lançamento e pela re-leitura do status com a aposta travada.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
)

// GradeFunc decide o estado da aposta travada. Roda dentro da transação de liquidação.
type GradeFunc func(ctx context.Context, w *domain.Wager) (domain.Decision, error)

// Admission é o resultado de Admit. Created=false indica replay idempotente.
type Admission struct {
	Wager     *domain.Wager
	Created   bool
	Balance   decimal.Decimal
	Risk      decimal.Decimal
	Available decimal.Decimal
}

// Settlement é o resultado de Settle
type Settlement struct {
	Wager    *domain.Wager
	Previous domain.Status
	// Changed indica que algo foi persistido (resultados de pernas ou status)
	Changed  bool
	Credited decimal.Decimal
}

// Final informa se esta chamada levou a aposta a um estado terminal
func (s Settlement) Final() bool {
	return s.Changed && s.Wager != nil && s.Wager.Status.Terminal()
}

// AccountView é o saldo com o risco derivado
type AccountView struct {
	OwnerID   string          `json:"ownerId"`
	Balance   decimal.Decimal `json:"balance"`
	Risk      decimal.Decimal `json:"risk"`
	Available decimal.Decimal `json:"available"`
}

type Manager struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewManager(store Store, log *zap.Logger) *Manager {
	return &Manager{store: store, log: log.With(zap.String("component", "ledger")), now: time.Now}
}

// Admit verifica saldo disponível e insere a aposta numa única transação travando a conta do dono.
// Se a chave de idempotência já existe, devolve a aposta existente sem criar outra.
func (m *Manager) Admit(ctx context.Context, w *domain.Wager) (Admission, error) {
	if !w.Stake.IsPositive() {
		return Admission{}, fmt.Errorf("admit wager %s: stake must be positive", w.ID)
	}
	var adm Admission
	err := m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		acct, err := tx.LockAccount(ctx, w.OwnerID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		if w.IdempotencyKey != "" {
			existing, err := tx.WagerByIdempotencyKey(ctx, w.OwnerID, w.IdempotencyKey)
			if err == nil {
				adm = Admission{Wager: existing}
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("lookup idempotency key: %w", err)
			}
		}

		risk, err := tx.OpenRisk(ctx, w.OwnerID)
		if err != nil {
			return fmt.Errorf("open risk: %w", err)
		}
		available := acct.Balance.Sub(risk)
		if available.LessThan(w.Stake) {
			return &domain.InsufficientFundsError{
				Balance:   acct.Balance,
				Risk:      risk,
				Available: available,
				Required:  w.Stake,
			}
		}

		if err := tx.InsertWager(ctx, w); err != nil {
			return err
		}
		adm = Admission{
			Wager:     w,
			Created:   true,
			Balance:   acct.Balance,
			Risk:      risk.Add(w.Stake),
			Available: available.Sub(w.Stake),
		}
		return nil
	})

	if errors.Is(err, domain.ErrDuplicate) && w.IdempotencyKey != "" {
		// corrida perdida para outra transação com a mesma chave
		return m.replay(ctx, w.OwnerID, w.IdempotencyKey)
	}
	if err != nil {
		var insufficient *domain.InsufficientFundsError
		if errors.As(err, &insufficient) {
			m.log.Info("admission rejected",
				zap.String("ownerId", w.OwnerID),
				zap.String("available", insufficient.Available.StringFixed(2)),
				zap.String("required", insufficient.Required.StringFixed(2)),
			)
		}
		return Admission{}, err
	}
	return adm, nil
}

func (m *Manager) replay(ctx context.Context, ownerID, key string) (Admission, error) {
	var adm Admission
	err := m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		existing, err := tx.WagerByIdempotencyKey(ctx, ownerID, key)
		if err != nil {
			return err
		}
		adm = Admission{Wager: existing}
		return nil
	})
	return adm, err
}

// Settle trava a aposta, roda grade e aplica a decisão. Aposta já terminal é no-op.
// Prêmio de aposta vencedora é o retorno bruto; lost e push não mexem no saldo.
func (m *Manager) Settle(ctx context.Context, wagerID string, grade GradeFunc) (Settlement, error) {
	var res Settlement
	err := m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.LockWager(ctx, wagerID)
		if err != nil {
			return err
		}
		res = Settlement{Wager: w, Previous: w.Status}
		if w.Status.Terminal() {
			return nil
		}

		d, err := grade(ctx, w)
		if err != nil {
			return err
		}
		// dado que deixou de estar disponível não reabre uma cadeia já iniciada
		if w.Status == domain.StatusPartiallySettled && d.Status == domain.StatusPending {
			return nil
		}
		if !w.Status.CanTransition(d.Status) {
			return fmt.Errorf("wager %s: illegal transition %s -> %s", w.ID, w.Status, d.Status)
		}
		if d.Status == w.Status && sameResults(d.Results, w.Results) {
			return nil
		}

		next := w.Clone()
		next.Status = d.Status
		next.Results = append([]domain.LegResult(nil), d.Results...)

		if d.Final() {
			now := m.now().UTC()
			next.SettledAt = &now
			if d.Status == domain.StatusWon && d.Payout.IsPositive() {
				next.Payout = d.Payout
				applied, err := tx.Credit(ctx, domain.LedgerEntry{
					ID:        uuid.NewString(),
					OwnerID:   w.OwnerID,
					Kind:      domain.EntryPayout,
					Amount:    d.Payout,
					Ref:       domain.PayoutRef(w.ID),
					WagerID:   w.ID,
					CreatedAt: now,
				})
				if err != nil {
					return fmt.Errorf("credit payout: %w", err)
				}
				if applied {
					res.Credited = d.Payout
				}
			}
		}

		if err := tx.UpdateWagerSettlement(ctx, next); err != nil {
			return fmt.Errorf("update wager: %w", err)
		}
		res.Wager = next
		res.Changed = true
		return nil
	})
	if err != nil {
		return Settlement{}, err
	}

	if res.Changed {
		m.log.Info("wager graded",
			zap.String("wagerId", res.Wager.ID),
			zap.String("ownerId", res.Wager.OwnerID),
			zap.String("from", string(res.Previous)),
			zap.String("to", string(res.Wager.Status)),
			zap.String("credited", res.Credited.StringFixed(2)),
		)
	}
	return res, nil
}

// Deposit credita a conta do dono. Repetir o mesmo externalRef não credita de novo.
func (m *Manager) Deposit(ctx context.Context, ownerID string, amount decimal.Decimal, externalRef string) (AccountView, bool, error) {
	verr := &domain.ValidationError{}
	if !amount.IsPositive() {
		verr.Add("amount", "must be positive")
	} else if !amount.Equal(amount.Round(2)) {
		verr.Add("amount", "must have at most 2 decimal places")
	}
	if externalRef == "" {
		verr.Add("externalRef", "is required")
	}
	if err := verr.Err(); err != nil {
		return AccountView{}, false, err
	}

	var view AccountView
	var applied bool
	err := m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.LockAccount(ctx, ownerID); err != nil {
			return err
		}
		ok, err := tx.Credit(ctx, domain.LedgerEntry{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Kind:      domain.EntryDeposit,
			Amount:    amount,
			Ref:       domain.DepositRef(externalRef),
			CreatedAt: m.now().UTC(),
		})
		if err != nil {
			return err
		}
		applied = ok
		view, err = accountView(ctx, tx, ownerID)
		return err
	})
	if err != nil {
		return AccountView{}, false, err
	}
	if applied {
		m.log.Info("deposit credited", zap.String("ownerId", ownerID), zap.String("amount", amount.StringFixed(2)), zap.String("externalRef", externalRef))
	}
	return view, applied, nil
}

// Account devolve saldo, risco e disponível, criando a conta se não existir
func (m *Manager) Account(ctx context.Context, ownerID string) (AccountView, error) {
	var view AccountView
	err := m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		view, err = accountView(ctx, tx, ownerID)
		return err
	})
	return view, err
}

func accountView(ctx context.Context, tx Tx, ownerID string) (AccountView, error) {
	acct, err := tx.LockAccount(ctx, ownerID)
	if err != nil {
		return AccountView{}, err
	}
	risk, err := tx.OpenRisk(ctx, ownerID)
	if err != nil {
		return AccountView{}, err
	}
	return AccountView{
		OwnerID:   ownerID,
		Balance:   acct.Balance,
		Risk:      risk,
		Available: acct.Balance.Sub(risk),
	}, nil
}

func sameResults(a, b []domain.LegResult) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
