package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
	"github.com/radieske/wager-ledger/internal/wager/repo"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newManager(t *testing.T) (*ledger.Manager, *repo.Memory) {
	t.Helper()
	store := repo.NewMemory()
	return ledger.NewManager(store, zap.NewNop()), store
}

func single(owner, stake string) *domain.Wager {
	return &domain.Wager{
		ID:              uuid.NewString(),
		OwnerID:         owner,
		Kind:            domain.KindSingle,
		Stake:           dec(stake),
		PotentialPayout: dec(stake),
		Legs:            []domain.Leg{{GameRef: "g1", Odds: -150, Pick: domain.Moneyline{Side: domain.SideHome}}},
		Plan:            domain.Plan{StakeUnit: dec(stake)},
		Results:         domain.PendingResults(1),
		Status:          domain.StatusPending,
		PlacedAt:        time.Now().UTC(),
	}
}

func decide(d domain.Decision) ledger.GradeFunc {
	return func(context.Context, *domain.Wager) (domain.Decision, error) { return d, nil }
}

func deposit(t *testing.T, m *ledger.Manager, owner, amount string) {
	t.Helper()
	_, _, err := m.Deposit(context.Background(), owner, dec(amount), uuid.NewString())
	require.NoError(t, err)
}

func TestAdmitAndSettleWin(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	deposit(t, m, "u1", "1000")

	w := single("u1", "200")
	adm, err := m.Admit(ctx, w)
	require.NoError(t, err)
	assert.True(t, adm.Created)
	assert.Equal(t, "800.00", adm.Available.StringFixed(2))

	view, err := m.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", view.Balance.StringFixed(2))
	assert.Equal(t, "200.00", view.Risk.StringFixed(2))
	assert.Equal(t, "800.00", view.Available.StringFixed(2))

	res, err := m.Settle(ctx, w.ID, decide(domain.Decision{
		Status:  domain.StatusWon,
		Results: []domain.LegResult{domain.LegWon},
		Payout:  dec("333.33"),
	}))
	require.NoError(t, err)
	assert.True(t, res.Final())
	assert.Equal(t, "333.33", res.Credited.StringFixed(2))
	require.NotNil(t, res.Wager.SettledAt)

	view, err = m.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "1333.33", view.Balance.StringFixed(2))
	assert.Equal(t, "0.00", view.Risk.StringFixed(2))
	assert.Equal(t, "1333.33", view.Available.StringFixed(2))

	stored, err := store.GetWager(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWon, stored.Status)
	assert.Equal(t, []domain.LegResult{domain.LegWon}, stored.Results)
}

func TestSettleLossKeepsBalance(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	deposit(t, m, "u1", "500")

	w := single("u1", "100")
	_, err := m.Admit(ctx, w)
	require.NoError(t, err)

	res, err := m.Settle(ctx, w.ID, decide(domain.Decision{Status: domain.StatusLost, Results: []domain.LegResult{domain.LegLost}}))
	require.NoError(t, err)
	assert.True(t, res.Final())
	assert.True(t, res.Credited.IsZero())

	view, err := m.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "500.00", view.Balance.StringFixed(2))
	assert.Equal(t, "500.00", view.Available.StringFixed(2))
}

func TestAdmitInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	deposit(t, m, "u1", "100")

	_, err := m.Admit(ctx, single("u1", "80"))
	require.NoError(t, err)

	_, err = m.Admit(ctx, single("u1", "30"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	var ife *domain.InsufficientFundsError
	require.True(t, errors.As(err, &ife))
	assert.Equal(t, "100.00", ife.Balance.StringFixed(2))
	assert.Equal(t, "80.00", ife.Risk.StringFixed(2))
	assert.Equal(t, "20.00", ife.Available.StringFixed(2))
	assert.Equal(t, "30.00", ife.Required.StringFixed(2))
}

func TestAdmitIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	deposit(t, m, "u1", "1000")

	first := single("u1", "100")
	first.IdempotencyKey = "k-1"
	adm, err := m.Admit(ctx, first)
	require.NoError(t, err)
	require.True(t, adm.Created)

	second := single("u1", "100")
	second.IdempotencyKey = "k-1"
	adm, err = m.Admit(ctx, second)
	require.NoError(t, err)
	assert.False(t, adm.Created)
	assert.Equal(t, first.ID, adm.Wager.ID)

	// mesma chave de outro dono é outra aposta
	deposit(t, m, "u2", "1000")
	other := single("u2", "100")
	other.IdempotencyKey = "k-1"
	adm, err = m.Admit(ctx, other)
	require.NoError(t, err)
	assert.True(t, adm.Created)

	view, err := m.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "100.00", view.Risk.StringFixed(2))
}

func TestSettleTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	deposit(t, m, "u1", "1000")
	w := single("u1", "200")
	_, err := m.Admit(ctx, w)
	require.NoError(t, err)

	won := decide(domain.Decision{Status: domain.StatusWon, Results: []domain.LegResult{domain.LegWon}, Payout: dec("333.33")})
	_, err = m.Settle(ctx, w.ID, won)
	require.NoError(t, err)

	calls := 0
	res, err := m.Settle(ctx, w.ID, func(ctx context.Context, w *domain.Wager) (domain.Decision, error) {
		calls++
		return won(ctx, w)
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, calls)

	view, err := m.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "1333.33", view.Balance.StringFixed(2))

	entries, err := store.Entries(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSettleUndeterminedChangesNothing(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	deposit(t, m, "u1", "1000")
	w := single("u1", "200")
	_, err := m.Admit(ctx, w)
	require.NoError(t, err)

	res, err := m.Settle(ctx, w.ID, decide(domain.Decision{Status: domain.StatusPending, Results: domain.PendingResults(1)}))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, domain.StatusPending, res.Wager.Status)
}

func TestSettlePartialThenFinal(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	deposit(t, m, "u1", "1000")
	w := single("u1", "100")
	w.Kind = domain.KindBetItAll
	w.Legs = append(w.Legs, domain.Leg{GameRef: "g2", Odds: 100, Pick: domain.Moneyline{Side: domain.SideAway}})
	w.Results = domain.PendingResults(2)
	_, err := m.Admit(ctx, w)
	require.NoError(t, err)

	res, err := m.Settle(ctx, w.ID, decide(domain.Decision{
		Status:  domain.StatusPartiallySettled,
		Results: []domain.LegResult{domain.LegWon, domain.LegPending},
	}))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.Final())

	view, err := m.Account(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "100.00", view.Risk.StringFixed(2), "partially settled still counts as risk")

	res, err = m.Settle(ctx, w.ID, decide(domain.Decision{Status: domain.StatusLost, Results: []domain.LegResult{domain.LegWon, domain.LegLost}}))
	require.NoError(t, err)
	assert.True(t, res.Final())
	assert.Equal(t, domain.StatusPartiallySettled, res.Previous)

	stored, err := store.GetWager(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLost, stored.Status)
}

func TestSettleNeverReopensPartialChain(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	deposit(t, m, "u1", "1000")
	w := single("u1", "100")
	w.Kind = domain.KindIfBet
	w.Legs = append(w.Legs, domain.Leg{GameRef: "g2", Odds: 100, Pick: domain.Moneyline{Side: domain.SideAway}})
	w.Results = domain.PendingResults(2)
	_, err := m.Admit(ctx, w)
	require.NoError(t, err)

	partial := []domain.LegResult{domain.LegWon, domain.LegPending}
	_, err = m.Settle(ctx, w.ID, decide(domain.Decision{Status: domain.StatusPartiallySettled, Results: partial}))
	require.NoError(t, err)

	// resultado corrigido some do feed: a aposta fica como estava
	res, err := m.Settle(ctx, w.ID, decide(domain.Decision{Status: domain.StatusPending, Results: domain.PendingResults(2)}))
	require.NoError(t, err)
	assert.False(t, res.Changed)

	stored, err := store.GetWager(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartiallySettled, stored.Status)
	assert.Equal(t, partial, stored.Results)
}

func TestSettleRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	deposit(t, m, "u1", "1000")
	w := single("u1", "100")
	_, err := m.Admit(ctx, w)
	require.NoError(t, err)

	_, err = m.Settle(ctx, w.ID, decide(domain.Decision{Status: domain.Status("void"), Results: domain.PendingResults(1)}))
	assert.Error(t, err)
}

func TestSettleGradeErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	m, store := newManager(t)
	deposit(t, m, "u1", "1000")
	w := single("u1", "100")
	_, err := m.Admit(ctx, w)
	require.NoError(t, err)

	corrupt := &domain.CorruptWagerError{WagerID: w.ID, Err: domain.ErrMalformedLeg}
	_, err = m.Settle(ctx, w.ID, func(context.Context, *domain.Wager) (domain.Decision, error) {
		return domain.Decision{}, corrupt
	})
	var cwe *domain.CorruptWagerError
	assert.True(t, errors.As(err, &cwe))

	stored, err := store.GetWager(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestSettleUnknownWager(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Settle(context.Background(), "missing", decide(domain.Decision{}))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConcurrentAdmissionsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)
	deposit(t, m, "u1", "1000")

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted, rejected := 0, 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Admit(ctx, single("u1", "100"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				admitted++
			} else if errors.Is(err, domain.ErrInsufficientFunds) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, admitted)
	assert.Equal(t, 15, rejected)
	view, err := m.Account(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, view.Available.IsNegative())
	assert.Equal(t, "0.00", view.Available.StringFixed(2))
}

func TestDepositIdempotentByExternalRef(t *testing.T) {
	ctx := context.Background()
	m, _ := newManager(t)

	view, applied, err := m.Deposit(ctx, "u1", dec("50"), "psp-1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "50.00", view.Balance.StringFixed(2))

	view, applied, err = m.Deposit(ctx, "u1", dec("50"), "psp-1")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "50.00", view.Balance.StringFixed(2))

	_, _, err = m.Deposit(ctx, "u1", dec("-5"), "psp-2")
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}
