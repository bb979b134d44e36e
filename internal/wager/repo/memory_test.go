package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
)

var base = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func wager(id, owner string, placed int, status domain.Status, games ...string) *domain.Wager {
	legs := make([]domain.Leg, 0, len(games))
	for _, g := range games {
		legs = append(legs, domain.Leg{GameRef: g, Odds: -110, Pick: domain.Moneyline{Side: domain.Side("home")}})
	}
	return &domain.Wager{
		ID:       id,
		OwnerID:  owner,
		Kind:     domain.KindSingle,
		Stake:    decimal.NewFromInt(10),
		Legs:     legs,
		Results:  domain.PendingResults(len(legs)),
		Status:   status,
		PlacedAt: base.Add(time.Duration(placed) * time.Minute),
	}
}

func seed(t *testing.T, m *Memory, ws ...*domain.Wager) {
	t.Helper()
	err := m.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		for _, w := range ws {
			if _, err := tx.LockAccount(ctx, w.OwnerID); err != nil {
				return err
			}
			if err := tx.InsertWager(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func ids(ws []*domain.Wager) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.ID)
	}
	return out
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, _ = tx.LockAccount(ctx, "u1")
		_, _ = tx.Credit(ctx, domain.LedgerEntry{ID: "e1", OwnerID: "u1", Kind: domain.EntryDeposit, Amount: decimal.NewFromInt(50), Ref: "dep:1"})
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := m.Entries(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// a ref desfeita pode ser aplicada de novo
	err = m.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		_, _ = tx.LockAccount(ctx, "u1")
		applied, err := tx.Credit(ctx, domain.LedgerEntry{ID: "e2", OwnerID: "u1", Kind: domain.EntryDeposit, Amount: decimal.NewFromInt(50), Ref: "dep:1"})
		assert.True(t, applied)
		return err
	})
	require.NoError(t, err)
}

func TestInsertWagerRejectsDuplicateKey(t *testing.T) {
	m := NewMemory()
	first := wager("w1", "u1", 0, domain.StatusPending, "g1")
	first.IdempotencyKey = "k"
	seed(t, m, first)

	again := wager("w2", "u1", 1, domain.StatusPending, "g1")
	again.IdempotencyKey = "k"
	err := m.WithTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertWager(ctx, again)
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	// outro dono pode usar a mesma chave
	other := wager("w3", "u2", 1, domain.StatusPending, "g1")
	other.IdempotencyKey = "k"
	seed(t, m, other)
}

func TestListByOwnerFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m,
		wager("w1", "u1", 0, domain.StatusPending, "g1"),
		wager("w2", "u1", 1, domain.StatusWon, "g2"),
		wager("w3", "u1", 2, domain.StatusPending, "g3"),
		wager("w4", "u2", 3, domain.StatusPending, "g1"),
	)

	all, err := m.ListByOwner(ctx, "u1", "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"w3", "w2", "w1"}, ids(all))

	pending, err := m.ListByOwner(ctx, "u1", domain.StatusPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"w3", "w1"}, ids(pending))

	paged, err := m.ListByOwner(ctx, "u1", "", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"w2"}, ids(paged))

	empty, err := m.ListByOwner(ctx, "u1", "", 10, 5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestOpenWagerQueries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m,
		wager("w1", "u1", 2, domain.StatusPending, "g1", "g2"),
		wager("w2", "u2", 0, domain.StatusPartiallySettled, "g1"),
		wager("w3", "u1", 1, domain.StatusLost, "g3"),
	)

	open, err := m.ListOpenByGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []string{"w2", "w1"}, ids(open))

	refs, err := m.OpenGameRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, refs)

	_, err = m.GetWager(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
