package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/wager-ledger/internal/domain"
)

// fakeRow devolve valores na ordem de wagerColumns, como o driver faria
type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: %d dest, %d values", len(dest), len(r.vals))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *decimal.Decimal:
			*p = r.vals[i].(decimal.Decimal)
		case *[]byte:
			*p = r.vals[i].([]byte)
		case *sql.NullString:
			*p = r.vals[i].(sql.NullString)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		case *sql.NullTime:
			*p = r.vals[i].(sql.NullTime)
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

func rowOf(t *testing.T, w *domain.Wager, legs []byte, placedAt time.Time, settledAt sql.NullTime) fakeRow {
	t.Helper()
	if legs == nil {
		b, err := json.Marshal(w.Legs)
		require.NoError(t, err)
		legs = b
	}
	plan, err := json.Marshal(w.Plan)
	require.NoError(t, err)
	results, err := json.Marshal(w.Results)
	require.NoError(t, err)
	return fakeRow{vals: []any{
		w.ID, w.OwnerID, string(w.Kind), w.Stake, w.PotentialPayout, w.Payout,
		legs, plan, results, string(w.Status), sql.NullString{String: "k-1", Valid: true},
		placedAt, settledAt,
	}}
}

func TestScanWagerNormalizesTimesToUTC(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	placed := time.Date(2026, 1, 10, 9, 0, 0, 123456000, saoPaulo)
	settled := placed.Add(3 * time.Hour)

	w, err := scanWager(rowOf(t, wager("w1", "alice", 0, domain.StatusWon, "g1"), nil,
		placed, sql.NullTime{Time: settled, Valid: true}))
	require.NoError(t, err)

	assert.Equal(t, time.UTC, w.PlacedAt.Location())
	assert.True(t, w.PlacedAt.Equal(placed))
	require.NotNil(t, w.SettledAt)
	assert.Equal(t, time.UTC, w.SettledAt.Location())
	assert.True(t, w.SettledAt.Equal(settled))
	assert.Equal(t, "k-1", w.IdempotencyKey)

	b, err := json.Marshal(w)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"placedAt":"2026-01-10T12:00:00.123456Z"`)
}

func TestScanWagerLeavesSettledAtNil(t *testing.T) {
	w, err := scanWager(rowOf(t, wager("w1", "alice", 0, domain.StatusPending, "g1"), nil, base, sql.NullTime{}))
	require.NoError(t, err)
	assert.Nil(t, w.SettledAt)
	require.Len(t, w.Legs, 1)
	assert.Equal(t, domain.Moneyline{Side: domain.Side("home")}, w.Legs[0].Pick)
}

func TestScanWagerCorruptPayload(t *testing.T) {
	_, err := scanWager(rowOf(t, wager("w9", "alice", 0, domain.StatusPending, "g1"), []byte(`{"not":"a list"`), base, sql.NullTime{}))
	var corrupt *domain.CorruptWagerError
	require.True(t, errors.As(err, &corrupt), "err=%v", err)
	assert.Equal(t, "w9", corrupt.WagerID)
	assert.Contains(t, corrupt.Error(), "legs")
}

func TestScanWagerNoRows(t *testing.T) {
	_, err := scanWager(fakeRow{err: sql.ErrNoRows})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	boom := errors.New("conn reset")
	_, err = scanWager(fakeRow{err: boom})
	assert.ErrorIs(t, err, boom)
}
