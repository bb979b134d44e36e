package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
	"github.com/radieske/wager-ledger/internal/shared/db"
)

// Postgres implementa persistência de apostas, contas e lançamentos em banco Postgres
type Postgres struct{ db *sql.DB }

// NewPostgres retorna uma instância do repositório de apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const wagerColumns = `w.id, w.owner_id, w.kind, w.stake, w.potential_payout, w.payout,
	w.legs, w.plan, w.results, w.status, w.idempotency_key, w.placed_at, w.settled_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanWager decodifica uma linha; payload ilegível vira CorruptWagerError
func scanWager(row rowScanner) (*domain.Wager, error) {
	var (
		w                   domain.Wager
		kind, status        string
		legs, plan, results []byte
		idemKey             sql.NullString
		settledAt           sql.NullTime
	)
	if err := row.Scan(&w.ID, &w.OwnerID, &kind, &w.Stake, &w.PotentialPayout, &w.Payout,
		&legs, &plan, &results, &status, &idemKey, &w.PlacedAt, &settledAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	w.Kind = domain.Kind(kind)
	w.Status = domain.Status(status)
	w.IdempotencyKey = idemKey.String
	// o driver devolve no fuso da sessão; o contrato é UTC
	w.PlacedAt = w.PlacedAt.UTC()
	if settledAt.Valid {
		t := settledAt.Time.UTC()
		w.SettledAt = &t
	}
	if err := json.Unmarshal(legs, &w.Legs); err != nil {
		return nil, &domain.CorruptWagerError{WagerID: w.ID, Err: fmt.Errorf("legs: %w", err)}
	}
	if err := json.Unmarshal(plan, &w.Plan); err != nil {
		return nil, &domain.CorruptWagerError{WagerID: w.ID, Err: fmt.Errorf("plan: %w", err)}
	}
	if err := json.Unmarshal(results, &w.Results); err != nil {
		return nil, &domain.CorruptWagerError{WagerID: w.ID, Err: fmt.Errorf("results: %w", err)}
	}
	return &w, nil
}

func scanWagers(rows *sql.Rows) ([]*domain.Wager, error) {
	defer rows.Close()
	var out []*domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// WithTx abre uma transação de ledger sobre o banco
func (p *Postgres) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

func (p *Postgres) GetWager(ctx context.Context, id string) (*domain.Wager, error) {
	return scanWager(p.db.QueryRowContext(ctx, `SELECT `+wagerColumns+` FROM wagers w WHERE w.id=$1`, id))
}

// ListByOwner pagina as apostas do dono, mais recentes primeiro. status vazio não filtra.
func (p *Postgres) ListByOwner(ctx context.Context, ownerID string, status domain.Status, limit, offset int) ([]*domain.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wagers w
		WHERE w.owner_id=$1 AND ($2='' OR w.status=$2)
		ORDER BY w.placed_at DESC, w.id DESC
		LIMIT $3 OFFSET $4`, ownerID, string(status), limit, offset)
	if err != nil {
		return nil, err
	}
	out, err := scanWagers(rows)
	if out == nil && err == nil {
		out = []*domain.Wager{}
	}
	return out, err
}

// ListOpenByGame retorna as apostas pending/partially_settled que referenciam o jogo
func (p *Postgres) ListOpenByGame(ctx context.Context, gameRef string) ([]*domain.Wager, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+wagerColumns+`
		FROM wager_games g
		JOIN wagers w ON w.id = g.wager_id
		WHERE g.game_ref=$1 AND w.status IN ('pending','partially_settled')
		ORDER BY w.placed_at, w.id`, gameRef)
	if err != nil {
		return nil, err
	}
	return scanWagers(rows)
}

// OpenGameRefs lista os jogos que ainda têm apostas abertas
func (p *Postgres) OpenGameRefs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT g.game_ref
		FROM wager_games g
		JOIN wagers w ON w.id = g.wager_id
		WHERE w.status IN ('pending','partially_settled')
		ORDER BY g.game_ref`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type pgTx struct{ tx *sql.Tx }

func (t *pgTx) LockAccount(ctx context.Context, ownerID string) (domain.Account, error) {
	// cria a conta se não existir; conflito não trava nada
	if _, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts(owner_id, balance) VALUES($1, 0) ON CONFLICT (owner_id) DO NOTHING`, ownerID); err != nil {
		return domain.Account{}, err
	}
	var a domain.Account
	err := t.tx.QueryRowContext(ctx,
		`SELECT owner_id, balance, created_at, updated_at FROM accounts WHERE owner_id=$1 FOR UPDATE`, ownerID).
		Scan(&a.OwnerID, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (t *pgTx) OpenRisk(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	var risk decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(stake), 0) FROM wagers
		WHERE owner_id=$1 AND status IN ('pending','partially_settled')`, ownerID).Scan(&risk)
	return risk, err
}

func (t *pgTx) WagerByIdempotencyKey(ctx context.Context, ownerID, key string) (*domain.Wager, error) {
	return scanWager(t.tx.QueryRowContext(ctx,
		`SELECT `+wagerColumns+` FROM wagers w WHERE w.owner_id=$1 AND w.idempotency_key=$2`, ownerID, key))
}

func (t *pgTx) InsertWager(ctx context.Context, w *domain.Wager) error {
	legs, err := json.Marshal(w.Legs)
	if err != nil {
		return fmt.Errorf("encode legs: %w", err)
	}
	plan, err := json.Marshal(w.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	results, err := json.Marshal(w.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	var idemKey sql.NullString
	if w.IdempotencyKey != "" {
		idemKey = sql.NullString{String: w.IdempotencyKey, Valid: true}
	}

	if _, err := t.tx.ExecContext(ctx, `
		INSERT INTO wagers (id, owner_id, kind, stake, potential_payout, payout, legs, plan, results, status, idempotency_key, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		w.ID, w.OwnerID, string(w.Kind), w.Stake, w.PotentialPayout, w.Payout,
		legs, plan, results, string(w.Status), idemKey, w.PlacedAt,
	); err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return err
	}

	for _, g := range w.GameRefs() {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO wager_games(game_ref, wager_id) VALUES($1,$2)`, g, w.ID); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) LockWager(ctx context.Context, id string) (*domain.Wager, error) {
	return scanWager(t.tx.QueryRowContext(ctx,
		`SELECT `+wagerColumns+` FROM wagers w WHERE w.id=$1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateWagerSettlement(ctx context.Context, w *domain.Wager) error {
	results, err := json.Marshal(w.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	var settledAt sql.NullTime
	if w.SettledAt != nil {
		settledAt = sql.NullTime{Time: *w.SettledAt, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE wagers SET status=$1, payout=$2, results=$3, settled_at=$4 WHERE id=$5`,
		string(w.Status), w.Payout, results, settledAt, w.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) Credit(ctx context.Context, e domain.LedgerEntry) (bool, error) {
	var wagerID sql.NullString
	if e.WagerID != "" {
		wagerID = sql.NullString{String: e.WagerID, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries(id, owner_id, kind, amount, ref, wager_id, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (ref) DO NOTHING`,
		e.ID, e.OwnerID, string(e.Kind), e.Amount, e.Ref, wagerID, e.CreatedAt)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE owner_id=$2`, e.Amount, e.OwnerID); err != nil {
		return false, err
	}
	return true, nil
}
