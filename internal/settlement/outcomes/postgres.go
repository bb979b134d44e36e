package outcomes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/radieske/wager-ledger/internal/domain"
)

// Postgres persiste resultados na tabela game_outcomes
type Postgres struct {
	DB *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{DB: db} }

// Upsert insere ou atualiza o resultado do jogo.
// O UPDATE só acontece se o payload mudou, então RETURNING vazio significa "sem mudança".
func (p *Postgres) Upsert(ctx context.Context, g domain.GameOutcome) (bool, error) {
	b, err := payload(g)
	if err != nil {
		return false, err
	}
	const q = `
		INSERT INTO game_outcomes (game_ref, sport, finished, payload, finished_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
		ON CONFLICT (game_ref) DO UPDATE SET
		  sport       = EXCLUDED.sport,
		  finished    = EXCLUDED.finished,
		  payload     = EXCLUDED.payload,
		  finished_at = EXCLUDED.finished_at,
		  updated_at  = NOW()
		WHERE game_outcomes.payload IS DISTINCT FROM EXCLUDED.payload
		RETURNING game_ref`
	var finishedAt sql.NullTime
	if g.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *g.FinishedAt, Valid: true}
	}
	var ref string
	err = p.DB.QueryRowContext(ctx, q, g.GameRef, g.Sport, g.Finished, b, finishedAt).Scan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Postgres) Get(ctx context.Context, gameRefs []string) (map[string]*domain.GameOutcome, error) {
	out := make(map[string]*domain.GameOutcome, len(gameRefs))
	if len(gameRefs) == 0 {
		return out, nil
	}
	rows, err := p.DB.QueryContext(ctx,
		`SELECT game_ref, payload, updated_at FROM game_outcomes WHERE game_ref = ANY($1)`, pq.Array(gameRefs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ref string
			raw []byte
			g   domain.GameOutcome
		)
		if err := rows.Scan(&ref, &raw, &g.UpdatedAt); err != nil {
			return nil, err
		}
		updatedAt := g.UpdatedAt
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("decode outcome %s: %w", ref, err)
		}
		g.UpdatedAt = updatedAt
		out[ref] = &g
	}
	return out, rows.Err()
}
