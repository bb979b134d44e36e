// Package feed traz resultados de jogos do provedor externo, por polling HTTP ou pelo tópico game_finished.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/pkg/contracts/events"
)

var ErrMissingGameRef = errors.New("game_finished without game_ref")

// Source lista os jogos com resultado novo ou corrigido desde um instante
type Source interface {
	Finished(ctx context.Context, since time.Time) ([]events.GameFinished, error)
}

// ToOutcome converte o aviso do feed no fato de domínio
func ToOutcome(ev events.GameFinished) (domain.GameOutcome, error) {
	if ev.GameRef == "" {
		return domain.GameOutcome{}, ErrMissingGameRef
	}
	g := domain.GameOutcome{
		GameRef:     ev.GameRef,
		Sport:       ev.Sport,
		Finished:    ev.Finished,
		Final:       domain.Score{Home: ev.Final.Home, Away: ev.Final.Away},
		PlayerStats: ev.PlayerStats,
		GameStats:   ev.GameStats,
	}
	if len(ev.Periods) > 0 {
		g.Periods = make(map[string]domain.Score, len(ev.Periods))
		for seg, s := range ev.Periods {
			g.Periods[seg] = domain.Score{Home: s.Home, Away: s.Away}
		}
	}
	if ev.FinishedAt != nil {
		t := ev.FinishedAt.UTC()
		g.FinishedAt = &t
	}
	return g, nil
}
