// Package outcomes guarda os resultados de jogo recebidos do feed externo.
package outcomes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/radieske/wager-ledger/internal/domain"
)

// Store é a fonte dos resultados usada pela liquidação
type Store interface {
	// Upsert grava o resultado; changed=false quando nada relevante mudou
	Upsert(ctx context.Context, g domain.GameOutcome) (changed bool, err error)
	// Get devolve os resultados conhecidos; jogos desconhecidos ficam fora do mapa
	Get(ctx context.Context, gameRefs []string) (map[string]*domain.GameOutcome, error)
}

// payload é o conteúdo comparável de um resultado (sem UpdatedAt)
func payload(g domain.GameOutcome) ([]byte, error) {
	g.UpdatedAt = time.Time{}
	return json.Marshal(g)
}
