package outcomes

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/radieske/wager-ledger/internal/domain"
)

// Memory é o Store em memória (testes e STORE_DRIVER=memory)
type Memory struct {
	mu    sync.RWMutex
	games map[string]domain.GameOutcome
	raw   map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{games: map[string]domain.GameOutcome{}, raw: map[string][]byte{}}
}

func (m *Memory) Upsert(_ context.Context, g domain.GameOutcome) (bool, error) {
	b, err := payload(g)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.raw[g.GameRef]; ok && bytes.Equal(prev, b) {
		return false, nil
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = time.Now().UTC()
	}
	m.games[g.GameRef] = g
	m.raw[g.GameRef] = b
	return true, nil
}

func (m *Memory) Get(_ context.Context, gameRefs []string) (map[string]*domain.GameOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*domain.GameOutcome, len(gameRefs))
	for _, ref := range gameRefs {
		if g, ok := m.games[ref]; ok {
			out[ref] = &g
		}
	}
	return out, nil
}
