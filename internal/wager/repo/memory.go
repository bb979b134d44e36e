package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
	"github.com/radieske/wager-ledger/internal/ledger"
)

// Memory implementa o mesmo contrato transacional do Postgres em memória.
// Transações são serializadas por um mutex e desfeitas em caso de erro.
type Memory struct {
	mu    sync.RWMutex
	state memState
	now   func() time.Time
}

type memState struct {
	wagers   map[string]*domain.Wager
	idem     map[string]string
	accounts map[string]domain.Account
	entries  []domain.LedgerEntry
	refs     map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		state: memState{
			wagers:   map[string]*domain.Wager{},
			idem:     map[string]string{},
			accounts: map[string]domain.Account{},
			refs:     map[string]bool{},
		},
		now: time.Now,
	}
}

func idemKey(ownerID, key string) string { return ownerID + "\x00" + key }

func (s memState) clone() memState {
	c := memState{
		wagers:   make(map[string]*domain.Wager, len(s.wagers)),
		idem:     make(map[string]string, len(s.idem)),
		accounts: make(map[string]domain.Account, len(s.accounts)),
		entries:  append([]domain.LedgerEntry(nil), s.entries...),
		refs:     make(map[string]bool, len(s.refs)),
	}
	for k, v := range s.wagers {
		c.wagers[k] = v.Clone()
	}
	for k, v := range s.idem {
		c.idem[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.refs {
		c.refs[k] = v
	}
	return c
}

// WithTx roda fn com acesso exclusivo; erro restaura o estado anterior
func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(ctx, &memTx{m: m}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

type memTx struct{ m *Memory }

func (t *memTx) LockAccount(_ context.Context, ownerID string) (domain.Account, error) {
	acct, ok := t.m.state.accounts[ownerID]
	if !ok {
		now := t.m.now().UTC()
		acct = domain.Account{OwnerID: ownerID, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
		t.m.state.accounts[ownerID] = acct
	}
	return acct, nil
}

func (t *memTx) OpenRisk(_ context.Context, ownerID string) (decimal.Decimal, error) {
	risk := decimal.Zero
	for _, w := range t.m.state.wagers {
		if w.OwnerID == ownerID && w.Status.Open() {
			risk = risk.Add(w.Stake)
		}
	}
	return risk, nil
}

func (t *memTx) WagerByIdempotencyKey(_ context.Context, ownerID, key string) (*domain.Wager, error) {
	id, ok := t.m.state.idem[idemKey(ownerID, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t.m.state.wagers[id].Clone(), nil
}

func (t *memTx) InsertWager(_ context.Context, w *domain.Wager) error {
	if _, ok := t.m.state.accounts[w.OwnerID]; !ok {
		return domain.ErrNotFound
	}
	if w.IdempotencyKey != "" {
		k := idemKey(w.OwnerID, w.IdempotencyKey)
		if _, ok := t.m.state.idem[k]; ok {
			return domain.ErrDuplicate
		}
		t.m.state.idem[k] = w.ID
	}
	t.m.state.wagers[w.ID] = w.Clone()
	return nil
}

func (t *memTx) LockWager(_ context.Context, id string) (*domain.Wager, error) {
	w, ok := t.m.state.wagers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return w.Clone(), nil
}

func (t *memTx) UpdateWagerSettlement(_ context.Context, w *domain.Wager) error {
	cur, ok := t.m.state.wagers[w.ID]
	if !ok {
		return domain.ErrNotFound
	}
	next := cur.Clone()
	next.Status = w.Status
	next.Payout = w.Payout
	next.Results = append([]domain.LegResult(nil), w.Results...)
	next.SettledAt = w.SettledAt
	t.m.state.wagers[w.ID] = next
	return nil
}

func (t *memTx) Credit(_ context.Context, e domain.LedgerEntry) (bool, error) {
	if t.m.state.refs[e.Ref] {
		return false, nil
	}
	acct, ok := t.m.state.accounts[e.OwnerID]
	if !ok {
		return false, domain.ErrNotFound
	}
	acct.Balance = acct.Balance.Add(e.Amount)
	acct.UpdatedAt = t.m.now().UTC()
	t.m.state.accounts[e.OwnerID] = acct
	t.m.state.entries = append(t.m.state.entries, e)
	t.m.state.refs[e.Ref] = true
	return true, nil
}

func (m *Memory) GetWager(_ context.Context, id string) (*domain.Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.state.wagers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return w.Clone(), nil
}

func (m *Memory) ListByOwner(_ context.Context, ownerID string, status domain.Status, limit, offset int) ([]*domain.Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Wager
	for _, w := range m.state.wagers {
		if w.OwnerID != ownerID || (status != "" && w.Status != status) {
			continue
		}
		out = append(out, w.Clone())
	}
	sortNewestFirst(out)
	return page(out, limit, offset), nil
}

func (m *Memory) ListOpenByGame(_ context.Context, gameRef string) ([]*domain.Wager, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Wager
	for _, w := range m.state.wagers {
		if !w.Status.Open() {
			continue
		}
		for _, g := range w.GameRefs() {
			if g == gameRef {
				out = append(out, w.Clone())
				break
			}
		}
	}
	// mais antigas primeiro: liquidação segue a ordem de colocação
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out, nil
}

func (m *Memory) OpenGameRefs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, w := range m.state.wagers {
		if !w.Status.Open() {
			continue
		}
		for _, g := range w.GameRefs() {
			if !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Entries devolve os lançamentos do dono (usado em testes e na leitura de extrato)
func (m *Memory) Entries(_ context.Context, ownerID string) ([]domain.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, e := range m.state.entries {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func sortNewestFirst(ws []*domain.Wager) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].PlacedAt.Equal(ws[j].PlacedAt) {
			return ws[i].ID > ws[j].ID
		}
		return ws[i].PlacedAt.After(ws[j].PlacedAt)
	})
}

func page(ws []*domain.Wager, limit, offset int) []*domain.Wager {
	if offset >= len(ws) {
		return []*domain.Wager{}
	}
	ws = ws[offset:]
	if limit > 0 && limit < len(ws) {
		ws = ws[:limit]
	}
	return ws
}
