package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/radieske/wager-ledger/internal/domain"
)

// Store abre transações atômicas. Implementado por repo.Postgres e repo.Memory.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx são as operações que o ledger faz dentro de uma transação.
// Toda decisão de saldo é tomada sobre leituras feitas dentro dela.
type Tx interface {
	// LockAccount trava a linha da conta do dono, criando-a com saldo zero se não existir
	LockAccount(ctx context.Context, ownerID string) (domain.Account, error)
	// OpenRisk soma o stake das apostas pending/partially_settled do dono
	OpenRisk(ctx context.Context, ownerID string) (decimal.Decimal, error)
	// WagerByIdempotencyKey retorna domain.ErrNotFound quando não há aposta com a chave
	WagerByIdempotencyKey(ctx context.Context, ownerID, key string) (*domain.Wager, error)
	// InsertWager retorna domain.ErrDuplicate quando a chave de idempotência já existe
	InsertWager(ctx context.Context, w *domain.Wager) error
	// LockWager trava a aposta para liquidação; domain.ErrNotFound se não existir
	LockWager(ctx context.Context, id string) (*domain.Wager, error)
	UpdateWagerSettlement(ctx context.Context, w *domain.Wager) error
	// Credit soma amount ao saldo e registra o lançamento. applied=false se ref já foi lançada.
	Credit(ctx context.Context, e domain.LedgerEntry) (applied bool, err error)
}
