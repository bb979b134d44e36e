package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/radieske/wager-ledger/internal/domain"
)

func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// LockManager é um lock distribuído simples: SET NX com TTL e liberação pelo dono do token
type LockManager struct {
	rdb    *redis.Client
	prefix string
}

func NewLockManager(rdb *redis.Client, prefix string) *LockManager {
	if prefix == "" {
		prefix = "lock"
	}
	return &LockManager{rdb: rdb, prefix: prefix}
}

// Lock representa um lock adquirido
type Lock struct {
	key   string
	token string
	m     *LockManager
}

var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Acquire tenta pegar o lock uma vez. Já ocupado retorna domain.ErrLockHeld.
func (m *LockManager) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lock, error) {
	l := &Lock{key: m.prefix + ":" + name, token: uuid.NewString(), m: m}
	ok, err := m.rdb.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}
	return l, nil
}

// Release só apaga a chave se ela ainda pertence a este lock
func (l *Lock) Release(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.m.rdb, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("lock expired before release")
	}
	return nil
}
