package outcomes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
)

// RedisCache é um cache de leitura na frente do Store.
// Só resultados finalizados entram no cache; falha do Redis cai direto no Store.
type RedisCache struct {
	Next   Store
	Client *redis.Client
	TTL    time.Duration
	Log    *zap.Logger
}

// NewRedisCache cria o cache com TTL configurável
func NewRedisCache(next Store, c *redis.Client, ttl time.Duration, log *zap.Logger) *RedisCache {
	return &RedisCache{Next: next, Client: c, TTL: ttl, Log: log}
}

// key gera a chave Redis do resultado de um jogo
func key(gameRef string) string { return "outcome:" + gameRef }

func (r *RedisCache) Upsert(ctx context.Context, g domain.GameOutcome) (bool, error) {
	changed, err := r.Next.Upsert(ctx, g)
	if err != nil || !changed {
		return changed, err
	}
	// grava o valor novo em vez de só invalidar: um Get concorrente com o valor antigo
	// usa SETNX e não sobrescreve
	if !g.Finished {
		if err := r.Client.Del(ctx, key(g.GameRef)).Err(); err != nil {
			r.Log.Warn("redis del failed", zap.String("gameRef", g.GameRef), zap.Error(err))
		}
		return true, nil
	}
	b, err := json.Marshal(g)
	if err == nil {
		err = r.Client.Set(ctx, key(g.GameRef), b, r.TTL).Err()
	}
	if err != nil {
		r.Log.Warn("redis set failed", zap.String("gameRef", g.GameRef), zap.Error(err))
		// sem o valor novo, ao menos tira o antigo
		_ = r.Client.Del(ctx, key(g.GameRef)).Err()
	}
	return true, nil
}

func (r *RedisCache) Get(ctx context.Context, gameRefs []string) (map[string]*domain.GameOutcome, error) {
	out := make(map[string]*domain.GameOutcome, len(gameRefs))
	if len(gameRefs) == 0 {
		return out, nil
	}

	keys := make([]string, len(gameRefs))
	for i, ref := range gameRefs {
		keys[i] = key(ref)
	}
	vals, err := r.Client.MGet(ctx, keys...).Result()
	if err != nil {
		r.Log.Warn("redis mget failed", zap.Error(err))
		return r.Next.Get(ctx, gameRefs)
	}

	var missing []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, gameRefs[i])
			continue
		}
		var g domain.GameOutcome
		if err := json.Unmarshal([]byte(s), &g); err != nil {
			missing = append(missing, gameRefs[i])
			continue
		}
		out[gameRefs[i]] = &g
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := r.Next.Get(ctx, missing)
	if err != nil {
		return nil, err
	}
	for ref, g := range loaded {
		out[ref] = g
		if !g.Finished {
			continue
		}
		if b, err := json.Marshal(g); err == nil {
			if err := r.Client.SetNX(ctx, key(ref), b, r.TTL).Err(); err != nil {
				r.Log.Warn("redis set failed", zap.String("gameRef", ref), zap.Error(err))
			}
		}
	}
	return out, nil
}
