package outcomes

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/wager-ledger/internal/domain"
)

func game(ref string, home, away int, finished bool) domain.GameOutcome {
	return domain.GameOutcome{GameRef: ref, Sport: "football", Finished: finished, Final: domain.Score{Home: home, Away: away}}
}

func TestMemoryUpsertReportsChange(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	changed, err := m.Upsert(ctx, game("g1", 0, 0, false))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = m.Upsert(ctx, game("g1", 0, 0, false))
	require.NoError(t, err)
	assert.False(t, changed)

	g := game("g1", 0, 0, false)
	g.UpdatedAt = time.Now()
	changed, err = m.Upsert(ctx, g)
	require.NoError(t, err)
	assert.False(t, changed, "only UpdatedAt differs")

	changed, err = m.Upsert(ctx, game("g1", 21, 14, true))
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := m.Get(ctx, []string{"g1", "missing"})
	require.NoError(t, err)
	require.Contains(t, got, "g1")
	assert.NotContains(t, got, "missing")
	assert.Equal(t, 21, got["g1"].Final.Home)
}

func newCache(t *testing.T) (*RedisCache, *Memory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mem := NewMemory()
	return NewRedisCache(mem, client, time.Hour, zap.NewNop()), mem, mr
}

func TestRedisCacheStoresOnlyFinished(t *testing.T) {
	ctx := context.Background()
	c, mem, mr := newCache(t)

	_, err := mem.Upsert(ctx, game("g1", 21, 14, true))
	require.NoError(t, err)
	_, err = mem.Upsert(ctx, game("g2", 3, 0, false))
	require.NoError(t, err)

	got, err := c.Get(ctx, []string{"g1", "g2"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.True(t, mr.Exists(key("g1")))
	assert.False(t, mr.Exists(key("g2")))

	got, err = c.Get(ctx, []string{"g1"})
	require.NoError(t, err)
	assert.Equal(t, 14, got["g1"].Final.Away)
}

func TestRedisCacheUpsertWritesThrough(t *testing.T) {
	ctx := context.Background()
	c, _, mr := newCache(t)

	_, err := c.Upsert(ctx, game("g1", 21, 14, true))
	require.NoError(t, err)
	require.True(t, mr.Exists(key("g1")))

	// correção do placar pelo feed
	changed, err := c.Upsert(ctx, game("g1", 21, 17, true))
	require.NoError(t, err)
	assert.True(t, changed)
	raw, err := mr.Get(key("g1"))
	require.NoError(t, err)
	assert.Contains(t, raw, `"away":17`)

	got, err := c.Get(ctx, []string{"g1"})
	require.NoError(t, err)
	assert.Equal(t, 17, got["g1"].Final.Away)

	// jogo reaberto sai do cache
	_, err = c.Upsert(ctx, game("g1", 21, 17, false))
	require.NoError(t, err)
	assert.False(t, mr.Exists(key("g1")))
}

// staleStore simula um Get que leu o placar antigo antes da correção ser gravada
type staleStore struct {
	Store
	old    domain.GameOutcome
	onRead func()
}

func (s *staleStore) Get(ctx context.Context, refs []string) (map[string]*domain.GameOutcome, error) {
	if s.onRead != nil {
		s.onRead()
		s.onRead = nil
	}
	g := s.old
	return map[string]*domain.GameOutcome{g.GameRef: &g}, nil
}

func TestRedisCacheStaleReadDoesNotOverwriteCorrection(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	next := &staleStore{Store: NewMemory(), old: game("g1", 21, 14, true)}
	c := NewRedisCache(next, client, time.Hour, zap.NewNop())
	// a correção chega entre a leitura do Store e o repopulate do cache
	next.onRead = func() {
		changed, err := c.Upsert(ctx, game("g1", 21, 17, true))
		require.NoError(t, err)
		require.True(t, changed)
	}

	got, err := c.Get(ctx, []string{"g1"})
	require.NoError(t, err)
	assert.Equal(t, 14, got["g1"].Final.Away, "this read saw the old row")

	got, err = c.Get(ctx, []string{"g1"})
	require.NoError(t, err)
	assert.Equal(t, 17, got["g1"].Final.Away, "the cache keeps the correction")
}

func TestRedisCacheFallsBackWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mem := NewMemory()
	c := NewRedisCache(mem, client, time.Hour, zap.NewNop())
	_, err = mem.Upsert(ctx, game("g1", 1, 0, true))
	require.NoError(t, err)

	mr.Close()
	got, err := c.Get(ctx, []string{"g1"})
	require.NoError(t, err)
	assert.Contains(t, got, "g1")
}
