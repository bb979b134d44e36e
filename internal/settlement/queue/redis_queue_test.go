package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newQueue(t *testing.T, opts Options) (*Queue, *clock) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := &clock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	q := New(rdb, opts)
	q.now = c.now
	return q, c
}

func TestEnqueueDeduplicatesLiveJobs(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t, Options{})

	ok, err := q.Enqueue(ctx, GradeGameJob("g1", "schedule"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.Enqueue(ctx, GradeGameJob("g1", "manual"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = q.Enqueue(ctx, GradeGameJob("g2", "schedule"))
	require.NoError(t, err)
	assert.True(t, ok)

	st, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.Waiting)
}

func TestReserveCompleteCycle(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t, Options{})

	_, err := q.Enqueue(ctx, SyncOutcomesJob("schedule"))
	require.NoError(t, err)

	job, err := q.Reserve(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobSyncOutcomes, job.Type)
	assert.Equal(t, "schedule", job.Trigger)

	st, _ := q.Stats(ctx)
	assert.EqualValues(t, 0, st.Waiting)
	assert.EqualValues(t, 1, st.Active)

	require.NoError(t, q.Complete(ctx, job))
	st, _ = q.Stats(ctx)
	assert.EqualValues(t, 0, st.Active)
	assert.EqualValues(t, 1, st.Completed)

	// concluído libera o id para um novo enqueue
	ok, err := q.Enqueue(ctx, SyncOutcomesJob("schedule"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserveEmpty(t *testing.T) {
	q, _ := newQueue(t, Options{})
	job, err := q.Reserve(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestFailRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	q, c := newQueue(t, Options{MaxAttempts: 3, BackoffBase: time.Second})

	_, err := q.Enqueue(ctx, GradeGameJob("g1", "schedule"))
	require.NoError(t, err)
	job, err := q.Reserve(ctx)
	require.NoError(t, err)

	exhausted, err := q.Fail(ctx, job, errors.New("db down"))
	require.NoError(t, err)
	assert.False(t, exhausted)

	// ainda no backoff
	next, err := q.Reserve(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	c.advance(time.Second)
	next, err = q.Reserve(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, 1, next.Attempts)
	assert.Equal(t, "db down", next.LastError)

	st, _ := q.Stats(ctx)
	assert.EqualValues(t, 1, st.Retried)
}

func TestFailExhaustsIntoFailedSet(t *testing.T) {
	ctx := context.Background()
	q, c := newQueue(t, Options{MaxAttempts: 2, BackoffBase: time.Second})

	_, err := q.Enqueue(ctx, GradeGameJob("g1", "schedule"))
	require.NoError(t, err)

	job, _ := q.Reserve(ctx)
	exhausted, err := q.Fail(ctx, job, errors.New("boom"))
	require.NoError(t, err)
	require.False(t, exhausted)

	c.advance(time.Second)
	job, _ = q.Reserve(ctx)
	require.NotNil(t, job)
	exhausted, err = q.Fail(ctx, job, errors.New("boom again"))
	require.NoError(t, err)
	assert.True(t, exhausted)

	st, _ := q.Stats(ctx)
	assert.EqualValues(t, 1, st.Failed)
	assert.EqualValues(t, 1, st.FailedTotal)
	assert.EqualValues(t, 0, st.Active+st.Delayed+st.Waiting)

	rec, err := q.FailedJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Attempts)
	assert.Equal(t, "boom again", rec.LastError)

	// uma nova rodada pode criar o job de novo
	ok, err := q.Enqueue(ctx, GradeGameJob("g1", "schedule"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFailIgnoresJobNoLongerActive(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t, Options{})

	_, _ = q.Enqueue(ctx, GradeGameJob("g1", "schedule"))
	job, _ := q.Reserve(ctx)
	require.NoError(t, q.Complete(ctx, job))

	exhausted, err := q.Fail(ctx, job, errors.New("late"))
	require.NoError(t, err)
	assert.False(t, exhausted)
	st, _ := q.Stats(ctx)
	assert.EqualValues(t, 0, st.Retried)
}

func TestExpiredListsOverdueJobs(t *testing.T) {
	ctx := context.Background()
	q, c := newQueue(t, Options{Timeout: 10 * time.Second})

	_, _ = q.Enqueue(ctx, GradeGameJob("g1", "schedule"))
	_, err := q.Reserve(ctx)
	require.NoError(t, err)

	expired, err := q.Expired(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)

	c.advance(11 * time.Second)
	expired, err = q.Expired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "grade_game:g1", expired[0].ID)

	exhausted, err := q.Fail(ctx, expired[0], ErrJobTimeout)
	require.NoError(t, err)
	assert.False(t, exhausted)
}

func TestBackoffIsCapped(t *testing.T) {
	q, _ := newQueue(t, Options{BackoffBase: time.Second, BackoffMax: 5 * time.Second})
	assert.Equal(t, time.Second, q.Backoff(1))
	assert.Equal(t, 2*time.Second, q.Backoff(2))
	assert.Equal(t, 4*time.Second, q.Backoff(3))
	assert.Equal(t, 5*time.Second, q.Backoff(4))
	assert.Equal(t, 5*time.Second, q.Backoff(10))
}
