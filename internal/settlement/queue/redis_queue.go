// Package queue é a fila durável de jobs de liquidação sobre Redis.
//
//	waiting  (list)  ids prontos para execução
//	delayed  (zset)  ids aguardando backoff, score = quando ficam prontos
//	active   (zset)  ids em execução, score = prazo; vencido volta para retry
//	failed   (zset)  ids que esgotaram as tentativas, score = quando falharam
//	job:{id} (string) o Job em JSON, enquanto estiver vivo
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobType identifica o trabalho
type JobType string

const (
	JobSyncOutcomes JobType = "sync_outcomes"
	JobGradeGame    JobType = "grade_game"
)

var ErrJobTimeout = errors.New("job timed out")

// Job é a unidade de trabalho. O ID é determinístico para deduplicar.
type Job struct {
	ID         string    `json:"id"`
	Type       JobType   `json:"type"`
	GameRef    string    `json:"gameRef,omitempty"`
	Trigger    string    `json:"trigger,omitempty"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	FailedAt   time.Time `json:"failedAt,omitempty"`
}

// SyncOutcomesJob cria o job de sincronização do feed
func SyncOutcomesJob(trigger string) Job {
	return Job{ID: string(JobSyncOutcomes), Type: JobSyncOutcomes, Trigger: trigger}
}

// GradeGameJob cria o job de liquidação das apostas abertas de um jogo
func GradeGameJob(gameRef, trigger string) Job {
	return Job{ID: string(JobGradeGame) + ":" + gameRef, Type: JobGradeGame, GameRef: gameRef, Trigger: trigger}
}

type Options struct {
	Prefix          string
	MaxAttempts     int
	Timeout         time.Duration
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	FailedRetention time.Duration
}

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = "settle:q"
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 5 * time.Minute
	}
	if o.FailedRetention <= 0 {
		o.FailedRetention = 7 * 24 * time.Hour
	}
	return o
}

// Stats é a fotografia da fila usada pelo health check
type Stats struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Failed    int64 `json:"failed"`
	Completed int64 `json:"completed"`
	// FailedTotal e Retried são contadores acumulados
	FailedTotal int64 `json:"failedTotal"`
	Retried     int64 `json:"retried"`
}

type Queue struct {
	rdb  *redis.Client
	opts Options
	now  func() time.Time
}

func New(rdb *redis.Client, opts Options) *Queue {
	return &Queue{rdb: rdb, opts: opts.withDefaults(), now: time.Now}
}

// MaxAttempts é o limite de execuções por job
func (q *Queue) MaxAttempts() int { return q.opts.MaxAttempts }

func (q *Queue) key(name string) string  { return q.opts.Prefix + ":" + name }
func (q *Queue) jobKey(id string) string { return q.opts.Prefix + ":job:" + id }
func (q *Queue) failedKey(id string) string {
	return q.opts.Prefix + ":failed:" + id
}

func ms(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

// enqueueScript grava o job só se não houver outro vivo com o mesmo id
var enqueueScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX') then
  redis.call('RPUSH', KEYS[2], ARGV[2])
  return 1
end
return 0
`)

// reserveScript promove os atrasados vencidos e move o próximo id para active com prazo
var reserveScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1], 'LIMIT', 0, 100)
for _, id in ipairs(due) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('RPUSH', KEYS[1], id)
end
local id = redis.call('LPOP', KEYS[1])
if not id then
  return false
end
redis.call('ZADD', KEYS[3], ARGV[2], id)
return id
`)

// Enqueue adiciona o job. false significa que já existe um job vivo com o mesmo id.
func (q *Queue) Enqueue(ctx context.Context, job Job) (bool, error) {
	job.Attempts = 0
	job.LastError = ""
	job.EnqueuedAt = q.now().UTC()
	b, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	n, err := enqueueScript.Run(ctx, q.rdb, []string{q.jobKey(job.ID), q.key("waiting")}, b, job.ID).Int()
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", job.ID, err)
	}
	return n == 1, nil
}

// Reserve pega o próximo job pronto. (nil, nil) quando a fila está vazia.
func (q *Queue) Reserve(ctx context.Context) (*Job, error) {
	now := q.now()
	id, err := reserveScript.Run(ctx, q.rdb,
		[]string{q.key("waiting"), q.key("delayed"), q.key("active")},
		ms(now), ms(now.Add(q.opts.Timeout)),
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve: %w", err)
	}

	job, err := q.load(ctx, id)
	if errors.Is(err, redis.Nil) {
		// registro sumiu (concluído por outro worker); descarta a entrada órfã
		q.rdb.ZRem(ctx, q.key("active"), id)
		return nil, nil
	}
	return job, err
}

func (q *Queue) load(ctx context.Context, id string) (*Job, error) {
	raw, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Complete encerra o job com sucesso e descarta qualquer cópia reagendada
func (q *Queue) Complete(ctx context.Context, job *Job) error {
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.key("active"), job.ID)
		p.ZRem(ctx, q.key("delayed"), job.ID)
		p.LRem(ctx, q.key("waiting"), 0, job.ID)
		p.Del(ctx, q.jobKey(job.ID))
		p.HIncrBy(ctx, q.key("stats"), "completed", 1)
		return nil
	})
	return err
}

// Backoff é o atraso exponencial antes da tentativa seguinte
func (q *Queue) Backoff(attempts int) time.Duration {
	d := q.opts.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= q.opts.BackoffMax {
			return q.opts.BackoffMax
		}
	}
	return d
}

// Fail registra a falha. Abaixo do limite reagenda com backoff; no limite move para failed.
// exhausted=true indica que o job não será mais tentado. Job que já não está ativo é ignorado.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) (exhausted bool, err error) {
	removed, err := q.rdb.ZRem(ctx, q.key("active"), job.ID).Result()
	if err != nil {
		return false, err
	}
	if removed == 0 {
		return false, nil
	}

	now := q.now()
	job.Attempts++
	job.LastError = cause.Error()

	if job.Attempts < q.opts.MaxAttempts {
		b, err := json.Marshal(job)
		if err != nil {
			return false, err
		}
		readyAt := now.Add(q.Backoff(job.Attempts))
		_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, q.jobKey(job.ID), b, 0)
			p.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(readyAt.UnixMilli()), Member: job.ID})
			p.HIncrBy(ctx, q.key("stats"), "retried", 1)
			return nil
		})
		return false, err
	}

	job.FailedAt = now.UTC()
	b, err := json.Marshal(job)
	if err != nil {
		return true, err
	}
	cutoff := now.Add(-q.opts.FailedRetention)
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, q.jobKey(job.ID))
		p.Set(ctx, q.failedKey(job.ID), b, q.opts.FailedRetention)
		p.ZAdd(ctx, q.key("failed"), redis.Z{Score: float64(now.UnixMilli()), Member: job.ID})
		p.ZRemRangeByScore(ctx, q.key("failed"), "-inf", ms(cutoff))
		p.HIncrBy(ctx, q.key("stats"), "failed", 1)
		return nil
	})
	return true, err
}

// Expired lista os jobs ativos cujo prazo venceu
func (q *Queue) Expired(ctx context.Context) ([]*Job, error) {
	ids, err := q.rdb.ZRangeByScore(ctx, q.key("active"), &redis.ZRangeBy{Min: "-inf", Max: ms(q.now())}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := q.load(ctx, id)
		if errors.Is(err, redis.Nil) {
			q.rdb.ZRem(ctx, q.key("active"), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

// FailedJob devolve o registro de um job esgotado, se ainda retido
func (q *Queue) FailedJob(ctx context.Context, id string) (*Job, error) {
	raw, err := q.rdb.Get(ctx, q.failedKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var (
		waiting, active, delayed, failed *redis.IntCmd
		counters                         *redis.MapStringStringCmd
	)
	_, err := q.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		waiting = p.LLen(ctx, q.key("waiting"))
		active = p.ZCard(ctx, q.key("active"))
		delayed = p.ZCard(ctx, q.key("delayed"))
		failed = p.ZCard(ctx, q.key("failed"))
		counters = p.HGetAll(ctx, q.key("stats"))
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	c := counters.Val()
	return Stats{
		Waiting:     waiting.Val(),
		Active:      active.Val(),
		Delayed:     delayed.Val(),
		Failed:      failed.Val(),
		Completed:   atoi(c["completed"]),
		FailedTotal: atoi(c["failed"]),
		Retried:     atoi(c["retried"]),
	}, nil
}

func atoi(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
