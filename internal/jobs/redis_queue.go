package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const deadLetterLimit = 1000

// claimScript pops the earliest due id, leases it and counts the delivery.
// Returns {payload, attempts} or false when nothing is due.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
  return false
end
local id = ids[1]
redis.call('ZREM', KEYS[1], id)
local payload = redis.call('HGET', KEYS[3], id)
if not payload then
  return false
end
redis.call('ZADD', KEYS[2], ARGV[2], id)
local attempts = redis.call('HINCRBY', KEYS[4], id, 1)
return {payload, attempts}
`)

// requeueScript moves leases that expired before ARGV[1] back to the due set.
var requeueScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[2], id)
  redis.call('ZADD', KEYS[1], ARGV[1], id)
end
return #ids
`)

// RedisQueue keeps due ids in a sorted set scored by due time (unix ms),
// leased ids in a second sorted set scored by lease deadline, job bodies in a
// hash, and delivery counts in a second hash so a lease that expires after a
// crash still counts as an attempt.
type RedisQueue struct {
	client     *redis.Client
	dueKey     string
	leaseKey   string
	payloadKey string
	attemptKey string
	deadKey    string
}

// NewRedisQueue creates a queue under the "lionboard:jobs:<name>" prefix.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	prefix := "lionboard:jobs:" + name
	return &RedisQueue{
		client:     client,
		dueKey:     prefix + ":due",
		leaseKey:   prefix + ":leased",
		payloadKey: prefix + ":payloads",
		attemptKey: prefix + ":attempts",
		deadKey:    prefix + ":dead",
	}
}

func score(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *Job, at time.Time) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.payloadKey, job.ID, raw)
		pipe.HSet(ctx, q.attemptKey, job.ID, job.Attempts)
		pipe.ZAdd(ctx, q.dueKey, redis.Z{Score: float64(at.UnixMilli()), Member: job.ID})
		return nil
	})
	return err
}

// Claim leases the earliest due job and increments its stored attempt count.
func (q *RedisQueue) Claim(ctx context.Context, now time.Time, lease time.Duration) (*Job, error) {
	res, err := claimScript.Run(ctx, q.client,
		[]string{q.dueKey, q.leaseKey, q.payloadKey, q.attemptKey},
		score(now), score(now.Add(lease)),
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	if len(res) != 2 {
		return nil, fmt.Errorf("claim job: unexpected reply %v", res)
	}
	raw, _ := res[0].(string)
	attempts, _ := res[1].(int64)

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	job.Attempts = int(attempts)
	return &job, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job *Job) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.leaseKey, job.ID)
		pipe.HDel(ctx, q.payloadKey, job.ID)
		pipe.HDel(ctx, q.attemptKey, job.ID)
		return nil
	})
	return err
}

func (q *RedisQueue) Retry(ctx context.Context, job *Job, at time.Time) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.leaseKey, job.ID)
		pipe.HSet(ctx, q.payloadKey, job.ID, raw)
		pipe.HSet(ctx, q.attemptKey, job.ID, job.Attempts)
		pipe.ZAdd(ctx, q.dueKey, redis.Z{Score: float64(at.UnixMilli()), Member: job.ID})
		return nil
	})
	return err
}

// Abandon drops the job and keeps a bounded dead-letter record of it.
func (q *RedisQueue) Abandon(ctx context.Context, job *Job, reason string) error {
	job.LastError = reason
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, q.leaseKey, job.ID)
		pipe.HDel(ctx, q.payloadKey, job.ID)
		pipe.HDel(ctx, q.attemptKey, job.ID)
		pipe.LPush(ctx, q.deadKey, raw)
		pipe.LTrim(ctx, q.deadKey, 0, deadLetterLimit-1)
		return nil
	})
	return err
}

func (q *RedisQueue) RequeueStale(ctx context.Context, now time.Time) (int, error) {
	n, err := requeueScript.Run(ctx, q.client, []string{q.dueKey, q.leaseKey}, score(now)).Int()
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return n, nil
}

// DeadLetters returns up to limit abandoned jobs, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int64) ([]Job, error) {
	raws, err := q.client.LRange(ctx, q.deadKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(raws))
	for _, raw := range raws {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		out = append(out, job)
	}
	return out, nil
}
