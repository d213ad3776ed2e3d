package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Redis-list backed task queue. Producers LPUSH onto the
// list; the worker BRPOPs, so tasks are processed in enqueue order.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue connects to the Redis server at addr and uses key as the
// list name.
func NewRedisQueue(addr, key string) *RedisQueue {
	return &RedisQueue{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}
}

// Enqueue pushes the task onto the list and returns its id.
func (q *RedisQueue) Enqueue(ctx context.Context, task Task) (string, error) {
	ensureID(&task)
	payload, err := json.Marshal(task)
	if err != nil {
		return "", err
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return "", err
	}
	return task.ID, nil
}

// Dequeue blocks up to one second for the next task; (nil, nil) on timeout.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	values, err := q.client.BRPop(ctx, time.Second, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPop returns [key, value].
	var task Task
	if err := json.Unmarshal([]byte(values[1]), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// Len reports the number of pending tasks.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close releases the underlying Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
