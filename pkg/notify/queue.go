package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Queue carries outbox ids from committed ledger writes to the dispatcher.
type Queue interface {
	Push(ctx context.Context, id uuid.UUID) error
	// Pop waits up to timeout for an id. ok is false when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (id uuid.UUID, ok bool, err error)
}

// ChanQueue is an in-process Queue. Pushes fail instead of blocking once
// the buffer is full; the sweep picks those rows up later.
type ChanQueue struct {
	ch chan uuid.UUID
}

func NewChanQueue(size int) *ChanQueue {
	if size <= 0 {
		size = 256
	}
	return &ChanQueue{ch: make(chan uuid.UUID, size)}
}

var errQueueFull = errors.New("notification queue full")

func (q *ChanQueue) Push(ctx context.Context, id uuid.UUID) error {
	select {
	case q.ch <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errQueueFull
	}
}

func (q *ChanQueue) Pop(ctx context.Context, timeout time.Duration) (uuid.UUID, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case id := <-q.ch:
		return id, true, nil
	case <-timer.C:
		return uuid.Nil, false, nil
	case <-ctx.Done():
		return uuid.Nil, false, ctx.Err()
	}
}

// RedisQueue is a Queue on a Redis list (LPUSH / BRPOP), shared by every
// API instance.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) (*RedisQueue, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "genfuel:notifications"
	}
	return &RedisQueue{client: client, key: key}, nil
}

func (q *RedisQueue) Push(ctx context.Context, id uuid.UUID) error {
	if err := q.client.LPush(ctx, q.key, id.String()).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (uuid.UUID, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("brpop %s: %w", q.key, err)
	}
	// res is [key, value]
	if len(res) != 2 {
		return uuid.Nil, false, fmt.Errorf("brpop %s: unexpected reply %v", q.key, res)
	}
	id, err := uuid.Parse(res[1])
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("brpop %s: bad id %q: %w", q.key, res[1], err)
	}
	return id, true, nil
}
