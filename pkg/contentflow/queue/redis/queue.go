// Package redis implements the contentflow task queue on a Redis list:
// RPUSH at the tail, blocking BLPOP at the head. The pop hands each task to
// exactly one consumer; there is no acknowledgement and no requeue.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
)

const (
	// dequeueRetries bounds how often a failed blocking pop is retried
	// before the failure is escalated to the caller.
	dequeueRetries = 3
	// dequeueRetryDelay is the pause between those retries.
	dequeueRetryDelay = 10 * time.Second
)

// Config options for the Redis-backed queue.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Queue implements contentflow.TaskQueue on a named Redis list.
type Queue struct {
	client     *goredis.Client
	key        string
	retries    int
	retryDelay time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg Config) (*Queue, error) {
	if cfg.Queue == "" {
		return nil, errors.New("queue name is required")
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Queue{
		client:     client,
		key:        cfg.Queue,
		retries:    dequeueRetries,
		retryDelay: dequeueRetryDelay,
	}, nil
}

// Close closes the underlying connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

// Enqueue appends the task to the tail of the list.
func (q *Queue) Enqueue(ctx context.Context, task contentflow.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout waiting for the oldest task. It returns
// (nil, nil) when the wait elapsed with nothing available. Transport
// failures are retried a bounded number of times with a fixed pause before
// the error escalates to the caller.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*contentflow.Task, error) {
	var lastErr error
	for attempt := 0; attempt < q.retries; attempt++ {
		vals, err := q.client.BLPop(ctx, timeout, q.key).Result()
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			slog.Error("task pop failed", "attempt", attempt+1, "error", err)
			if attempt < q.retries-1 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(q.retryDelay):
				}
			}
			continue
		}

		var task contentflow.Task
		if err := json.Unmarshal([]byte(vals[1]), &task); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		return &task, nil
	}

	return nil, fmt.Errorf("dequeue task: %w", lastErr)
}
