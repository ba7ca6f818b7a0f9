// Package notify carries admin notifications off the request path.
// Publishing is fire-and-forget from the caller's point of view; a
// separate consumer delivers the messages.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notification is one message for the club admins.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Sink accepts notifications for later delivery.
type Sink interface {
	Publish(ctx context.Context, n Notification) error
}

// Source streams notifications to a delivery worker.
type Source interface {
	Consume(ctx context.Context) (<-chan Notification, error)
}

// InMemory is a channel-backed queue for dev and tests.
type InMemory struct {
	ch chan Notification
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Notification, size)}
}

// Publish enqueues a notification, blocking when the buffer is full.
func (q *InMemory) Publish(ctx context.Context, n Notification) error {
	select {
	case q.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel the delivery worker ranges over.
func (q *InMemory) Consume(ctx context.Context) (<-chan Notification, error) {
	out := make(chan Notification)
	go func() {
		defer close(out)
		for {
			select {
			case n := <-q.ch:
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue is a Redis list-backed queue using LPUSH/BRPOP semantics,
// so notifications survive an api-process restart.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "clubhours:notifications"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues a notification as JSON.
func (q *RedisQueue) Publish(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Consume streams notifications until ctx is cancelled. Transient redis
// errors are retried on the next poll.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Notification, error) {
	out := make(chan Notification)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var n Notification
			if err := json.Unmarshal([]byte(res[1]), &n); err != nil {
				continue
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
