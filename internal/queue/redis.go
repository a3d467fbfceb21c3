// Package queue carries engine events from producers to the worker through a
// pair of Redis lists. Popping moves an event atomically into a processing list,
// so an event is only lost once the worker acknowledges it.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/accolade/internal/badge"
	"github.com/rafaeljc/accolade/internal/logger"
	"github.com/rafaeljc/accolade/internal/observability"
)

// ErrMalformedMessage is returned by Dequeue for payloads that are not a valid event.
// The message is still returned so it can be acknowledged and dropped.
var ErrMalformedMessage = errors.New("malformed queue message")

// Message is an event popped from the queue, along with its raw payload.
type Message struct {
	Event badge.Event
	Raw   string
}

// RedisQueue is a reliable FIFO queue over two Redis lists.
type RedisQueue struct {
	client     *redis.Client
	name       string
	processing string
}

// NewRedisQueue creates a queue on the given lists.
func NewRedisQueue(client *redis.Client, name, processing string) *RedisQueue {
	if client == nil {
		panic("queue: redis client cannot be nil")
	}
	if name == "" || processing == "" || name == processing {
		panic("queue: queue and processing list names must be distinct and non-empty")
	}
	return &RedisQueue{client: client, name: name, processing: processing}
}

// Enqueue appends the event and returns its ID, assigning one if absent.
func (q *RedisQueue) Enqueue(ctx context.Context, ev badge.Event) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, raw).Err(); err != nil {
		return "", fmt.Errorf("failed to enqueue event: %w", err)
	}
	observability.QueueEnqueuedTotal.WithLabelValues(string(ev.Type)).Inc()
	return ev.ID, nil
}

// Dispatch enqueues the event for asynchronous evaluation. Results are always nil.
func (q *RedisQueue) Dispatch(ctx context.Context, ev badge.Event) ([]badge.AwardResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	id, err := q.Enqueue(ctx, ev)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Debug("event enqueued",
		slog.String("event_id", id),
		slog.String("event_type", string(ev.Type)),
		slog.String("user_id", ev.UserID),
	)
	return nil, nil
}

// Dequeue blocks up to timeout for the oldest event and moves it to the
// processing list. It returns (nil, nil) when the timeout elapses.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Message, error) {
	raw, err := q.client.BLMove(ctx, q.name, q.processing, "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue event: %w", err)
	}

	msg := &Message{Raw: raw}
	if err := json.Unmarshal([]byte(raw), &msg.Event); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := msg.Event.Validate(); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, nil
}

// Ack removes a processed message from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, msg *Message) error {
	if err := q.client.LRem(ctx, q.processing, 1, msg.Raw).Err(); err != nil {
		return fmt.Errorf("failed to ack event: %w", err)
	}
	return nil
}

// RequeueOrphans moves everything left in the processing list back to the
// queue. It must only run while no worker is consuming, typically at startup.
func (q *RedisQueue) RequeueOrphans(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.name, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to requeue orphaned events: %w", err)
		}
		n++
	}
}

// Depth returns the number of events waiting and updates the depth gauge.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	observability.RedisQueueDepth.Set(float64(n))
	return n, nil
}

// RunDepthMonitor samples the queue depth until ctx is cancelled.
func (q *RedisQueue) RunDepthMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := q.Depth(ctx); err != nil && ctx.Err() == nil {
			logger.FromContext(ctx).Warn("queue depth sample failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
