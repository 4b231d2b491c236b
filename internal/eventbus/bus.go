// Package eventbus implements the Event Bus: a per-session FIFO queue with
// a blocking, timeout-bounded pop. Backed by a Redis list (RPUSH/BLPOP)
// matching the original "events:{id}" key scheme; falls back to an
// in-process per-session channel queue in demo mode.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
)

const ttl = time.Hour

// Bus is the Event Bus. Queues are disjoint per session id; there is no
// ordering guarantee across sessions.
type Bus struct {
	redis *redis.Client

	mu     sync.Mutex
	queues map[string]chan models.Event
}

// New creates a Bus. A nil redisClient runs the in-memory fallback.
func New(redisClient *redis.Client) *Bus {
	return &Bus{
		redis:  redisClient,
		queues: make(map[string]chan models.Event),
	}
}

func eventsKey(id string) string {
	return fmt.Sprintf("events:%s", id)
}

// Push appends an event to session id's queue in producer order.
func (b *Bus) Push(ctx context.Context, id string, event models.Event) error {
	if b.redis != nil {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		k := eventsKey(id)
		pipe := b.redis.TxPipeline()
		pipe.RPush(ctx, k, data)
		pipe.Expire(ctx, k, ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("push event %s: %w", k, err)
		}
		return nil
	}

	ch := b.localQueue(id)
	select {
	case ch <- event:
	default:
		// Queue is full (very slow/absent consumer); drop the oldest rather
		// than block the producer forever.
		select {
		case <-ch:
		default:
		}
		ch <- event
	}
	return nil
}

// Pop blocks up to timeout waiting for the next event on session id's
// queue. Returns ok=false on timeout (not an error).
func (b *Bus) Pop(ctx context.Context, id string, timeout time.Duration) (models.Event, bool, error) {
	if b.redis != nil {
		k := eventsKey(id)
		res, err := b.redis.BLPop(ctx, timeout, k).Result()
		if err == redis.Nil {
			return models.Event{}, false, nil
		}
		if err != nil {
			return models.Event{}, false, fmt.Errorf("pop event %s: %w", k, err)
		}
		// BLPop returns [key, value].
		if len(res) < 2 {
			return models.Event{}, false, nil
		}
		var event models.Event
		if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
			return models.Event{}, false, fmt.Errorf("unmarshal event %s: %w", k, err)
		}
		return event, true, nil
	}

	ch := b.localQueue(id)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case event := <-ch:
		return event, true, nil
	case <-timer.C:
		return models.Event{}, false, nil
	case <-ctx.Done():
		return models.Event{}, false, ctx.Err()
	}
}

// Clear drops all pending events for session id.
func (b *Bus) Clear(ctx context.Context, id string) error {
	if b.redis != nil {
		return b.redis.Del(ctx, eventsKey(id)).Err()
	}

	b.mu.Lock()
	delete(b.queues, id)
	b.mu.Unlock()
	return nil
}

func (b *Bus) localQueue(id string) chan models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.queues[id]
	if !ok {
		ch = make(chan models.Event, 64)
		b.queues[id] = ch
	}
	return ch
}

// Emit is a convenience wrapper matching the original emit_event() helper:
// it stamps the current time and pushes in one call, logging (not
// propagating) any push failure since event delivery is best-effort.
func (b *Bus) Emit(ctx context.Context, sessionID, eventType string, data any) {
	event := models.Event{Type: eventType, Data: data, Timestamp: time.Now()}
	if err := b.Push(ctx, sessionID, event); err != nil {
		logger.Warn("failed to push event", "session_id", sessionID, "event", eventType, "error", err)
	}
}
