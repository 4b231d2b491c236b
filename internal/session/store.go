// Package session implements the Session Store: a typed keyed mapping to
// JSON-serializable session values, backed by Redis with TTL, falling back
// to an in-process ttlcache.Store when no Redis connection is configured
// (demo mode).
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/ttlcache"
)

const (
	// DefaultTTL is the TTL for most session kinds.
	DefaultTTL = time.Hour
	// QueueTTL is the longer TTL Queue sessions use, per spec.
	QueueTTL = 2 * time.Hour
)

// Store is the Session Store. It namespaces keys by kind ("session",
// "queue", "inbox") and serializes values as JSON.
type Store struct {
	redis *redis.Client
	local *ttlcache.Store[string, []byte]
}

// New creates a Store. redisURL empty means demo mode: an in-memory
// fallback is used instead of Redis.
func New(redisURL string) *Store {
	s := &Store{
		local: ttlcache.New[string, []byte](time.Minute),
	}
	if redisURL == "" {
		logger.Info("session store running in demo mode (no REDIS_URL)")
		return s
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL, falling back to in-memory session store", "error", err)
		return s
	}
	s.redis = redis.NewClient(opts)
	return s
}

func key(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// Save writes value (JSON-marshaled) under prefix:id with the given TTL.
// This is an atomic whole-value replacement; callers needing read-modify-
// write must combine it with their own guard (see internal/agent/queue).
func (s *Store) Save(ctx context.Context, prefix, id string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal session %s:%s: %w", prefix, id, err)
	}

	k := key(prefix, id)
	if s.redis != nil {
		if err := s.redis.Set(ctx, k, data, ttl).Err(); err != nil {
			return fmt.Errorf("redis save %s: %w", k, err)
		}
		return nil
	}

	s.local.Set(k, data, ttl)
	return nil
}

// Load reads the value stored under prefix:id into dest (a pointer).
// Returns ok=false if no value is present (expired or never written).
func (s *Store) Load(ctx context.Context, prefix, id string, dest any) (bool, error) {
	k := key(prefix, id)

	var data []byte
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, k).Bytes()
		if err == redis.Nil {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("redis load %s: %w", k, err)
		}
		data = raw
	} else {
		raw, ok := s.local.Get(k)
		if !ok {
			return false, nil
		}
		data = raw
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal session %s: %w", k, err)
	}
	return true, nil
}

// Delete removes prefix:id.
func (s *Store) Delete(ctx context.Context, prefix, id string) error {
	k := key(prefix, id)
	if s.redis != nil {
		return s.redis.Del(ctx, k).Err()
	}
	s.local.Delete(k)
	return nil
}

// Redis exposes the underlying client (nil in demo mode) for components
// that need raw Redis operations not covered by Save/Load (TTS cache,
// tracing ring, build previews).
func (s *Store) Redis() *redis.Client {
	return s.redis
}

// Local exposes the in-memory fallback for components building their own
// demo-mode paths (e.g. TTS cache, build preview store) atop the same
// eviction policy as the session store.
func (s *Store) Local() *ttlcache.Store[string, []byte] {
	return s.local
}
