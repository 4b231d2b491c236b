// Package ttscache implements the TTS Cache: a content-addressed audio
// cache keyed by the MD5 of the synthesized text, over the same Redis
// connection (or in-memory fallback) as the Session Store.
package ttscache

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/DeepNandre/friendlyy/internal/ttlcache"
)

const ttl = 24 * time.Hour

// Cache is the TTS Cache.
type Cache struct {
	redis *redis.Client
	local *ttlcache.Store[string, string]
}

// New creates a Cache. A nil redisClient runs the in-memory fallback.
func New(redisClient *redis.Client) *Cache {
	return &Cache{
		redis: redisClient,
		local: ttlcache.New[string, string](time.Minute),
	}
}

// key returns the content-addressed cache key for text: identical text
// (byte-for-byte, case- and whitespace-sensitive) always maps to the same
// key.
func key(text string) string {
	return "tts:" + Hash(text)
}

// Hash returns the MD5 hex digest used to address text's cached audio,
// exposed so callers (the Blitz agent's call-control URL, via
// voice.Synthesize) can reference
// cached audio without holding onto the original text.
func Hash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetByHash looks up cached audio directly by its content hash, for the
// audio-serving HTTP handler that only has the URL's hash segment.
func (c *Cache) GetByHash(ctx context.Context, hash string) (string, bool, error) {
	k := "tts:" + hash
	if c.redis != nil {
		val, err := c.redis.Get(ctx, k).Result()
		if err == redis.Nil {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("tts cache get: %w", err)
		}
		return val, true, nil
	}

	val, ok := c.local.Get(k)
	return val, ok, nil
}

// Get returns the base64-encoded audio previously stored for text, if any.
func (c *Cache) Get(ctx context.Context, text string) (string, bool, error) {
	k := key(text)
	if c.redis != nil {
		val, err := c.redis.Get(ctx, k).Result()
		if err == redis.Nil {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("tts cache get: %w", err)
		}
		return val, true, nil
	}

	val, ok := c.local.Get(k)
	return val, ok, nil
}

// Put stores audio (raw bytes) for text, base64-encoding it for storage.
func (c *Cache) Put(ctx context.Context, text string, audio []byte) error {
	encoded := base64.StdEncoding.EncodeToString(audio)
	k := key(text)

	if c.redis != nil {
		return c.redis.Set(ctx, k, encoded, ttl).Err()
	}

	c.local.Set(k, encoded, ttl)
	return nil
}
