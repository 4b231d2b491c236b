// Package tracing implements the Tracing Store: a bounded in-memory ring
// of structured operation outcomes with cached aggregations, mirroring the
// TTL store's background-cleanup shape but evicting by size rather than
// time. All writes are fire-and-forget — logging a trace never returns an
// error the caller must handle.
package tracing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/DeepNandre/friendlyy/internal/logger"
)

const (
	ringSize        = 500
	persistListSize = 1000
	persistListKey  = "friendly:traces"
)

// Trace is one recorded operation outcome.
type Trace struct {
	Operation  string         `json:"operation"`
	Timestamp  time.Time      `json:"timestamp"`
	Success    bool           `json:"success"`
	DurationS  float64        `json:"duration_s"`
	Input      any            `json:"input,omitempty"`
	Output     any            `json:"output,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// PerformanceSummary aggregates success rate and latency across all traced
// operations, broken down by operation name.
type PerformanceSummary struct {
	TotalOperations int                        `json:"total_operations"`
	SuccessRate     float64                    `json:"success_rate"`
	AvgDurationS    float64                    `json:"avg_duration_s"`
	ByOperation     map[string]OperationStats  `json:"by_operation"`
}

// OperationStats aggregates one operation name's outcomes.
type OperationStats struct {
	Count        int     `json:"count"`
	SuccessCount int     `json:"success_count"`
	SuccessRate  float64 `json:"success_rate"`
	AvgDurationS float64 `json:"avg_duration_s"`
}

// ImprovementPoint is one bucket of the success-rate-over-time series.
type ImprovementPoint struct {
	BucketStart time.Time `json:"bucket_start"`
	Count       int       `json:"count"`
	SuccessRate float64   `json:"success_rate"`
}

// Store is the Tracing Store: a fixed-size ring buffer with a cached,
// invalidate-on-write performance summary.
type Store struct {
	redis *redis.Client

	mu      sync.Mutex
	ring    []Trace
	next    int
	count   int
	summary *PerformanceSummary
}

// New creates a Store. A nil redisClient disables the hydration-on-restart
// persistence; the ring itself always runs in-memory.
func New(redisClient *redis.Client) *Store {
	return &Store{
		redis: redisClient,
		ring:  make([]Trace, ringSize),
	}
}

// Log records one trace outcome. Never blocks the caller on a failure: any
// error persisting to the KV service is logged and swallowed.
func (s *Store) Log(ctx context.Context, t Trace) {
	defer func() {
		// Tracing must never crash the caller's workflow.
		if r := recover(); r != nil {
			logger.Error("tracing store panicked, discarding trace", "recover", r)
		}
	}()

	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.ring[s.next] = t
	s.next = (s.next + 1) % ringSize
	if s.count < ringSize {
		s.count++
	}
	s.summary = nil
	s.mu.Unlock()

	if s.redis != nil {
		go s.persist(ctx, t)
	}
}

func (s *Store) persist(ctx context.Context, t Trace) {
	data, err := json.Marshal(t)
	if err != nil {
		logger.Warn("tracing: marshal failed", "error", err)
		return
	}
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, persistListKey, data)
	pipe.LTrim(ctx, persistListKey, 0, persistListSize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("tracing: persist failed", "error", err)
	}
}

// snapshot returns the ring's current contents in insertion order (oldest
// first). Caller must hold s.mu.
func (s *Store) snapshot() []Trace {
	out := make([]Trace, 0, s.count)
	if s.count < ringSize {
		out = append(out, s.ring[:s.count]...)
		return out
	}
	out = append(out, s.ring[s.next:]...)
	out = append(out, s.ring[:s.next]...)
	return out
}

// GetRecentTraces returns up to limit traces, newest first, optionally
// filtered by operation name.
func (s *Store) GetRecentTraces(operation string, limit int) []Trace {
	s.mu.Lock()
	all := s.snapshot()
	s.mu.Unlock()

	out := make([]Trace, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if operation != "" && all[i].Operation != operation {
			continue
		}
		out = append(out, all[i])
	}
	return out
}

// GetPerformanceSummary returns the cached aggregate summary, recomputing
// it if the ring has changed since the last call.
func (s *Store) GetPerformanceSummary() PerformanceSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summary != nil {
		return *s.summary
	}

	all := s.snapshot()
	byOp := make(map[string]*OperationStats)
	var totalSuccess int
	var totalDuration float64

	for _, t := range all {
		stats, ok := byOp[t.Operation]
		if !ok {
			stats = &OperationStats{}
			byOp[t.Operation] = stats
		}
		stats.Count++
		stats.AvgDurationS += t.DurationS
		if t.Success {
			stats.SuccessCount++
			totalSuccess++
		}
		totalDuration += t.DurationS
	}

	result := make(map[string]OperationStats, len(byOp))
	for name, stats := range byOp {
		if stats.Count > 0 {
			stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.Count)
			stats.AvgDurationS /= float64(stats.Count)
		}
		result[name] = *stats
	}

	summary := PerformanceSummary{
		TotalOperations: len(all),
		ByOperation:     result,
	}
	if len(all) > 0 {
		summary.SuccessRate = float64(totalSuccess) / float64(len(all))
		summary.AvgDurationS = totalDuration / float64(len(all))
	}

	s.summary = &summary
	return summary
}

// improvementBucket is the width of one GetImprovementData bucket.
const improvementBucket = time.Hour

// GetImprovementData buckets traces by hour and reports the success rate
// progression over time, surfacing whether the system is "learning" across
// a session's lifetime.
func (s *Store) GetImprovementData() []ImprovementPoint {
	s.mu.Lock()
	all := s.snapshot()
	s.mu.Unlock()

	if len(all) == 0 {
		return nil
	}

	buckets := make(map[int64]*ImprovementPoint)
	var order []int64
	for _, t := range all {
		key := t.Timestamp.Truncate(improvementBucket).Unix()
		b, ok := buckets[key]
		if !ok {
			b = &ImprovementPoint{BucketStart: t.Timestamp.Truncate(improvementBucket)}
			buckets[key] = b
			order = append(order, key)
		}
		b.Count++
		if t.Success {
			b.SuccessRate += 1
		}
	}

	points := make([]ImprovementPoint, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		if b.Count > 0 {
			b.SuccessRate /= float64(b.Count)
		}
		points = append(points, *b)
	}
	return points
}
