// Package ratelimit implements fixed-window request limits keyed by client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter decides whether another request for key fits into the window. It
// also returns how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration)
}

const sweepInterval = time.Minute

// MemoryLimiter keeps windows in process memory. Expired windows are dropped
// at most once per sweepInterval.
type MemoryLimiter struct {
	mu        sync.Mutex
	store     map[string]*bucket
	now       func() time.Time
	nextSweep time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

// NewMemory creates an in-process limiter
func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{store: make(map[string]*bucket), now: time.Now}
}

// Allow implements Limiter
func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	b, ok := m.store[key]
	if !ok || now.After(b.resetAt) || b.window != window {
		b = &bucket{resetAt: now.Add(window), window: window}
		m.store[key] = b
	}

	if b.count >= limit {
		return false, b.resetAt.Sub(now)
	}

	b.count++
	return true, b.resetAt.Sub(now)
}

func (m *MemoryLimiter) sweep(now time.Time) {
	if now.Before(m.nextSweep) {
		return
	}
	for key, b := range m.store {
		if now.After(b.resetAt) {
			delete(m.store, key)
		}
	}
	m.nextSweep = now.Add(sweepInterval)
}

// incrWindow counts a hit and makes sure the key expires, in one atomic step.
// Keys left without a TTL get one on their next hit.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RedisLimiter shares windows between instances through redis counters
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a limiter backed by redis
func NewRedis(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "ratelimit:"}
}

// Allow implements Limiter. Requests are allowed when redis is unavailable.
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration) {
	res, err := incrWindow.Run(ctx, r.client, []string{r.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		log.Warn().Err(err).Str("key", key).Msg("Rate limiter unavailable")
		return true, 0
	}

	count := res[0]
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	return count <= int64(limit), ttl
}
