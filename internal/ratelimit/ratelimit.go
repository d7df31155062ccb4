// Package ratelimit provides per-key token buckets for throttling API
// writes by client address.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused key keeps its bucket.
const DefaultIdleTTL = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// KeyedRateLimiter hands each key its own token bucket. Buckets unused for
// longer than the idle TTL are dropped by a background sweeper.
type KeyedRateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a limiter allowing perMinute requests per key per minute with
// the given burst. idleTTL <= 0 selects DefaultIdleTTL.
func New(perMinute, burst int, idleTTL time.Duration) *KeyedRateLimiter {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	krl := &KeyedRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go krl.sweepLoop()
	return krl
}

// Allow reports whether a request for key may proceed now.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.get(key).Allow()
}

// Wait blocks until key has a token or ctx is done.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.get(key).Wait(ctx)
}

// Len returns the number of tracked keys.
func (krl *KeyedRateLimiter) Len() int {
	krl.mu.RLock()
	defer krl.mu.RUnlock()
	return len(krl.buckets)
}

func (krl *KeyedRateLimiter) get(key string) *rate.Limiter {
	now := krl.now().UnixNano()

	krl.mu.RLock()
	b, ok := krl.buckets[key]
	krl.mu.RUnlock()
	if ok {
		b.lastSeen.Store(now)
		return b.limiter
	}

	krl.mu.Lock()
	defer krl.mu.Unlock()
	if b, ok = krl.buckets[key]; !ok {
		b = &bucket{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.buckets[key] = b
	}
	b.lastSeen.Store(now)
	return b.limiter
}

// Stop ends the sweeper. It is safe to call more than once.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

func (krl *KeyedRateLimiter) sweepLoop() {
	ticker := time.NewTicker(krl.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-krl.done:
			return
		case <-ticker.C:
			krl.sweep()
		}
	}
}

// sweep drops buckets idle for longer than the TTL.
func (krl *KeyedRateLimiter) sweep() int {
	cutoff := krl.now().Add(-krl.idleTTL).UnixNano()

	krl.mu.Lock()
	defer krl.mu.Unlock()

	removed := 0
	for key, b := range krl.buckets {
		if b.lastSeen.Load() < cutoff {
			delete(krl.buckets, key)
			removed++
		}
	}
	return removed
}
