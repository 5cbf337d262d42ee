// Package ratelimit implements a per-key token bucket used to shield
// the model-fitting endpoints from dashboard refresh storms.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// pruneAbove bounds the bucket map: once it grows past this many
	// keys, idle buckets are swept on the next Allow.
	pruneAbove = 10000

	// idleAfter is how long a bucket may sit untouched before a sweep
	// may evict it. A fresh bucket starts full, so eviction only costs
	// an already-idle caller nothing.
	idleAfter = time.Hour
)

type bucket struct {
	tokens   float64
	capacity float64
	refill   float64 // tokens per second
	last     time.Time
}

// Limiter hands out tokens per key. Keys are typically client IP plus
// endpoint, so the map is swept once it grows past pruneAbove.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	now func() time.Time
}

func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one token for key, creating the bucket at full
// capacity on first sight. Returns false when the bucket is empty.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) > pruneAbove {
		l.prune(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refill: refillPerSec, last: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.refill
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// prune drops buckets idle past idleAfter. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.last) > idleAfter {
			delete(l.buckets, key)
		}
	}
}
