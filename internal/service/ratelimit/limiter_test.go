package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func newTestLimiter(start time.Time) (*Limiter, *time.Time) {
	l := New()
	now := start
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowConsumesTokens(t *testing.T) {
	l, _ := newTestLimiter(time.Now())

	for i := 0; i < 3; i++ {
		if !l.Allow("k", 3, 0) {
			t.Fatalf("call %d: want allowed", i)
		}
	}
	if l.Allow("k", 3, 0) {
		t.Fatal("want denied once capacity is spent")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	l, now := newTestLimiter(time.Now())

	if !l.Allow("k", 1, 2) {
		t.Fatal("first call should pass")
	}
	if l.Allow("k", 1, 2) {
		t.Fatal("bucket should be empty")
	}

	// 2 tokens/sec: half a second refills the single-token bucket.
	*now = now.Add(500 * time.Millisecond)
	if !l.Allow("k", 1, 2) {
		t.Fatal("want allowed after refill")
	}
}

func TestRefillCapsAtCapacity(t *testing.T) {
	l, now := newTestLimiter(time.Now())

	l.Allow("k", 2, 1)
	*now = now.Add(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		if l.Allow("k", 2, 0) {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("allowed = %d after long idle, want capacity 2", allowed)
	}
}

func TestDistinctKeysAreIsolated(t *testing.T) {
	l, _ := newTestLimiter(time.Now())

	if !l.Allow("a", 1, 0) {
		t.Fatal("key a should pass")
	}
	if l.Allow("a", 1, 0) {
		t.Fatal("key a should be exhausted")
	}
	if !l.Allow("b", 1, 0) {
		t.Fatal("key b has its own bucket")
	}
}

func TestPruneEvictsIdleBuckets(t *testing.T) {
	l, now := newTestLimiter(time.Now())

	for i := 0; i < 50; i++ {
		l.Allow(fmt.Sprintf("idle-%d", i), 5, 1)
	}
	*now = now.Add(idleAfter + time.Minute)
	l.Allow("fresh", 5, 1)

	l.mu.Lock()
	l.prune(*now)
	size := len(l.buckets)
	l.mu.Unlock()

	if size != 1 {
		t.Fatalf("buckets = %d after prune, want 1 (only fresh)", size)
	}
}
