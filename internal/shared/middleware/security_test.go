package middleware

import (
	"testing"
	"time"
)

func TestTokenBucketLimiterAllowsWithinBurst(t *testing.T) {
	l := NewTokenBucketLimiter(1, 2)

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("requests within the burst should be allowed")
	}
	if l.Allow("10.0.0.1") {
		t.Error("third immediate request should exceed the burst")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("a different key holds its own bucket")
	}
}

func TestTokenBucketLimiterSweepsIdleKeys(t *testing.T) {
	l := NewTokenBucketLimiter(1, 1)
	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")

	l.mu.Lock()
	l.limiters["10.0.0.1"].lastSeen = time.Now().Add(-l.maxIdle - time.Second)
	l.mu.Unlock()

	l.removeStale()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.limiters["10.0.0.1"]; exists {
		t.Error("idle bucket should have been swept")
	}
	if _, exists := l.limiters["10.0.0.2"]; !exists {
		t.Error("recently used bucket should survive the sweep")
	}
}
