package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow(1) || !rl.Allow(1) {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow(1) {
		t.Fatal("third request within window must be limited")
	}
	if !rl.Allow(2) {
		t.Fatal("other users are limited independently")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow(1) {
		t.Fatal("request after window must pass")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Close()
	for i := 0; i < 100; i++ {
		if !rl.Allow(1) {
			t.Fatal("zero limit disables limiting")
		}
	}
}
