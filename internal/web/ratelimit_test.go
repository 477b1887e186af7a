package web

import (
	"testing"
	"time"
)

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests rejected")
	}
	if rl.allow("a") {
		t.Error("third request allowed")
	}
	if !rl.allow("b") {
		t.Error("other client rejected")
	}
	if got := rl.retryAfter("a"); got != 61 {
		t.Errorf("retryAfter = %d, want 61", got)
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("a") {
		t.Error("request after window rejected")
	}
}
