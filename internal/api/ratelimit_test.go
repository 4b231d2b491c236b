package api

import "testing"

func TestRateLimiterAllowsUpToLimitThenBlocks(t *testing.T) {
	rl := newRateLimiter(2)
	if !rl.allow("client-1") {
		t.Fatal("first request should be allowed")
	}
	if !rl.allow("client-1") {
		t.Fatal("second request should be allowed")
	}
	if rl.allow("client-1") {
		t.Error("third request within the window should be blocked")
	}
}

func TestRateLimiterTracksKeysIndependently(t *testing.T) {
	rl := newRateLimiter(1)
	if !rl.allow("client-1") {
		t.Fatal("client-1's first request should be allowed")
	}
	if !rl.allow("client-2") {
		t.Error("client-2 should have its own limit, unaffected by client-1")
	}
}
