package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	t.Cleanup(rl.Stop)
	clock := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestLimiter_Allow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d must be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Fatal("fourth request must be rejected once the bucket is empty")
	}
	if !rl.Allow("10.0.0.2") {
		t.Fatal("other clients have their own bucket")
	}

	*clock = clock.Add(61 * time.Second)
	if !rl.Allow("10.0.0.1") {
		t.Fatal("a refilled bucket must allow again")
	}

	if m := rl.GetMetrics(); m.Rejected != 1 || m.ClientCount != 2 {
		t.Errorf("unexpected metrics %+v", m)
	}
}

func TestLimiter_RefillsGradually(t *testing.T) {
	rl, clock := newTestLimiter(t, 3)
	for i := 0; i < 3; i++ {
		rl.Allow("a")
	}

	*clock = clock.Add(19 * time.Second)
	if rl.Allow("a") {
		t.Fatal("no token is back before a third of a minute")
	}
	if got := rl.RetryAfter("a"); got != 1 {
		t.Errorf("RetryAfter = %d, want 1", got)
	}

	*clock = clock.Add(2 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("one token must be back after 21s")
	}
	if rl.Allow("a") {
		t.Fatal("only one token refilled")
	}

	*clock = clock.Add(time.Minute)
	rl.cleanupStaleEntries()
	if n := rl.ActiveClients(); n != 0 {
		t.Errorf("ActiveClients = %d after refill, want 0", n)
	}
}

func TestLimiter_RetryAfterAndCleanup(t *testing.T) {
	rl, clock := newTestLimiter(t, 1)
	rl.Allow("a")

	*clock = clock.Add(20500 * time.Millisecond)
	if got := rl.RetryAfter("a"); got != 40 {
		t.Errorf("RetryAfter = %d, want 40", got)
	}
	if got := rl.RetryAfter("unknown"); got != 0 {
		t.Errorf("RetryAfter for unknown client = %d, want 0", got)
	}

	*clock = clock.Add(time.Minute)
	rl.cleanupStaleEntries()
	if n := rl.ActiveClients(); n != 0 {
		t.Errorf("ActiveClients = %d after cleanup, want 0", n)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	key := func(*http.Request) string { return "client" }
	handler := rl.Middleware(key, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
	if rl.limit != DefaultConfig().RequestsPerMinute {
		t.Errorf("limit = %d, want default", rl.limit)
	}
}
