package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/subinesh21/codelens-ai/internal/config"
)

func limiterOf(rps float64, burst int) *RateLimiter {
	return NewRateLimiter(config.Rate{
		RequestsPerSecond: rps,
		Burst:             burst,
		CleanupInterval:   time.Minute,
		MaxIdleTime:       time.Minute,
	})
}

func hitFrom(handler http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = ip + ":54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func okBackend() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBurstThenReject(t *testing.T) {
	rl := limiterOf(10, 5)
	handler := rl.Handler(okBackend())

	for i := range 5 {
		if rec := hitFrom(handler, "192.0.2.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	rec := hitFrom(handler, "192.0.2.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After on 429")
	}
}

func TestRateLimiterResponseHeaders(t *testing.T) {
	rl := limiterOf(10, 10)
	handler := rl.Handler(okBackend())

	rec := hitFrom(handler, "192.0.2.1")
	if rec.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Errorf("expected remaining 9, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected X-RateLimit-Reset header")
	}
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	rl := limiterOf(10, 2)
	handler := rl.Handler(okBackend())

	hitFrom(handler, "192.0.2.1")
	hitFrom(handler, "192.0.2.1")
	if rec := hitFrom(handler, "192.0.2.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("drained client: expected 429, got %d", rec.Code)
	}

	// A fresh client gets its own full bucket.
	if rec := hitFrom(handler, "192.0.2.2"); rec.Code != http.StatusOK {
		t.Fatalf("fresh client: expected 200, got %d", rec.Code)
	}
}

func TestRateLimiterRefillRestoresTokens(t *testing.T) {
	rl := limiterOf(100, 1)
	handler := rl.Handler(okBackend())

	hitFrom(handler, "192.0.2.1")
	if rec := hitFrom(handler, "192.0.2.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 with empty bucket, got %d", rec.Code)
	}

	// At 100 tokens/s a short wait is enough to accrue one.
	time.Sleep(30 * time.Millisecond)
	if rec := hitFrom(handler, "192.0.2.1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after refill, got %d", rec.Code)
	}
}

func TestRateLimiterSweepDropsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(config.Rate{
		RequestsPerSecond: 10,
		Burst:             10,
		CleanupInterval:   time.Minute,
		MaxIdleTime:       time.Millisecond,
	})
	handler := rl.Handler(okBackend())

	hitFrom(handler, "192.0.2.1")
	hitFrom(handler, "192.0.2.2")
	if rl.Len() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", rl.Len())
	}

	time.Sleep(5 * time.Millisecond)
	rl.sweep()

	if rl.Len() != 0 {
		t.Fatalf("expected idle buckets swept, got %d", rl.Len())
	}
}

func TestRateLimiterStopCleanup(t *testing.T) {
	rl := NewRateLimiter(config.Rate{
		RequestsPerSecond: 10,
		Burst:             10,
		CleanupInterval:   time.Millisecond,
		MaxIdleTime:       time.Minute,
	})
	stop := rl.StartCleanup()
	stop()
}
