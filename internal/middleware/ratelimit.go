package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/subinesh21/codelens-ai/internal/config"
)

// maxTrackedClients caps the bucket map so an address scan cannot grow
// it without bound. Requests past the cap are refused until the sweep
// frees room.
const maxTrackedClients = 100000

// RateLimiter applies a per-client token bucket across the API.
// Buckets are keyed by the transport-level peer address; forwarding
// headers are ignored since any client can forge them.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket

	rps   float64
	burst float64

	sweepEvery time.Duration
	maxIdle    time.Duration
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

// NewRateLimiter builds a limiter from the rate section of the config.
func NewRateLimiter(cfg config.Rate) *RateLimiter {
	return &RateLimiter{
		clients:    make(map[string]*tokenBucket),
		rps:        cfg.RequestsPerSecond,
		burst:      float64(cfg.Burst),
		sweepEvery: cfg.CleanupInterval,
		maxIdle:    cfg.MaxIdleTime,
	}
}

// Handler rejects requests that drain the client's bucket with a 429
// and a Retry-After hint; allowed responses carry the remaining count.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		left, wait, allowed := rl.take(clientIP(r))

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(left))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait))))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// take spends one token for ip, creating the bucket full on first
// sight. On refusal it reports the seconds until the next token
// accrues.
func (rl *RateLimiter) take(ip string) (remaining int, retryAfter float64, allowed bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b := rl.clients[ip]
	if b == nil {
		if len(rl.clients) >= maxTrackedClients {
			return 0, 1 / rl.rps, false
		}
		b = &tokenBucket{tokens: rl.burst - 1, seen: now}
		rl.clients[ip] = b
		return int(b.tokens), 0, true
	}

	b.tokens = math.Min(rl.burst, b.tokens+now.Sub(b.seen).Seconds()*rl.rps)
	b.seen = now

	if b.tokens < 1 {
		return 0, (1 - b.tokens) / rl.rps, false
	}
	b.tokens--
	return int(b.tokens), 0, true
}

// StartCleanup runs the idle-bucket sweep on the configured interval.
// The returned function stops the goroutine.
func (rl *RateLimiter) StartCleanup() func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		tick := time.NewTicker(rl.sweepEvery)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				rl.sweep()
			}
		}
	}()
	return cancel
}

// sweep drops buckets idle past maxIdle.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := time.Now().Add(-rl.maxIdle)
	for ip, b := range rl.clients {
		if b.seen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// Len reports the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
