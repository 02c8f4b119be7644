package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/subinesh21/codelens-ai/internal/domain/analysis"
	"github.com/subinesh21/codelens-ai/internal/port/cache"
)

// cacheEnvelope wraps a stored result with its own expiry so backends
// without native per-entry TTL (the NATS KV bucket TTL is per-bucket)
// still expire lazily on read.
type cacheEnvelope struct {
	Result   *analysis.Result `json:"result"`
	StoredAt time.Time        `json:"stored_at"`
	TTL      time.Duration    `json:"ttl"`
}

// ResultCache memoizes successful analyses by fingerprint over the
// byte-cache port. Structural analyses are expensive and stable, so
// they live longer than conversational ones.
type ResultCache struct {
	backend     cache.Cache
	analysisTTL time.Duration
	chatTTL     time.Duration

	log *slog.Logger
	now func() time.Time // for testing
}

// NewResultCache creates a result cache over the given backend.
func NewResultCache(backend cache.Cache, analysisTTL, chatTTL time.Duration, log *slog.Logger) *ResultCache {
	return &ResultCache{
		backend:     backend,
		analysisTTL: analysisTTL,
		chatTTL:     chatTTL,
		log:         log.With("component", "result_cache"),
		now:         time.Now,
	}
}

// TTLFor returns the freshness window for an operation's results.
func (c *ResultCache) TTLFor(op analysis.Operation) time.Duration {
	if op.Structured() {
		return c.analysisTTL
	}
	return c.chatTTL
}

// Get returns the cached result for a fingerprint, or false on absence,
// expiry, or a corrupt entry. Backend errors degrade to a miss; the
// cache never fails a dispatch.
func (c *ResultCache) Get(ctx context.Context, fingerprint string) (*analysis.Result, bool) {
	data, found, err := c.backend.Get(ctx, fingerprint)
	if err != nil {
		c.log.Warn("cache get failed", "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var env cacheEnvelope
	if err := json.Unmarshal(data, &env); err != nil || env.Result == nil {
		c.log.Warn("evicting corrupt cache entry", "fingerprint", fingerprint)
		_ = c.backend.Delete(ctx, fingerprint)
		return nil, false
	}
	if c.now().Sub(env.StoredAt) > env.TTL {
		_ = c.backend.Delete(ctx, fingerprint)
		return nil, false
	}

	res := *env.Result
	res.Cached = true
	return &res, true
}

// Put stores a result under its fingerprint with the TTL class of its
// operation. Overwrites unconditionally.
func (c *ResultCache) Put(ctx context.Context, fingerprint string, res *analysis.Result) {
	ttl := c.TTLFor(res.Operation)
	env := cacheEnvelope{Result: res, StoredAt: c.now(), TTL: ttl}
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Warn("cache put marshal failed", "error", err)
		return
	}
	if err := c.backend.Set(ctx, fingerprint, data, ttl); err != nil {
		c.log.Warn("cache put failed", "error", err)
	}
}

// Clear drops every cached result.
func (c *ResultCache) Clear(ctx context.Context) error {
	return c.backend.Clear(ctx)
}
