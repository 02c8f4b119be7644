// Package cachetest provides a conformance suite that every cache.Cache
// adapter runs from its own tests.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/subinesh21/codelens-ai/internal/port/cache"
)

// Run exercises the port contract against an adapter: a Set must be
// visible to an immediate Get, deletes are idempotent, and overwrites
// keep the latest value.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "contract-key", []byte("contract-val"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		val, ok, err := c.Get(ctx, "contract-key")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !ok {
			t.Fatal("expected hit after Set")
		}
		if string(val) != "contract-val" {
			t.Fatalf("expected contract-val, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, ok, err := c.Get(ctx, "contract-absent")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok {
			t.Fatal("expected miss for absent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := c.Set(ctx, "contract-del", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := c.Delete(ctx, "contract-del"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		_, ok, err := c.Get(ctx, "contract-del")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteAbsent", func(t *testing.T) {
		if err := c.Delete(ctx, "contract-never-set"); err != nil {
			t.Fatalf("Delete of an absent key must not error, got %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := c.Set(ctx, "contract-ow", []byte("v1"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := c.Set(ctx, "contract-ow", []byte("v2"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		val, ok, err := c.Get(ctx, "contract-ow")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !ok {
			t.Fatal("expected hit after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := c.Set(ctx, "contract-clear", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := c.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		_, ok, err := c.Get(ctx, "contract-clear")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok {
			t.Fatal("expected miss after Clear")
		}
	})
}
