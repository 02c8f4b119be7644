package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// captureHandler records everything the async writer hands it. An
// optional delay simulates a slow sink.
type captureHandler struct {
	mu    sync.Mutex
	count int
	delay time.Duration
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(context.Context, slog.Record) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.count++
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) written() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func record(msg string) slog.Record {
	return slog.NewRecord(time.Now(), slog.LevelInfo, msg, 0)
}

func TestAsyncHandlerWritesThrough(t *testing.T) {
	sink := &captureHandler{}
	h := NewAsyncHandler(sink, 8)

	if err := h.Handle(context.Background(), record("one")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	h.Close()

	if got := sink.written(); got != 1 {
		t.Fatalf("expected 1 record written, got %d", got)
	}
}

func TestAsyncHandlerCloseFlushesQueue(t *testing.T) {
	sink := &captureHandler{}
	h := NewAsyncHandler(sink, 256)

	const total = 100
	for range total {
		_ = h.Handle(context.Background(), record("queued"))
	}
	h.Close()

	if got := sink.written(); got != total {
		t.Fatalf("expected %d records after Close, got %d", total, got)
	}
}

func TestAsyncHandlerDropsWhenQueueFull(t *testing.T) {
	// A slow sink and a one-slot queue force overflow.
	sink := &captureHandler{delay: 5 * time.Millisecond}
	h := NewAsyncHandler(sink, 1)

	for range 40 {
		_ = h.Handle(context.Background(), record("flood"))
	}
	h.Close()

	if h.DroppedCount() == 0 {
		t.Fatal("expected drops from a saturated queue")
	}
	if h.DroppedCount()+int64(sink.written()) != 40 {
		t.Fatalf("dropped %d + written %d should account for all 40 records",
			h.DroppedCount(), sink.written())
	}
}

func TestAsyncHandlerConcurrentProducers(t *testing.T) {
	sink := &captureHandler{}
	h := NewAsyncHandler(sink, 4096)

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	wg.Add(producers)
	for range producers {
		go func() {
			defer wg.Done()
			for range perProducer {
				_ = h.Handle(context.Background(), record("busy"))
			}
		}()
	}
	wg.Wait()
	h.Close()

	if got := sink.written(); got != producers*perProducer {
		t.Fatalf("expected %d records, got %d", producers*perProducer, got)
	}
}

func TestAsyncHandlerDerivedSharesQueue(t *testing.T) {
	sink := &captureHandler{}
	h := NewAsyncHandler(sink, 8)

	derived := h.WithAttrs([]slog.Attr{slog.String("component", "test")})
	_ = derived.Handle(context.Background(), record("via derived"))
	h.Close()

	if got := sink.written(); got != 1 {
		t.Fatalf("expected the derived handler to feed the shared queue, got %d records", got)
	}
}
