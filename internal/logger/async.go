package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Closer flushes buffered log records on shutdown.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// AsyncHandler decouples logging from request latency: Handle enqueues
// the record onto a bounded queue and a single goroutine writes it out.
// When the queue is full the record is dropped rather than blocking
// the caller.
type AsyncHandler struct {
	inner   slog.Handler
	queue   chan slog.Record
	done    chan struct{}
	dropped *atomic.Int64
}

// NewAsyncHandler wraps inner with a queue of the given capacity and
// starts the writer goroutine.
func NewAsyncHandler(inner slog.Handler, buffer int) *AsyncHandler {
	h := &AsyncHandler{
		inner:   inner,
		queue:   make(chan slog.Record, buffer),
		done:    make(chan struct{}),
		dropped: &atomic.Int64{},
	}
	go h.write()
	return h
}

func (h *AsyncHandler) write() {
	defer close(h.done)
	for rec := range h.queue {
		_ = h.inner.Handle(context.Background(), rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle never blocks; a full queue counts a drop instead.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler fixes the signature
	select {
	case h.queue <- rec:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs derives a handler over the same queue; the attrs bind to
// the inner handler so the writer emits them.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), queue: h.queue, done: h.done, dropped: h.dropped}
}

// WithGroup derives a handler over the same queue.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), queue: h.queue, done: h.done, dropped: h.dropped}
}

// DroppedCount reports how many records were lost to a full queue.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops intake and blocks until every queued record is written.
func (h *AsyncHandler) Close() {
	close(h.queue)
	<-h.done
}
