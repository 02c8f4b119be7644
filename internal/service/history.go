package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/subinesh21/codelens-ai/internal/domain"
	"github.com/subinesh21/codelens-ai/internal/domain/analysis"
	"github.com/subinesh21/codelens-ai/internal/port/database"
)

const defaultHistoryLimit = 50

// History records completed dispatches in the optional store. With no
// store configured every write is a no-op and reads report disabled;
// recording failures are logged, never surfaced to the dispatch caller.
type History struct {
	store database.Store // nil when history is disabled
	log   *slog.Logger
	now   func() time.Time // for testing
}

// NewHistory creates the history service. store may be nil.
func NewHistory(store database.Store, log *slog.Logger) *History {
	return &History{
		store: store,
		log:   log.With("component", "history"),
		now:   time.Now,
	}
}

// Enabled reports whether a store is configured.
func (h *History) Enabled() bool { return h.store != nil }

// Record persists one completed dispatch, assigning ID and timestamp.
// Best-effort: failures are logged and swallowed.
func (h *History) Record(ctx context.Context, rec analysis.Record) {
	if h.store == nil {
		return
	}
	rec.ID = uuid.NewString()
	rec.CreatedAt = h.now().UTC()
	if err := h.store.InsertAnalysis(ctx, rec); err != nil {
		h.log.Warn("record analysis failed", "operation", string(rec.Operation), "error", err)
	}
}

// List returns the most recent records, newest first.
func (h *History) List(ctx context.Context, limit int) ([]analysis.Record, error) {
	if h.store == nil {
		return nil, domain.ErrHistoryDisabled
	}
	if limit <= 0 || limit > 500 {
		limit = defaultHistoryLimit
	}
	return h.store.ListAnalyses(ctx, limit)
}

// Get returns one record by ID.
func (h *History) Get(ctx context.Context, id string) (*analysis.Record, error) {
	if h.store == nil {
		return nil, domain.ErrHistoryDisabled
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: malformed id %q", domain.ErrValidation, id)
	}
	return h.store.GetAnalysis(ctx, id)
}

// Delete removes one record by ID.
func (h *History) Delete(ctx context.Context, id string) error {
	if h.store == nil {
		return domain.ErrHistoryDisabled
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed id %q", domain.ErrValidation, id)
	}
	return h.store.DeleteAnalysis(ctx, id)
}
