package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/subinesh21/codelens-ai/internal/domain/credential"
)

// Event type constants for WebSocket messages.
const (
	EventPoolHealth        = "pool.health"
	EventAnalysisCompleted = "analysis.completed"
)

// PoolHealthEvent is broadcast after every dispatch that touched the
// credential pool, so the UI can render key health live.
type PoolHealthEvent struct {
	Pool credential.Status `json:"pool"`
}

// AnalysisCompletedEvent is broadcast when a dispatch finishes
// successfully, whether served from cache or from the upstream.
type AnalysisCompletedEvent struct {
	Operation   string `json:"operation"`
	Fingerprint string `json:"fingerprint"`
	Cached      bool   `json:"cached"`
	DurationMS  int64  `json:"duration_ms"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
