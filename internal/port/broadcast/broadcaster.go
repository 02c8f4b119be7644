// Package broadcast defines the port for pushing real-time events to
// connected UI clients.
package broadcast

import "context"

// Broadcaster fans a typed event out to every connected client.
// Dispatch never depends on listeners; broadcasting is fire-and-forget.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
