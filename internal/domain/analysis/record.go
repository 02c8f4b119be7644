package analysis

import "time"

// Record is one completed dispatch as kept in the history store.
type Record struct {
	ID          string    `json:"id"`
	Operation   Operation `json:"operation"`
	Language    string    `json:"language,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Cached      bool      `json:"cached"`
	DurationMS  int64     `json:"duration_ms"`
	Model       string    `json:"model,omitempty"`
	TokensIn    int32     `json:"tokens_in,omitempty"`
	TokensOut   int32     `json:"tokens_out,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
