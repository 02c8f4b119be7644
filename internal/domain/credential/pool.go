// Package credential manages the pool of upstream API keys: round-robin
// rotation, per-credential failure flags, and recovery by global reset
// once every credential has been flagged.
package credential

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNoCredentials is returned by SelectNext when the pool holds no
// credentials at all.
var ErrNoCredentials = errors.New("no credentials configured")

// Credential is one upstream API key. The secret is carried only to the
// provider adapter and never appears in snapshots, logs, or errors.
type Credential struct {
	Index  int
	Secret string
}

// CredentialStatus is the externally visible state of one credential.
type CredentialStatus struct {
	Index      int        `json:"index"`
	UseCount   int64      `json:"use_count"`
	Failed     bool       `json:"failed"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// Status is a point-in-time snapshot of the pool.
type Status struct {
	Total       int                `json:"total_credentials"`
	Active      int                `json:"active_credentials"`
	Failed      int                `json:"failed_credentials"`
	Credentials []CredentialStatus `json:"per_credential_usage"`
	Timestamp   time.Time          `json:"timestamp"`
}

// health is the mutable per-credential state. Counters move only
// through ReportSuccess; selection never touches them.
type health struct {
	failed     bool
	useCount   int64
	lastUsedAt time.Time
}

// Pool rotates credentials round-robin, skipping ones flagged failed.
// When every credential is flagged, SelectNext clears all flags and
// continues rotating instead of starving: a fully-flagged pool is
// indistinguishable from one whose limits have cooled down, and retry
// pacing belongs to the caller. All state sits behind a single mutex;
// the lock is never held across a network call.
type Pool struct {
	mu     sync.Mutex
	creds  []Credential
	state  []health
	cursor int

	log *slog.Logger
	now func() time.Time // for testing
}

// NewPool builds a pool over the given secrets, preserving order.
// An empty slice is legal; SelectNext then fails with ErrNoCredentials.
func NewPool(secrets []string, log *slog.Logger) *Pool {
	creds := make([]Credential, len(secrets))
	for i, s := range secrets {
		creds[i] = Credential{Index: i, Secret: s}
	}
	return &Pool{
		creds:  creds,
		state:  make([]health, len(secrets)),
		cursor: -1,
		log:    log,
		now:    time.Now,
	}
}

// Size returns the number of configured credentials.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// SelectNext returns the next credential in rotation, skipping flagged
// ones. If every credential is flagged it resets all flags and returns
// the next in rotation, so selection fails only on an empty pool.
func (p *Pool) SelectNext() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.creds)
	if n == 0 {
		return Credential{}, ErrNoCredentials
	}
	for i := range n {
		idx := (p.cursor + 1 + i) % n
		if p.state[idx].failed {
			continue
		}
		p.cursor = idx
		return p.creds[idx], nil
	}

	p.log.Warn("all credentials failed, resetting pool", "total", n)
	for i := range p.state {
		p.state[i].failed = false
	}
	idx := (p.cursor + 1) % n
	p.cursor = idx
	return p.creds[idx], nil
}

// ReportSuccess clears the failed flag and bumps the usage counters.
// Unknown indexes are ignored.
func (p *Pool) ReportSuccess(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.state) {
		return
	}
	st := &p.state[index]
	st.failed = false
	st.useCount++
	st.lastUsedAt = p.now()
}

// ReportFailure flags the credential as failed. Idempotent; unknown
// indexes are ignored.
func (p *Pool) ReportFailure(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.state) {
		return
	}
	p.state[index].failed = true
}

// Snapshot returns a consistent copy of the pool state.
func (p *Pool) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Status{
		Total:       len(p.creds),
		Credentials: make([]CredentialStatus, 0, len(p.creds)),
		Timestamp:   p.now().UTC(),
	}
	for i := range p.state {
		st := p.state[i]
		cs := CredentialStatus{Index: i, UseCount: st.useCount, Failed: st.failed}
		if !st.lastUsedAt.IsZero() {
			t := st.lastUsedAt
			cs.LastUsedAt = &t
		}
		if st.failed {
			s.Failed++
		} else {
			s.Active++
		}
		s.Credentials = append(s.Credentials, cs)
	}
	return s
}
