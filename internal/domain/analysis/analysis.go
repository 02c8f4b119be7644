// Package analysis defines the code-analysis operations, their request
// and result shapes, and the content fingerprint used as the cache key.
package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/subinesh21/codelens-ai/internal/domain"
)

// Operation identifies one analysis kind.
type Operation string

const (
	OpFlowchart  Operation = "flowchart"
	OpTrace      Operation = "trace"
	OpComplexity Operation = "complexity"
	OpExplain    Operation = "explain"
	OpQuestion   Operation = "question"
)

// Operations lists every supported operation in presentation order.
func Operations() []Operation {
	return []Operation{OpFlowchart, OpTrace, OpComplexity, OpExplain, OpQuestion}
}

// Valid reports whether op names a supported operation.
func (op Operation) Valid() bool {
	switch op {
	case OpFlowchart, OpTrace, OpComplexity, OpExplain, OpQuestion:
		return true
	}
	return false
}

// Structured reports whether the operation expects a JSON payload from
// the upstream rather than prose.
func (op Operation) Structured() bool {
	switch op {
	case OpFlowchart, OpTrace, OpComplexity:
		return true
	}
	return false
}

// Request is one analysis job as submitted by the UI.
type Request struct {
	Operation Operation `json:"operation"`
	Code      string    `json:"code"`
	Language  string    `json:"language,omitempty"`
	Question  string    `json:"question,omitempty"`
}

// Validate checks the request against the operation's contract.
func (r Request) Validate() error {
	if !r.Operation.Valid() {
		return fmt.Errorf("%w: unknown operation %q", domain.ErrValidation, r.Operation)
	}
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("%w: code must not be empty", domain.ErrValidation)
	}
	if r.Operation == OpQuestion && strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("%w: question must not be empty for operation %q", domain.ErrValidation, OpQuestion)
	}
	return nil
}

// Usage reports upstream token consumption when the provider exposes it.
type Usage struct {
	TokensIn  int32 `json:"tokens_in,omitempty"`
	TokensOut int32 `json:"tokens_out,omitempty"`
}

// Result is a completed analysis. Structured operations fill Data with
// the validated JSON payload; conversational ones fill Text. Cached is
// set on results served from the result cache rather than the upstream.
type Result struct {
	Operation Operation       `json:"operation"`
	Text      string          `json:"text,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Model     string          `json:"model,omitempty"`
	Usage     *Usage          `json:"usage,omitempty"`
	Cached    bool            `json:"cached,omitempty"`
}

// Summary returns a short single-line digest of the result, for history
// records and logs.
func (r *Result) Summary(maxRunes int) string {
	s := r.Text
	if s == "" {
		s = string(r.Data)
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes])
	}
	return s
}
