// Package dispatch defines the failure taxonomy shared by the request
// executor, the provider adapter, and the HTTP layer.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/subinesh21/codelens-ai/internal/domain/credential"
)

// Kind classifies a dispatch failure.
type Kind string

const (
	// KindNoCredentials: the pool is empty; nothing was attempted.
	KindNoCredentials Kind = "no_credentials"
	// KindAllExhausted: attempts ran out with every credential flagged
	// as quota- or auth-dead.
	KindAllExhausted Kind = "all_credentials_exhausted"
	// KindRateLimited: the upstream throttled this credential (HTTP 429).
	KindRateLimited Kind = "rate_limited"
	// KindUpstreamAuth: the upstream rejected the credential itself
	// (HTTP 401/403, quota or permission exhaustion).
	KindUpstreamAuth Kind = "upstream_auth"
	// KindTransport: the upstream was unreachable or failed server-side;
	// says nothing about the credential.
	KindTransport Kind = "transport"
	// KindInvalidResponse: the upstream answered but the payload violates
	// the operation's contract. Not retryable.
	KindInvalidResponse Kind = "invalid_response"
	// KindRetriesExhausted: the attempt budget ran out; LastKind carries
	// the final attempt's classification.
	KindRetriesExhausted Kind = "retries_exhausted"
)

// Retryable reports whether an attempt failing with this kind may be
// followed by another attempt.
func Retryable(k Kind) bool {
	switch k {
	case KindRateLimited, KindUpstreamAuth, KindTransport:
		return true
	}
	return false
}

// Error is a classified dispatch failure. Terminal aggregates carry the
// attempt count, the last attempt's kind, and a pool snapshot for
// diagnostics; per-attempt errors carry just kind and cause.
type Error struct {
	Kind     Kind
	Message  string
	Attempts int
	LastKind Kind
	Pool     *credential.Status
	cause    error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.cause != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, &Error{Kind: KindRateLimited}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds a classified error; cause may be nil.
func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// Terminal builds the aggregate error a dispatch caller sees, carrying
// the attempt count, the last attempt's kind, and a pool snapshot.
func Terminal(kind Kind, attempts int, lastKind Kind, pool *credential.Status, cause error) *Error {
	return &Error{Kind: kind, Attempts: attempts, LastKind: lastKind, Pool: pool, cause: cause}
}

// KindOf extracts the classification from err, or "" when err carries
// none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
