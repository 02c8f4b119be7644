// Package provider defines the port to the upstream generation endpoint.
package provider

import (
	"context"

	"github.com/subinesh21/codelens-ai/internal/domain/credential"
)

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	WantJSON    bool
	MaxTokens   int32
	Temperature float32
}

// Response is the upstream's reply, reduced to what the dispatcher needs.
type Response struct {
	Text      string
	Model     string
	TokensIn  int32
	TokensOut int32
}

// Generator is the port interface to the upstream model endpoint.
// Implementations classify every failure into a dispatch error kind so
// the executor can drive retries and credential health.
type Generator interface {
	Generate(ctx context.Context, cred credential.Credential, req Request) (*Response, error)
}
