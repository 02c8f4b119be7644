// Package service composes the credential pool, the upstream provider,
// and the result cache into the analysis dispatcher.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/subinesh21/codelens-ai/internal/adapter/otel"
	"github.com/subinesh21/codelens-ai/internal/domain/credential"
	"github.com/subinesh21/codelens-ai/internal/domain/dispatch"
	"github.com/subinesh21/codelens-ai/internal/port/provider"
	"github.com/subinesh21/codelens-ai/internal/resilience"
)

// Executor performs one logical upstream call with bounded retries,
// classifying every attempt outcome and driving pool health. Each
// Execute call is stateless across invocations except through its
// effect on the shared pool and breaker.
type Executor struct {
	pool        *credential.Pool
	gen         provider.Generator
	breaker     *resilience.Breaker
	backoff     resilience.Backoff
	maxAttempts int
	model       string

	metrics *otel.Metrics // may be nil when telemetry is off
	log     *slog.Logger
}

// NewExecutor creates an executor over the pool and provider. breaker
// and metrics may be nil.
func NewExecutor(pool *credential.Pool, gen provider.Generator, breaker *resilience.Breaker,
	backoff resilience.Backoff, maxAttempts int, model string, metrics *otel.Metrics, log *slog.Logger,
) *Executor {
	return &Executor{
		pool:        pool,
		gen:         gen,
		breaker:     breaker,
		backoff:     backoff,
		maxAttempts: maxAttempts,
		model:       model,
		metrics:     metrics,
		log:         log.With("component", "executor"),
	}
}

// Execute runs the bounded attempt loop. It returns the upstream
// response and the number of attempts consumed; on failure the error is
// always a classified *dispatch.Error (or a wrapped context error).
//
// Per-attempt policy:
//   - rate limited: flag the credential, back off, rotate to the next;
//   - auth/quota dead: flag the credential, rotate immediately; the
//     fault is credential-specific, waiting gains nothing;
//   - transport: back off and retry without flagging; the credential
//     is not at fault;
//   - invalid response: the credential worked, so report success, but
//     the call fails terminally; a retry would not change the payload.
func (e *Executor) Execute(ctx context.Context, req provider.Request) (*provider.Response, int, error) {
	var lastKind dispatch.Kind
	var lastErr error

	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		cred, err := e.pool.SelectNext()
		if err != nil {
			snap := e.pool.Snapshot()
			return nil, attempt, dispatch.Terminal(dispatch.KindNoCredentials, attempt, "", &snap, err)
		}

		resp, err := e.attempt(ctx, cred, attempt, req)
		if err == nil {
			e.pool.ReportSuccess(cred.Index)
			if e.breaker != nil {
				e.breaker.RecordSuccess()
			}
			return resp, attempt + 1, nil
		}

		kind := dispatch.KindOf(err)
		if kind == "" {
			// The provider port guarantees classified errors; treat
			// anything else as transport noise.
			kind = dispatch.KindTransport
			err = dispatch.NewError(dispatch.KindTransport, "unclassified provider error", err)
		}
		lastKind, lastErr = kind, err

		e.log.Warn("attempt failed",
			"attempt", attempt+1,
			"credential", cred.Index,
			"kind", string(kind),
			"error", err,
		)

		// Backoff only buys something when another attempt follows it.
		last := attempt == e.maxAttempts-1

		switch kind {
		case dispatch.KindRateLimited:
			e.pool.ReportFailure(cred.Index)
			e.countFlagged(ctx)
			if !last {
				if waitErr := e.wait(ctx, attempt); waitErr != nil {
					return nil, attempt + 1, waitErr
				}
			}

		case dispatch.KindUpstreamAuth:
			// No delay: rotation and the pool's reset machinery decide
			// what is tried next.
			e.pool.ReportFailure(cred.Index)
			e.countFlagged(ctx)

		case dispatch.KindTransport:
			if e.breaker != nil {
				e.breaker.RecordFailure()
			}
			if !last {
				if waitErr := e.wait(ctx, attempt); waitErr != nil {
					return nil, attempt + 1, waitErr
				}
			}

		case dispatch.KindInvalidResponse:
			e.pool.ReportSuccess(cred.Index)
			snap := e.pool.Snapshot()
			return nil, attempt + 1, dispatch.Terminal(dispatch.KindInvalidResponse, attempt+1, kind, &snap, err)

		default:
			// Terminal kinds never come out of a single attempt.
			snap := e.pool.Snapshot()
			return nil, attempt + 1, dispatch.Terminal(kind, attempt+1, kind, &snap, err)
		}
	}

	snap := e.pool.Snapshot()
	kind := dispatch.KindRetriesExhausted
	if snap.Total > 0 && snap.Active == 0 {
		kind = dispatch.KindAllExhausted
	}
	return nil, e.maxAttempts, dispatch.Terminal(kind, e.maxAttempts, lastKind, &snap, lastErr)
}

// attempt performs one upstream call behind the breaker.
func (e *Executor) attempt(ctx context.Context, cred credential.Credential, attempt int, req provider.Request) (*provider.Response, error) {
	if e.breaker != nil && !e.breaker.Allow() {
		return nil, dispatch.NewError(dispatch.KindTransport, "upstream circuit open", resilience.ErrCircuitOpen)
	}

	ctx, span := otel.StartUpstreamSpan(ctx, e.model, attempt, cred.Index)
	defer span.End()

	if e.metrics != nil {
		e.metrics.UpstreamCalls.Add(ctx, 1)
	}
	return e.gen.Generate(ctx, cred, req)
}

// wait sleeps the backoff delay for the attempt, suspending only the
// calling request. A cancelled context aborts the whole execute; the
// context error stays reachable through errors.Is.
func (e *Executor) wait(ctx context.Context, attempt int) error {
	if err := e.backoff.Wait(ctx, attempt); err != nil {
		return fmt.Errorf("backoff interrupted: %w", err)
	}
	return nil
}

func (e *Executor) countFlagged(ctx context.Context) {
	if e.metrics != nil {
		e.metrics.CredentialsFlagged.Add(ctx, 1)
	}
}
