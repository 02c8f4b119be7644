package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "codelens"

// StartDispatchSpan starts a span covering one analysis dispatch.
func StartDispatchSpan(ctx context.Context, operation, fingerprint string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("analysis.operation", operation),
			attribute.String("analysis.fingerprint", fingerprint),
		),
	)
}

// StartUpstreamSpan starts a span for one generation attempt. The
// credential is identified by pool index only.
func StartUpstreamSpan(ctx context.Context, model string, attempt, credentialIndex int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "upstream.generate",
		trace.WithAttributes(
			attribute.String("upstream.model", model),
			attribute.Int("upstream.attempt", attempt),
			attribute.Int("credential.index", credentialIndex),
		),
	)
}
