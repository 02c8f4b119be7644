package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPMiddleware returns a chi-compatible middleware that creates spans
// for HTTP requests. Liveness probes and the WebSocket upgrade are
// excluded; they only add noise.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	filter := otelhttp.WithFilter(func(r *http.Request) bool {
		return r.URL.Path != "/health" && r.URL.Path != "/ws"
	})
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName, filter)
	}
}
