package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "codelens"

// Metrics holds all dispatcher metric instruments.
type Metrics struct {
	Dispatches         metric.Int64Counter
	DispatchFailed     metric.Int64Counter
	CacheHits          metric.Int64Counter
	UpstreamCalls      metric.Int64Counter
	CredentialsFlagged metric.Int64Counter
	DispatchDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Dispatches, err = meter.Int64Counter("codelens.dispatches",
		metric.WithDescription("Analyses dispatched (cache hits included)"))
	if err != nil {
		return nil, err
	}

	m.DispatchFailed, err = meter.Int64Counter("codelens.dispatch.failed",
		metric.WithDescription("Dispatches that returned a terminal error"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("codelens.cache.hits",
		metric.WithDescription("Dispatches served from the result cache"))
	if err != nil {
		return nil, err
	}

	m.UpstreamCalls, err = meter.Int64Counter("codelens.upstream.calls",
		metric.WithDescription("Generation attempts sent to the upstream"))
	if err != nil {
		return nil, err
	}

	m.CredentialsFlagged, err = meter.Int64Counter("codelens.credentials.flagged",
		metric.WithDescription("Credentials flagged failed by attempt outcomes"))
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram("codelens.dispatch.duration_seconds",
		metric.WithDescription("End-to-end dispatch duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
