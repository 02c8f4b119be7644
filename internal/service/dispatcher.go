package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/subinesh21/codelens-ai/internal/adapter/otel"
	"github.com/subinesh21/codelens-ai/internal/adapter/ws"
	"github.com/subinesh21/codelens-ai/internal/domain/analysis"
	"github.com/subinesh21/codelens-ai/internal/domain/credential"
	"github.com/subinesh21/codelens-ai/internal/domain/dispatch"
	"github.com/subinesh21/codelens-ai/internal/port/broadcast"
	"github.com/subinesh21/codelens-ai/internal/port/provider"
)

// Dispatcher is the single entry point consumers call: it composes the
// result cache, the executor, and the credential pool, collapsing
// concurrent identical requests into one upstream call.
type Dispatcher struct {
	cache   *ResultCache
	exec    *Executor
	pool    *credential.Pool
	history *History
	hub     broadcast.Broadcaster // may be nil

	group       singleflight.Group
	maxTokens   int32
	temperature float32

	metrics *otel.Metrics // may be nil when telemetry is off
	log     *slog.Logger
	now     func() time.Time // for testing
}

// NewDispatcher wires the dispatch facade. hub and metrics may be nil.
func NewDispatcher(cache *ResultCache, exec *Executor, pool *credential.Pool, history *History,
	hub broadcast.Broadcaster, maxTokens int32, temperature float32, metrics *otel.Metrics, log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		cache:       cache,
		exec:        exec,
		pool:        pool,
		history:     history,
		hub:         hub,
		maxTokens:   maxTokens,
		temperature: temperature,
		metrics:     metrics,
		log:         log.With("component", "dispatcher"),
		now:         time.Now,
	}
}

// Dispatch runs one analysis: cache lookup, then the executor on miss,
// then cache fill. Failures propagate as classified dispatch errors;
// no fallback content is synthesized here.
func (d *Dispatcher) Dispatch(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	fp := analysis.Fingerprint(req)
	start := d.now()

	ctx, span := otel.StartDispatchSpan(ctx, string(req.Operation), fp)
	defer span.End()
	if d.metrics != nil {
		d.metrics.Dispatches.Add(ctx, 1, opAttr(req.Operation))
	}

	if res, ok := d.cache.Get(ctx, fp); ok {
		if d.metrics != nil {
			d.metrics.CacheHits.Add(ctx, 1, opAttr(req.Operation))
		}
		d.finish(ctx, req, fp, res, start)
		return res, nil
	}

	// Concurrent identical dispatches share one upstream call. The
	// winner's result lands in the cache; followers get the same value.
	v, err, shared := d.group.Do(fp, func() (any, error) {
		return d.execute(ctx, req, fp)
	})
	d.broadcastPoolHealth(ctx)
	if err != nil {
		if d.metrics != nil {
			d.metrics.DispatchFailed.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", string(req.Operation)),
				attribute.String("kind", string(dispatch.KindOf(err))),
			))
		}
		return nil, err
	}

	res := v.(*analysis.Result)
	if shared {
		d.log.Debug("dispatch collapsed into in-flight call", "fingerprint", fp)
	}
	d.finish(ctx, req, fp, res, start)
	return res, nil
}

// execute performs the upstream call for a cache miss and fills the
// cache on success.
func (d *Dispatcher) execute(ctx context.Context, req analysis.Request, fp string) (*analysis.Result, error) {
	system, user := analysis.BuildPrompt(req)
	resp, attempts, err := d.exec.Execute(ctx, provider.Request{
		System:      system,
		Prompt:      user,
		WantJSON:    req.Operation.Structured(),
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
	})
	if err != nil {
		return nil, err
	}

	res := &analysis.Result{
		Operation: req.Operation,
		Model:     resp.Model,
	}
	if resp.TokensIn > 0 || resp.TokensOut > 0 {
		res.Usage = &analysis.Usage{TokensIn: resp.TokensIn, TokensOut: resp.TokensOut}
	}

	if req.Operation.Structured() {
		data, decodeErr := analysis.DecodeStructured(req.Operation, resp.Text)
		if decodeErr != nil {
			// The upstream answered 2xx but broke the operation's
			// contract; the credential already got its success report.
			snap := d.pool.Snapshot()
			return nil, dispatch.Terminal(dispatch.KindInvalidResponse, attempts,
				dispatch.KindInvalidResponse, &snap, decodeErr)
		}
		res.Data = data
	} else {
		res.Text = resp.Text
	}

	d.cache.Put(ctx, fp, res)
	return res, nil
}

// finish emits the bookkeeping shared by cache hits and fresh results:
// history record, completion event, duration metric.
func (d *Dispatcher) finish(ctx context.Context, req analysis.Request, fp string, res *analysis.Result, start time.Time) {
	elapsed := d.now().Sub(start)

	rec := analysis.Record{
		Operation:   req.Operation,
		Language:    req.Language,
		Fingerprint: fp,
		Cached:      res.Cached,
		DurationMS:  elapsed.Milliseconds(),
		Model:       res.Model,
		Summary:     res.Summary(200),
	}
	if res.Usage != nil {
		rec.TokensIn = res.Usage.TokensIn
		rec.TokensOut = res.Usage.TokensOut
	}
	d.history.Record(ctx, rec)

	if d.hub != nil {
		d.hub.BroadcastEvent(ctx, ws.EventAnalysisCompleted, ws.AnalysisCompletedEvent{
			Operation:   string(req.Operation),
			Fingerprint: fp,
			Cached:      res.Cached,
			DurationMS:  elapsed.Milliseconds(),
		})
	}
	if d.metrics != nil {
		d.metrics.DispatchDuration.Record(ctx, elapsed.Seconds(), opAttr(req.Operation))
	}
}

// Status returns the pool snapshot for the status endpoint.
func (d *Dispatcher) Status() credential.Status {
	return d.pool.Snapshot()
}

// ClearCache drops every cached result.
func (d *Dispatcher) ClearCache(ctx context.Context) error {
	return d.cache.Clear(ctx)
}

func (d *Dispatcher) broadcastPoolHealth(ctx context.Context) {
	if d.hub == nil {
		return
	}
	d.hub.BroadcastEvent(ctx, ws.EventPoolHealth, ws.PoolHealthEvent{Pool: d.pool.Snapshot()})
}

func opAttr(op analysis.Operation) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("operation", string(op)))
}
