package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/subinesh21/codelens-ai/internal/domain"
	"github.com/subinesh21/codelens-ai/internal/domain/analysis"
	"github.com/subinesh21/codelens-ai/internal/domain/credential"
	"github.com/subinesh21/codelens-ai/internal/domain/dispatch"
	"github.com/subinesh21/codelens-ai/internal/port/provider"
	"github.com/subinesh21/codelens-ai/internal/resilience"
)

// countingGenerator returns a fixed response and counts calls, with an
// optional per-call delay to widen race windows.
type countingGenerator struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	text  string
	fail  error
}

func (g *countingGenerator) Generate(_ context.Context, _ credential.Credential, _ provider.Request) (*provider.Response, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.fail != nil {
		return nil, g.fail
	}
	return &provider.Response{Text: g.text, Model: "test-model", TokensIn: 5, TokensOut: 9}, nil
}

func (g *countingGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// eventRecorder captures broadcast events.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) BroadcastEvent(_ context.Context, eventType string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

func (r *eventRecorder) has(eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == eventType {
			return true
		}
	}
	return false
}

type dispatcherFixture struct {
	dispatcher *Dispatcher
	gen        *countingGenerator
	pool       *credential.Pool
	backend    *memCache
	events     *eventRecorder
	store      *fakeStore
}

func newDispatcherFixture(gen *countingGenerator, secrets ...string) *dispatcherFixture {
	log := testLogger()
	pool := credential.NewPool(secrets, log)
	backend := newMemCache()
	cache := NewResultCache(backend, 15*time.Minute, 5*time.Minute, log)
	exec := NewExecutor(pool, gen, nil,
		resilience.Backoff{Base: time.Millisecond}, 3, "test-model", nil, log)
	store := newFakeStore()
	events := &eventRecorder{}
	d := NewDispatcher(cache, exec, pool, NewHistory(store, log), events, 4096, 0.2, nil, log)
	return &dispatcherFixture{dispatcher: d, gen: gen, pool: pool, backend: backend, events: events, store: store}
}

func explainReq() analysis.Request {
	return analysis.Request{Operation: analysis.OpExplain, Code: "print(1)", Language: "python"}
}

func TestDispatchSuccess(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{text: "prints one"}, "k0")

	res, err := f.dispatcher.Dispatch(context.Background(), explainReq())
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if res.Text != "prints one" {
		t.Errorf("expected text, got %q", res.Text)
	}
	if res.Cached {
		t.Error("fresh result must not be marked cached")
	}
	if res.Usage == nil || res.Usage.TokensOut != 9 {
		t.Errorf("expected usage carried through, got %+v", res.Usage)
	}
}

func TestDispatchValidation(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{text: "x"}, "k0")

	_, err := f.dispatcher.Dispatch(context.Background(), analysis.Request{Operation: "bogus", Code: "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.gen.count() != 0 {
		t.Error("invalid request must not reach the upstream")
	}
}

func TestDispatchCacheHitAvoidsSecondCall(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{text: "same"}, "k0")
	ctx := context.Background()

	if _, err := f.dispatcher.Dispatch(ctx, explainReq()); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	res, err := f.dispatcher.Dispatch(ctx, explainReq())
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if f.gen.count() != 1 {
		t.Fatalf("expected 1 upstream call, got %d", f.gen.count())
	}
	if !res.Cached {
		t.Error("second result should be marked cached")
	}
}

func TestDispatchConcurrentIdenticalCollapsed(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{text: "slow", delay: 50 * time.Millisecond}, "k0")
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.dispatcher.Dispatch(ctx, explainReq()); err != nil {
				t.Errorf("Dispatch: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := f.gen.count(); got != 1 {
		t.Fatalf("expected concurrent identical dispatches to collapse into 1 call, got %d", got)
	}
}

func TestDispatchStructuredDecoded(t *testing.T) {
	payload := `{"time":"O(n)","space":"O(1)","summary":"linear scan","hotspots":[{"line":3,"reason":"loop"}]}`
	f := newDispatcherFixture(&countingGenerator{text: payload}, "k0")

	res, err := f.dispatcher.Dispatch(context.Background(), analysis.Request{
		Operation: analysis.OpComplexity, Code: "for x in xs: pass",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res.Data) == 0 {
		t.Fatal("expected structured data")
	}
	if res.Text != "" {
		t.Error("structured results carry Data, not Text")
	}
}

func TestDispatchMalformedStructuredPayload(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{text: "this is not JSON"}, "k0")

	_, err := f.dispatcher.Dispatch(context.Background(), analysis.Request{
		Operation: analysis.OpFlowchart, Code: "x = 1",
	})
	var de *dispatch.Error
	if !errors.As(err, &de) || de.Kind != dispatch.KindInvalidResponse {
		t.Fatalf("expected invalid_response, got %v", err)
	}
	if f.gen.count() != 1 {
		t.Errorf("malformed payload must not be retried, got %d calls", f.gen.count())
	}
	// Nothing cached, so a later dispatch tries the upstream again.
	if f.backend.len() != 0 {
		t.Error("failed dispatch must not populate the cache")
	}
	// The credential worked; pool bookkeeping records a success.
	st := f.pool.Snapshot()
	if st.Credentials[0].UseCount != 1 {
		t.Errorf("expected use_count 1, got %d", st.Credentials[0].UseCount)
	}
}

func TestDispatchErrorPropagatesUntouched(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{
		fail: dispatch.NewError(dispatch.KindTransport, "down", nil),
	}, "k0")

	_, err := f.dispatcher.Dispatch(context.Background(), explainReq())
	var de *dispatch.Error
	if !errors.As(err, &de) {
		t.Fatalf("expected dispatch error, got %T", err)
	}
	if de.Kind != dispatch.KindRetriesExhausted {
		t.Errorf("expected retries_exhausted, got %s", de.Kind)
	}
	if de.Pool == nil {
		t.Error("terminal error must carry a pool snapshot")
	}
}

func TestDispatchBroadcastsEvents(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{text: "x"}, "k0")

	if _, err := f.dispatcher.Dispatch(context.Background(), explainReq()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !f.events.has("analysis.completed") {
		t.Error("expected analysis.completed event")
	}
	if !f.events.has("pool.health") {
		t.Error("expected pool.health event")
	}
}

func TestDispatchRecordsHistory(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{text: "the answer"}, "k0")

	if _, err := f.dispatcher.Dispatch(context.Background(), explainReq()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	recs, err := f.store.ListAnalyses(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Operation != analysis.OpExplain || rec.Cached || rec.Summary != "the answer" {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Error("expected assigned ID and timestamp")
	}
}

func TestDispatcherStatus(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{text: "x"}, "k0", "k1")

	st := f.dispatcher.Status()
	if st.Total != 2 || st.Active != 2 {
		t.Fatalf("expected 2 total, 2 active, got %+v", st)
	}
}

func TestDispatcherClearCache(t *testing.T) {
	f := newDispatcherFixture(&countingGenerator{text: "x"}, "k0")
	ctx := context.Background()

	if _, err := f.dispatcher.Dispatch(ctx, explainReq()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := f.dispatcher.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if _, err := f.dispatcher.Dispatch(ctx, explainReq()); err != nil {
		t.Fatalf("Dispatch after clear: %v", err)
	}
	if f.gen.count() != 2 {
		t.Fatalf("expected 2 upstream calls after clear, got %d", f.gen.count())
	}
}
