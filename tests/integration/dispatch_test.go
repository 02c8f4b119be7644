//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/subinesh21/codelens-ai/internal/domain/analysis"
	"github.com/subinesh21/codelens-ai/internal/domain/credential"
)

func postAnalysis(t *testing.T, req analysis.Request) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(testServer.URL+"/api/v1/analyses", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/v1/analyses: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

// TestDispatchEndToEnd drives a full dispatch through the router, the
// executor, the fake upstream, and the postgres history store. The
// limited key is throttled on first contact, so the pool rotates past it.
func TestDispatchEndToEnd(t *testing.T) {
	resp, body := postAnalysis(t, analysis.Request{
		Operation: analysis.OpExplain,
		Code:      "def add(a, b):\n    return a + b",
		Language:  "python",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	var res analysis.Result
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if res.Text == "" {
		t.Error("expected analysis text")
	}
	if res.Model != "test-model-001" {
		t.Errorf("expected upstream model version, got %q", res.Model)
	}
	if res.Usage == nil || res.Usage.TokensOut != 20 {
		t.Errorf("expected usage metadata carried through, got %+v", res.Usage)
	}

	// The throttled key must be flagged after the rotation.
	st := credentialStatus(t)
	if st.Failed != 1 {
		t.Errorf("expected 1 flagged credential, got %+v", st)
	}
}

func TestDispatchCachedSecondCall(t *testing.T) {
	req := analysis.Request{
		Operation: analysis.OpExplain,
		Code:      "x = [i*i for i in range(10)]",
		Language:  "python",
	}

	if resp, body := postAnalysis(t, req); resp.StatusCode != http.StatusOK {
		t.Fatalf("first dispatch: %d: %s", resp.StatusCode, body)
	}
	before := upstreamCalls.Load()

	resp, body := postAnalysis(t, req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second dispatch: %d: %s", resp.StatusCode, body)
	}
	var res analysis.Result
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !res.Cached {
		t.Error("expected cached result")
	}
	if got := upstreamCalls.Load(); got != before {
		t.Errorf("cache hit must not call the upstream, calls went %d -> %d", before, got)
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	if resp, body := postAnalysis(t, analysis.Request{
		Operation: analysis.OpQuestion,
		Code:      "print('hi')",
		Question:  "what does this do",
	}); resp.StatusCode != http.StatusOK {
		t.Fatalf("dispatch: %d: %s", resp.StatusCode, body)
	}

	resp, err := http.Get(testServer.URL + "/api/v1/analyses?limit=50")
	if err != nil {
		t.Fatalf("GET /api/v1/analyses: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var recs []analysis.Record
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("expected at least one history record")
	}

	var rec *analysis.Record
	for i := range recs {
		if recs[i].Operation == analysis.OpQuestion {
			rec = &recs[i]
			break
		}
	}
	if rec == nil {
		t.Fatal("question dispatch missing from history")
	}
	if rec.ID == "" || rec.Fingerprint == "" || rec.CreatedAt.IsZero() {
		t.Errorf("incomplete record %+v", rec)
	}

	// Fetch by ID, then delete, then confirm 404.
	getResp, err := http.Get(testServer.URL + "/api/v1/analyses/" + rec.ID)
	if err != nil {
		t.Fatalf("GET by id: %v", err)
	}
	_ = getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for get, got %d", getResp.StatusCode)
	}

	delReq, _ := http.NewRequest(http.MethodDelete, testServer.URL+"/api/v1/analyses/"+rec.ID, nil)
	delResp, err := http.DefaultClient.Do(delReq)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	_ = delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for delete, got %d", delResp.StatusCode)
	}

	getResp, err = http.Get(testServer.URL + "/api/v1/analyses/" + rec.ID)
	if err != nil {
		t.Fatalf("GET after delete: %v", err)
	}
	_ = getResp.Body.Close()
	if getResp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", getResp.StatusCode)
	}
}

func TestStructuredOperationEndToEnd(t *testing.T) {
	// The fake upstream answers prose, which violates the structured
	// contract, so the API reports a bad gateway with the classification.
	resp, body := postAnalysis(t, analysis.Request{
		Operation: analysis.OpComplexity,
		Code:      "for i in range(n): total += i",
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", resp.StatusCode, body)
	}
	var de struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &de); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if de.Kind != "invalid_response" {
		t.Errorf("expected kind invalid_response, got %q", de.Kind)
	}
}

func credentialStatus(t *testing.T) credential.Status {
	t.Helper()
	resp, err := http.Get(testServer.URL + "/api/v1/credentials/status")
	if err != nil {
		t.Fatalf("GET /api/v1/credentials/status: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st credential.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}
