package analysis

import (
	"encoding/json"
	"testing"
)

func TestDecodeStructuredFlowchart(t *testing.T) {
	raw := `{"title":"main","nodes":[{"id":"n1","label":"start","kind":"start"}],"edges":[]}`
	data, err := DecodeStructured(OpFlowchart, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var fc Flowchart
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("returned payload not parsable: %v", err)
	}
	if fc.Title != "main" || len(fc.Nodes) != 1 {
		t.Errorf("unexpected payload: %+v", fc)
	}
}

func TestDecodeStructuredStripsFences(t *testing.T) {
	raw := "```json\n{\"steps\":[{\"line\":1,\"event\":\"assign\"}]}\n```"
	data, err := DecodeStructured(OpTrace, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var tr Trace
	if err := json.Unmarshal(data, &tr); err != nil {
		t.Fatalf("returned payload not parsable: %v", err)
	}
	if len(tr.Steps) != 1 || tr.Steps[0].Line != 1 {
		t.Errorf("unexpected payload: %+v", tr)
	}
}

func TestDecodeStructuredRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		raw  string
	}{
		{"not json", OpFlowchart, "here is your flowchart!"},
		{"empty nodes", OpFlowchart, `{"title":"t","nodes":[],"edges":[]}`},
		{"wrong shape", OpTrace, `{"nodes":[{"id":"n1"}]}`},
		{"missing time bound", OpComplexity, `{"space":"O(1)"}`},
		{"truncated", OpComplexity, `{"time":"O(n)","space":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeStructured(tt.op, tt.raw); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestDecodeStructuredRejectsProseOperations(t *testing.T) {
	if _, err := DecodeStructured(OpExplain, `{}`); err == nil {
		t.Error("expected error for conversational operation")
	}
}

func TestDecodeStructuredComplexity(t *testing.T) {
	raw := `{"time":"O(n log n)","space":"O(n)","summary":"sorts then scans","hotspots":[{"line":3,"reason":"sort"}]}`
	data, err := DecodeStructured(OpComplexity, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var cx Complexity
	if err := json.Unmarshal(data, &cx); err != nil {
		t.Fatalf("returned payload not parsable: %v", err)
	}
	if cx.Time != "O(n log n)" || len(cx.Hotspots) != 1 {
		t.Errorf("unexpected payload: %+v", cx)
	}
}
