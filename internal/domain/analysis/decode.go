package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Flowchart is the structured payload for OpFlowchart.
type Flowchart struct {
	Title string     `json:"title"`
	Nodes []FlowNode `json:"nodes"`
	Edges []FlowEdge `json:"edges"`
}

// FlowNode is one box in a flowchart. Kind is one of start, end,
// process, decision, io.
type FlowNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind,omitempty"`
}

// FlowEdge connects two nodes by ID.
type FlowEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Trace is the structured payload for OpTrace.
type Trace struct {
	Steps []TraceStep `json:"steps"`
}

// TraceStep describes one step of a simulated execution.
type TraceStep struct {
	Line   int               `json:"line"`
	Event  string            `json:"event"`
	Detail string            `json:"detail,omitempty"`
	State  map[string]string `json:"state,omitempty"`
}

// Complexity is the structured payload for OpComplexity.
type Complexity struct {
	Time     string    `json:"time"`
	Space    string    `json:"space"`
	Summary  string    `json:"summary,omitempty"`
	Hotspots []Hotspot `json:"hotspots,omitempty"`
}

// Hotspot points at a line dominating the complexity bound.
type Hotspot struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// DecodeStructured checks that raw parses as the operation's expected
// payload shape and returns it with any markdown fencing stripped. It
// guards the dispatch contract only; diagram-level validation and
// repair are deliberately out of scope. A failure here means the
// upstream reply is malformed for this operation.
func DecodeStructured(op Operation, raw string) (json.RawMessage, error) {
	text := stripFences(raw)
	switch op {
	case OpFlowchart:
		var fc Flowchart
		if err := json.Unmarshal([]byte(text), &fc); err != nil {
			return nil, fmt.Errorf("flowchart payload: %w", err)
		}
		if len(fc.Nodes) == 0 {
			return nil, errors.New("flowchart payload: no nodes")
		}
	case OpTrace:
		var tr Trace
		if err := json.Unmarshal([]byte(text), &tr); err != nil {
			return nil, fmt.Errorf("trace payload: %w", err)
		}
		if len(tr.Steps) == 0 {
			return nil, errors.New("trace payload: no steps")
		}
	case OpComplexity:
		var cx Complexity
		if err := json.Unmarshal([]byte(text), &cx); err != nil {
			return nil, fmt.Errorf("complexity payload: %w", err)
		}
		if cx.Time == "" {
			return nil, errors.New("complexity payload: missing time bound")
		}
	default:
		return nil, fmt.Errorf("operation %q has no structured payload", op)
	}
	return json.RawMessage(text), nil
}

// stripFences removes a surrounding markdown code fence. Models add one
// now and then even in JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
	return s
}
