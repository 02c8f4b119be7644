package analysis

import (
	"fmt"
	"strings"
)

const (
	flowchartSystem = `You are a static-analysis engine. Produce a control-flow chart of the
given code as JSON with exactly this shape:
{"title": string, "nodes": [{"id": string, "label": string, "kind": string}], "edges": [{"from": string, "to": string, "label": string}]}
Node kind is one of: start, end, process, decision, io. Every edge must
reference node ids that exist. Respond with JSON only, no prose.`

	traceSystem = `You are a static-analysis engine. Simulate executing the given code on
representative input and produce a step-by-step trace as JSON with
exactly this shape:
{"steps": [{"line": number, "event": string, "detail": string, "state": {string: string}}]}
Keep the trace under 40 steps. Respond with JSON only, no prose.`

	complexitySystem = `You are a static-analysis engine. Determine the asymptotic complexity
of the given code and respond as JSON with exactly this shape:
{"time": string, "space": string, "summary": string, "hotspots": [{"line": number, "reason": string}]}
Use big-O notation for time and space. Respond with JSON only, no prose.`

	explainSystem = `You are a senior engineer explaining code to a colleague. Explain what
the given code does, how it works, and anything surprising about it.
Be concrete and concise; plain prose, no headings.`

	questionSystem = `You are a senior engineer answering a question about the given code.
Answer the question directly and concisely, grounded in the code shown.
Plain prose.`
)

// BuildPrompt renders the system instruction and user prompt for a
// request. Structured operations instruct the model to answer with the
// exact JSON shape DecodeStructured expects.
func BuildPrompt(r Request) (system, user string) {
	switch r.Operation {
	case OpFlowchart:
		system = flowchartSystem
	case OpTrace:
		system = traceSystem
	case OpComplexity:
		system = complexitySystem
	case OpExplain:
		system = explainSystem
	case OpQuestion:
		system = questionSystem
	}

	var b strings.Builder
	if lang := strings.TrimSpace(r.Language); lang != "" {
		fmt.Fprintf(&b, "Language: %s\n\n", lang)
	}
	fmt.Fprintf(&b, "Code:\n```\n%s\n```\n", NormalizeCode(r.Code))
	if r.Operation == OpQuestion {
		fmt.Fprintf(&b, "\nQuestion: %s\n", strings.TrimSpace(r.Question))
	}
	return system, b.String()
}
