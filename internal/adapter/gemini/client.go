// Package gemini provides the HTTP client for the Google Gemini
// generateContent endpoint, implementing the provider port.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/subinesh21/codelens-ai/internal/domain/credential"
	"github.com/subinesh21/codelens-ai/internal/domain/dispatch"
	"github.com/subinesh21/codelens-ai/internal/port/provider"
)

const defaultTimeout = 60 * time.Second

// Client talks to the Gemini generateContent API. One client serves the
// whole credential pool; the key is supplied per call and travels in
// the x-goog-api-key header, never in the URL, so it cannot surface in
// transport errors.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a Gemini client for the given API base URL and model.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature,omitempty"`
	MaxOutputTokens  int32   `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason,omitempty"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int32 `json:"promptTokenCount"`
		CandidatesTokenCount int32 `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
	ModelVersion string `json:"modelVersion,omitempty"`
}

func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

// apiError is the error envelope Gemini returns on non-2xx statuses.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate calls generateContent with the given credential. Every
// failure is classified into a dispatch error kind; the executor relies
// on that to drive retries and pool health.
func (c *Client) Generate(ctx context.Context, cred credential.Credential, req provider.Request) (*provider.Response, error) {
	body, err := json.Marshal(buildBody(req))
	if err != nil {
		return nil, dispatch.NewError(dispatch.KindTransport, "build request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, dispatch.NewError(dispatch.KindTransport, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", cred.Secret)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, dispatch.NewError(dispatch.KindTransport, "call upstream", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dispatch.NewError(dispatch.KindTransport, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, data)
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, dispatch.NewError(dispatch.KindInvalidResponse, "unmarshal response", err)
	}
	text := out.text()
	if text == "" {
		return nil, dispatch.NewError(dispatch.KindInvalidResponse, "no candidate text in response", nil)
	}

	model := out.ModelVersion
	if model == "" {
		model = c.model
	}
	result := &provider.Response{Text: text, Model: model}
	if um := out.UsageMetadata; um != nil {
		result.TokensIn = um.PromptTokenCount
		result.TokensOut = um.CandidatesTokenCount
	}
	return result, nil
}

func buildBody(req provider.Request) generateRequest {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.Prompt}}}},
	}
	if req.System != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	cfg := &generationConfig{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	if req.WantJSON {
		cfg.ResponseMimeType = "application/json"
	}
	body.GenerationConfig = cfg
	return body
}

// classifyStatus maps a non-2xx upstream reply to a dispatch kind.
// Gemini reports invalid keys as 400 INVALID_ARGUMENT, so the body is
// consulted as well as the status code.
func classifyStatus(status int, body []byte) *dispatch.Error {
	code, detail := parseAPIError(body)
	msg := fmt.Sprintf("upstream status %d", status)
	if detail != "" {
		msg = fmt.Sprintf("upstream status %d: %s", status, detail)
	}

	switch {
	case status == http.StatusTooManyRequests || code == "RESOURCE_EXHAUSTED":
		return dispatch.NewError(dispatch.KindRateLimited, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden ||
		code == "PERMISSION_DENIED" || code == "UNAUTHENTICATED" ||
		strings.Contains(detail, "API key not valid"):
		return dispatch.NewError(dispatch.KindUpstreamAuth, msg, nil)
	case status >= 500:
		return dispatch.NewError(dispatch.KindTransport, msg, nil)
	}
	return dispatch.NewError(dispatch.KindInvalidResponse, msg, nil)
}

func parseAPIError(body []byte) (code, message string) {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err != nil {
		return "", ""
	}
	return ae.Error.Status, ae.Error.Message
}
