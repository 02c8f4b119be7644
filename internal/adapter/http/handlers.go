package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/subinesh21/codelens-ai/internal/adapter/ws"
	"github.com/subinesh21/codelens-ai/internal/domain/analysis"
	"github.com/subinesh21/codelens-ai/internal/resilience"
	"github.com/subinesh21/codelens-ai/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Dispatcher *service.Dispatcher
	History    *service.History
	Hub        *ws.Hub             // nil disables /ws
	Breaker    *resilience.Breaker // nil omits breaker state from /health

	Version     string
	CacheTiers  string // "memory" or "memory+nats", for /health
	AnalysisTTL time.Duration
	ChatTTL     time.Duration
}

type healthResponse struct {
	Status         string            `json:"status"`
	Version        string            `json:"version"`
	Breaker        string            `json:"breaker,omitempty"`
	Cache          string            `json:"cache"`
	HistoryEnabled bool              `json:"history_enabled"`
	Pool           poolHealthSummary `json:"pool"`
}

type poolHealthSummary struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Failed int `json:"failed"`
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	st := h.Dispatcher.Status()
	resp := healthResponse{
		Status:         "ok",
		Version:        h.Version,
		Cache:          h.CacheTiers,
		HistoryEnabled: h.History.Enabled(),
		Pool:           poolHealthSummary{Total: st.Total, Active: st.Active, Failed: st.Failed},
	}
	if h.Breaker != nil {
		resp.Breaker = h.Breaker.State()
	}
	writeJSON(w, http.StatusOK, resp)
}

type operationInfo struct {
	Name     string `json:"name"`
	Class    string `json:"class"`
	CacheTTL string `json:"cache_ttl"`
}

// ListOperations handles GET /api/v1/operations
func (h *Handlers) ListOperations(w http.ResponseWriter, _ *http.Request) {
	ops := analysis.Operations()
	out := make([]operationInfo, 0, len(ops))
	for _, op := range ops {
		info := operationInfo{Name: string(op), Class: "conversational", CacheTTL: h.ChatTTL.String()}
		if op.Structured() {
			info.Class = "structured"
			info.CacheTTL = h.AnalysisTTL.String()
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateAnalysis handles POST /api/v1/analyses
func (h *Handlers) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[analysis.Request](w, r)
	if !ok {
		return
	}

	res, err := h.Dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListAnalyses handles GET /api/v1/analyses
func (h *Handlers) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	recs, err := h.History.List(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err, "analyses not found")
		return
	}
	if recs == nil {
		recs = []analysis.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetAnalysis handles GET /api/v1/analyses/{id}
func (h *Handlers) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	rec, err := h.History.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteAnalysis handles DELETE /api/v1/analyses/{id}
func (h *Handlers) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := h.History.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "analysis not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CredentialStatus handles GET /api/v1/credentials/status
func (h *Handlers) CredentialStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Dispatcher.Status())
}

// ClearCache handles POST /api/v1/cache/clear
func (h *Handlers) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.Dispatcher.ClearCache(r.Context()); err != nil {
		writeDomainError(w, err, "cache clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
