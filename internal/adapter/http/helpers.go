package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/subinesh21/codelens-ai/internal/domain"
	"github.com/subinesh21/codelens-ai/internal/domain/credential"
	"github.com/subinesh21/codelens-ai/internal/domain/dispatch"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

type errorResponse struct {
	Error string `json:"error"`
}

// dispatchErrorResponse carries the failure classification so the UI can
// distinguish an empty pool from a throttled one or a broken upstream.
type dispatchErrorResponse struct {
	Error    string             `json:"error"`
	Kind     dispatch.Kind      `json:"kind"`
	Attempts int                `json:"attempts,omitempty"`
	Pool     *credential.Status `json:"pool,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForKind maps a dispatch failure classification to an HTTP status.
// Pool outages are 503 (retry later, possibly with more credentials);
// upstream misbehavior is 502.
func statusForKind(k dispatch.Kind) int {
	switch k {
	case dispatch.KindNoCredentials, dispatch.KindAllExhausted:
		return http.StatusServiceUnavailable
	case dispatch.KindRetriesExhausted, dispatch.KindInvalidResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeDispatchError renders a classified dispatch failure, falling back
// to the generic domain mapping for anything unclassified.
func writeDispatchError(w http.ResponseWriter, err error) {
	var de *dispatch.Error
	if !errors.As(err, &de) {
		writeDomainError(w, err, "analysis failed")
		return
	}
	writeJSON(w, statusForKind(de.Kind), dispatchErrorResponse{
		Error:    de.Error(),
		Kind:     de.Kind,
		Attempts: de.Attempts,
		Pool:     de.Pool,
	})
}

func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrHistoryDisabled):
		writeError(w, http.StatusServiceUnavailable, "analysis history is not configured")
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		writeError(w, http.StatusBadRequest, msg)
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
