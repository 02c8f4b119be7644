package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Service identity
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"name":"codelens","version":%q}`, h.Version)
		})

		r.Get("/operations", h.ListOperations)

		// Analyses: dispatch + history
		r.Post("/analyses", h.CreateAnalysis)
		r.Get("/analyses", h.ListAnalyses)
		r.Get("/analyses/{id}", h.GetAnalysis)
		r.Delete("/analyses/{id}", h.DeleteAnalysis)

		// Credential pool
		r.Get("/credentials/status", h.CredentialStatus)

		// Cache administration
		r.Post("/cache/clear", h.ClearCache)
	})
}
