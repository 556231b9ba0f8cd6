// Package synchttp exposes the sync workflows to operators and the UI.
package synchttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers the sync endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/sync", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Get("/logs", h.handleLogs)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Post("/import", h.handleImport)
			gr.Post("/export/{itemID}", h.handleExport)
			gr.Post("/reconcile", h.handleReconcile)
			gr.Post("/delta", h.handleDelta)
		})
	})
}
