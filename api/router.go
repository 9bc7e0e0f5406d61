// Package api exposes the assistant over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter returns the HTTP routes served by `ragnote serve`.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/notes", func(r chi.Router) {
		r.Post("/", h.CreateNote)
		r.Delete("/{id}", h.DeleteNote)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.PostChat)
		r.Get("/chat", h.GetChat)
		r.Post("/user-info", h.UpdateUserInfo)
	})

	return r
}
