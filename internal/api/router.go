package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/doodle/internal/noteservice"
	"github.com/starford/doodle/internal/session"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, sessions *session.Manager, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	sh := NewSessionHandler(sessions)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	r.Get("/search", h.Search)
	r.Get("/block-types", h.BlockTypes)

	// Live editing sessions.
	r.Post("/notes/{id}/sessions", sh.Open)
	r.Route("/sessions/{sid}", func(r chi.Router) {
		r.Get("/", sh.Get)
		r.Delete("/", sh.Close)
		r.Post("/edits", sh.Edits)
		r.Post("/external", sh.External)
		r.Post("/flush", sh.Flush)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
