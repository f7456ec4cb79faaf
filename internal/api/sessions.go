package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/doodle/internal/session"
)

// SessionHandler holds live editing session route handlers.
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(m *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: m}
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, "get session", err)
		return nil, false
	}
	return s, true
}

// Open handles POST /notes/{id}/sessions.
//
//	@Summary		Start editing a note
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		201	{object}	session.View
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/sessions [post]
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	v, err := s.Snapshot(r.Context())
	if err != nil {
		writeError(w, "open session", err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// Get handles GET /sessions/{sid}.
//
//	@Summary		Current document and reconciliation state of a session
//	@Tags			sessions
//	@Produce		json
//	@Param			sid	path		string	true	"Session id"
//	@Success		200	{object}	session.View
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid} [get]
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	v, err := s.Snapshot(r.Context())
	if err != nil {
		writeError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Close handles DELETE /sessions/{sid}. Pending edits are saved first.
//
//	@Summary		Stop editing
//	@Tags			sessions
//	@Param			sid	path	string	true	"Session id"
//	@Success		204	"Session closed"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid} [delete]
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(r.Context(), chi.URLParam(r, "sid")); err != nil {
		writeError(w, "close session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Edits handles POST /sessions/{sid}/edits.
//
//	@Summary		Apply structural edits
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			body	body		EditsRequest	true	"Edits in order"
//	@Success		200		{object}	session.View
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/edits [post]
func (h *SessionHandler) Edits(w http.ResponseWriter, r *http.Request) {
	var req EditsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	v, err := s.Apply(r.Context(), req.Edits...)
	if err != nil {
		writeError(w, "apply edits", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// External handles POST /sessions/{sid}/external.
//
//	@Summary		Deliver externally stored content to a session
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string			true	"Session id"
//	@Param			body	body		ExternalRequest	true	"Stored content"
//	@Success		200		{object}	ExternalResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/external [post]
func (h *SessionHandler) External(w http.ResponseWriter, r *http.Request) {
	var req ExternalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	outcome, err := s.Receive(r.Context(), *req.Content)
	if err != nil {
		writeError(w, "receive content", err)
		return
	}
	v, err := s.Snapshot(r.Context())
	if err != nil {
		writeError(w, "receive content", err)
		return
	}
	writeJSON(w, http.StatusOK, ExternalResponse{Outcome: outcome.String(), Session: v})
}

// Flush handles POST /sessions/{sid}/flush.
//
//	@Summary		Save pending edits now
//	@Tags			sessions
//	@Produce		json
//	@Param			sid	path		string	true	"Session id"
//	@Success		200	{object}	FlushResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{sid}/flush [post]
func (h *SessionHandler) Flush(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	saved, err := s.Flush(r.Context())
	if err != nil {
		writeError(w, "flush session", err)
		return
	}
	v, err := s.Snapshot(r.Context())
	if err != nil {
		writeError(w, "flush session", err)
		return
	}
	writeJSON(w, http.StatusOK, FlushResponse{Saved: saved, Session: v})
}
