package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/doodle/internal/checksum"
	"github.com/starford/doodle/internal/document"
	"github.com/starford/doodle/internal/feed"
	"github.com/starford/doodle/internal/index"
	"github.com/starford/doodle/internal/models"
	"github.com/starford/doodle/internal/noteservice"
)

// Handler holds note route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListNotes handles GET /notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, created, title)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListNotes(r.Context(), index.ListQuery{
		Limit:  limit,
		Offset: offset,
		Tag:    strings.TrimPrefix(q.Get("tag"), "#"),
		Sort:   q.Get("sort"),
	})
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	if items == nil {
		items = []models.NoteSummary{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /notes/{id}.
//
//	@Summary		Get a single note with its blocks
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.GetNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(note.Checksum))
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		NoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Record(), feed.SourceAPI)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(note.Checksum))
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /notes/{id}.
//
//	@Summary		Replace a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string		true	"Note id"
//	@Param			If-Match	header		string		false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		NoteRequest	true	"New content"
//	@Success		200			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ifMatch := checksum.FromETag(r.Header.Get("If-Match"))

	note, err := h.svc.UpdateNote(r.Context(), chi.URLParam(r, "id"), req.Record(), ifMatch, feed.SourceAPI)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(note.Checksum))
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/{id}.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteNote(r.Context(), chi.URLParam(r, "id"), feed.SourceAPI); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// BlockTypes handles GET /block-types.
//
//	@Summary		List the block types a block can be changed into
//	@Tags			blocks
//	@Produce		json
//	@Success		200	{object}	BlockTypesResponse
//	@Security		BearerAuth
//	@Router			/block-types [get]
func (h *Handler) BlockTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, BlockTypesResponse{Types: document.Targets()})
}
