package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/doodle/internal/document"
	"github.com/starford/doodle/internal/index"
	"github.com/starford/doodle/internal/models"
	"github.com/starford/doodle/internal/session"
)

// NoteRequest is the request body for creating or replacing a note. Content
// is canonical; Blocks, when present, is stored as the block cache of the
// content it serializes to.
type NoteRequest struct {
	Type    string            `json:"type" example:"markdown"`
	Content string            `json:"content" example:"# Groceries\n- [ ] milk"`
	Blocks  document.Document `json:"blocks,omitempty"`
}

// Validate checks the record type. An empty type means markdown.
func (r NoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.In(document.RecordType)),
	)
}

// Record converts the request to a stored record.
func (r NoteRequest) Record() document.Record {
	return document.Record{Type: document.RecordType, Content: r.Content, Blocks: r.Blocks}
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []models.NoteSummary `json:"notes"`
	Total int                  `json:"total" example:"42"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results"`
}

// BlockTypesResponse lists the targets a block can be changed into.
type BlockTypesResponse struct {
	Types []document.Target `json:"types"`
}

// EditsRequest carries structural edits for a session.
type EditsRequest struct {
	Edits []document.Edit `json:"edits"`
}

// Validate requires at least one edit and validates each of them.
func (r EditsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Edits, validation.Required),
	)
}

// ExternalRequest carries content written by another party.
type ExternalRequest struct {
	Content *string `json:"content"`
}

// Validate requires content to be present; it may be empty.
func (r ExternalRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.NotNil),
	)
}

// ExternalResponse reports how a session classified external content.
type ExternalResponse struct {
	Outcome string       `json:"outcome" example:"replaced"`
	Session session.View `json:"session"`
}

// FlushResponse reports whether a flush saved anything.
type FlushResponse struct {
	Saved   bool         `json:"saved"`
	Session session.View `json:"session"`
}
