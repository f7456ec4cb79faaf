// Package models defines the domain types for doodle.
package models

import (
	"time"

	"github.com/starford/doodle/internal/document"
)

// Note is a stored note with its parsed block structure.
type Note struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Blocks    document.Document `json:"blocks"`
	Tags      []string          `json:"tags,omitempty"`
	Checksum  string            `json:"checksum"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Record returns the persisted content record of n.
func (n *Note) Record() document.Record {
	return document.Record{Type: document.RecordType, Content: n.Content, Blocks: n.Blocks}
}

// NoteSummary is the lightweight form returned by list operations.
type NoteSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags,omitempty"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteFile describes a note file in the vault.
type NoteFile struct {
	ID       string    `json:"id"`
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"mod_time"`
}
