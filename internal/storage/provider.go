// Package storage defines the vault file-system abstraction. Each note is one
// "<id>.md" file at the vault root holding its markdown content.
package storage

import "github.com/starford/doodle/internal/models"

// Provider is the interface for vault note file operations.
type Provider interface {
	// List returns metadata for every note file in the vault.
	List() ([]models.NoteFile, error)
	// Read returns the content of note id. Missing notes wrap apperr.ErrNotFound.
	Read(id string) ([]byte, error)
	// Write atomically writes the content of note id.
	Write(id string, content []byte) error
	// Delete removes note id. Missing notes wrap apperr.ErrNotFound.
	Delete(id string) error
}
