package index

import (
	"context"

	"github.com/starford/doodle/internal/document"
)

// NoteIndex defines the interface for note indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string) error
	DeleteNote(id string) error
	GetChecksum(id string) (string, error)
	GetNote(id string) (*NoteRow, error)
	CachedBlocks(id, checksum string) (document.Document, bool)
	ListNotes(q ListQuery) ([]NoteRow, int, error)
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
