// Package noteservice coordinates the vault, the index and the update feed
// for every note read and write.
package noteservice

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/starford/doodle/internal/apperr"
	"github.com/starford/doodle/internal/checksum"
	"github.com/starford/doodle/internal/document"
	"github.com/starford/doodle/internal/feed"
	"github.com/starford/doodle/internal/index"
	"github.com/starford/doodle/internal/models"
	"github.com/starford/doodle/internal/parser"
	"github.com/starford/doodle/internal/storage"
)

// Service coordinates storage, index and feed operations.
type Service struct {
	store  storage.Provider
	db     index.NoteIndex
	bus    feed.Bus
	logger *slog.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new note service. bus may be nil.
func NewService(store storage.Provider, db index.NoteIndex, bus feed.Bus, opts ...Option) *Service {
	s := &Service{
		store:  store,
		db:     db,
		bus:    bus,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a fresh, time-ordered note id.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// GetNote reads a note and its document. Cached blocks are used while they
// belong to the stored content.
func (s *Service) GetNote(_ context.Context, id string) (*models.Note, error) {
	data, err := s.store.Read(id)
	if err != nil {
		return nil, err
	}
	content := string(data)
	cs := checksum.Sum(data)

	rec := document.Record{Type: document.RecordType, Content: content}
	if blocks, ok := s.db.CachedBlocks(id, cs); ok {
		rec.Blocks = blocks
	}
	doc := document.Load(rec)
	meta := parser.FromDocument(doc)

	note := &models.Note{
		ID:       id,
		Title:    meta.Title,
		Content:  content,
		Blocks:   doc,
		Tags:     meta.Tags,
		Checksum: cs,
	}
	if row, err := s.db.GetNote(id); err == nil {
		note.CreatedAt = row.CreatedAt
		note.UpdatedAt = row.UpdatedAt
	}
	return note, nil
}

// Load returns the initial editing document of a note.
func (s *Service) Load(ctx context.Context, id string) (document.Document, *models.Note, error) {
	note, err := s.GetNote(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return note.Blocks, note, nil
}

// CreateNote stores a new note built from rec.
func (s *Service) CreateNote(ctx context.Context, rec document.Record, source string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := NewID()
	if _, err := s.store.Read(id); err == nil {
		return nil, fmt.Errorf("note %s: %w", id, apperr.ErrAlreadyExists)
	}
	return s.persist(ctx, id, document.Load(rec), source, true)
}

// UpdateNote replaces the content of a note with optimistic concurrency:
// a non-empty ifMatch must equal the stored checksum.
func (s *Service) UpdateNote(ctx context.Context, id string, rec document.Record, ifMatch, source string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.Read(id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, fmt.Errorf("note %s: %w", id, apperr.ErrConflict)
	}
	return s.persist(ctx, id, document.Load(rec), source, false)
}

// ReplaceContent replaces a note's content with markdown text.
func (s *Service) ReplaceContent(ctx context.Context, id, content, source string) (*models.Note, error) {
	return s.UpdateNote(ctx, id, document.Record{Type: document.RecordType, Content: content}, "", source)
}

// Save persists an edited document.
func (s *Service) Save(ctx context.Context, id string, doc document.Document, source string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.Read(id); err != nil {
		return nil, err
	}
	return s.persist(ctx, id, doc, source, false)
}

// Mutate applies fn to the current document of a note and saves the result.
// An error from fn aborts without writing.
func (s *Service) Mutate(ctx context.Context, id, source string, fn func(document.Document) (document.Document, error)) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, err := s.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := fn(note.Blocks)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, id, doc, source, false)
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(ctx context.Context, id, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(id); err != nil {
		return err
	}
	if err := s.db.DeleteNote(id); err != nil {
		return err
	}
	s.publish(ctx, feed.Update{NoteID: id, Source: source, Deleted: true})
	return nil
}

// ListNotes returns paginated note summaries with optional tag filter.
func (s *Service) ListNotes(_ context.Context, q index.ListQuery) ([]models.NoteSummary, int, error) {
	rows, total, err := s.db.ListNotes(q)
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.NoteSummary, len(rows))
	for i, r := range rows {
		items[i] = models.NoteSummary{
			ID:        r.ID,
			Title:     r.Title,
			Tags:      nonNilSlice(r.Tags),
			Checksum:  r.Checksum,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(ctx, query, limit)
}

// persist writes doc as the content of id, refreshes the index and block
// cache, and publishes the new content. Unchanged content is not rewritten
// or published. Callers hold s.mu.
func (s *Service) persist(ctx context.Context, id string, doc document.Document, source string, create bool) (*models.Note, error) {
	rec := document.Save(doc)
	data := []byte(rec.Content)
	cs := checksum.Sum(data)

	changed := true
	if !create {
		if prev, err := s.db.GetChecksum(id); err == nil && prev == cs {
			changed = false
		}
	}

	if changed {
		if err := s.store.Write(id, data); err != nil {
			return nil, err
		}
	}

	meta := parser.FromDocument(rec.Blocks)
	now := s.now().UTC()
	row := index.NoteRow{
		ID:             id,
		Title:          meta.Title,
		Checksum:       cs,
		Tags:           meta.Tags,
		Blocks:         rec.Blocks,
		BlocksChecksum: cs,
		UpdatedAt:      now,
	}
	if !changed {
		if prev, err := s.db.GetNote(id); err == nil {
			row.UpdatedAt = prev.UpdatedAt
		}
	}
	if err := s.db.UpsertNote(row, meta.Text); err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, feed.Update{NoteID: id, Content: rec.Content, Source: source, Created: create})
	}

	note := &models.Note{
		ID:        id,
		Title:     meta.Title,
		Content:   rec.Content,
		Blocks:    rec.Blocks,
		Tags:      meta.Tags,
		Checksum:  cs,
		CreatedAt: now,
		UpdatedAt: row.UpdatedAt,
	}
	if stored, err := s.db.GetNote(id); err == nil {
		note.CreatedAt = stored.CreatedAt
	}
	return note, nil
}

func (s *Service) publish(ctx context.Context, u feed.Update) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, u); err != nil {
		s.logger.Warn("feed publish failed",
			slog.String("note_id", u.NoteID),
			slog.String("error", err.Error()))
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
