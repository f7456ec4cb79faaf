// Package session runs live editing sessions. Each session owns one
// reconcile.Engine on a dedicated event loop goroutine: client edits,
// external updates and debounce timer callbacks are all executed there, one
// at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/doodle/internal/apperr"
	"github.com/starford/doodle/internal/document"
	"github.com/starford/doodle/internal/feed"
	"github.com/starford/doodle/internal/models"
	"github.com/starford/doodle/internal/reconcile"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

const saveTimeout = 10 * time.Second

// Store loads and saves note documents.
type Store interface {
	Load(ctx context.Context, id string) (document.Document, *models.Note, error)
	Save(ctx context.Context, id string, doc document.Document, source string) (*models.Note, error)
}

// View is a snapshot of a session.
type View struct {
	ID        string            `json:"id"`
	NoteID    string            `json:"note_id"`
	Blocks    document.Document `json:"blocks"`
	Content   string            `json:"content"`
	State     reconcile.State   `json:"state"`
	CreatedAt time.Time         `json:"created_at"`
}

// Session is one client's live edit of one note.
type Session struct {
	ID        string
	NoteID    string
	CreatedAt time.Time

	cmds      chan func()
	closed    chan struct{}
	closeOnce sync.Once
	lastUsed  atomic.Int64

	engine    *reconcile.Engine
	store     Store
	logger    *slog.Logger
	onReplace func(s *Session, content string)
}

func newSession(id string, noteID string, doc document.Document, stored string, store Store, delay time.Duration, logger *slog.Logger) *Session {
	s := &Session{
		ID:        id,
		NoteID:    noteID,
		CreatedAt: time.Now(),
		cmds:      make(chan func()),
		closed:    make(chan struct{}),
		store:     store,
		logger:    logger.With(slog.String("session_id", id), slog.String("note_id", noteID)),
	}
	s.touch()
	s.engine = reconcile.New(doc, stored, s.emit,
		reconcile.WithDelay(delay),
		reconcile.WithScheduler(reconcile.SchedulerFunc(s.after)),
		reconcile.WithErrorHandler(func(err error) {
			s.logger.Error("session: save failed", slog.String("error", err.Error()))
		}),
	)
	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.closed:
			return
		}
	}
}

// after is the engine's scheduler: timer callbacks are posted into the loop.
func (s *Session) after(delay time.Duration, fn func()) func() {
	t := time.AfterFunc(delay, func() {
		select {
		case s.cmds <- fn:
		case <-s.closed:
		}
	})
	return func() { t.Stop() }
}

// do runs fn on the loop and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) emit(content string, doc document.Document) error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if _, err := s.store.Save(ctx, s.NoteID, doc, feed.SourceSession); err != nil {
		return fmt.Errorf("save note %s: %w", s.NoteID, err)
	}
	s.logger.Debug("session: saved", slog.Int("bytes", len(content)))
	return nil
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// LastUsed reports when a client last used the session.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

func (s *Session) view() View {
	doc := s.engine.Document()
	return View{
		ID:        s.ID,
		NoteID:    s.NoteID,
		Blocks:    doc,
		Content:   doc.Markdown(),
		State:     s.engine.State(),
		CreatedAt: s.CreatedAt,
	}
}

// Snapshot returns the current document and reconciliation state.
func (s *Session) Snapshot(ctx context.Context) (View, error) {
	s.touch()
	var v View
	err := s.do(ctx, func() { v = s.view() })
	return v, err
}

// Apply validates every edit, then applies them in order. Emission is
// debounced. Invalid edits wrap apperr.ErrInvalid and nothing is applied.
func (s *Session) Apply(ctx context.Context, edits ...document.Edit) (View, error) {
	s.touch()
	for i, e := range edits {
		if err := e.Validate(); err != nil {
			return View{}, fmt.Errorf("edit %d: %v: %w", i, err, apperr.ErrInvalid)
		}
	}
	var (
		v        View
		applyErr error
	)
	err := s.do(ctx, func() {
		for i, e := range edits {
			var next document.Document
			next, applyErr = e.Apply(s.engine.Document())
			if applyErr != nil {
				applyErr = fmt.Errorf("edit %d: %v: %w", i, applyErr, apperr.ErrInvalid)
				break
			}
			s.engine.Apply(func(document.Document) document.Document { return next })
		}
		v = s.view()
	})
	if err != nil {
		return View{}, err
	}
	return v, applyErr
}

// Mutate applies fn as a single local edit.
func (s *Session) Mutate(ctx context.Context, fn reconcile.Mutation) (View, error) {
	s.touch()
	var v View
	err := s.do(ctx, func() {
		s.engine.Apply(fn)
		v = s.view()
	})
	return v, err
}

// Receive feeds external content into the engine.
func (s *Session) Receive(ctx context.Context, content string) (reconcile.Outcome, error) {
	var out reconcile.Outcome
	err := s.do(ctx, func() {
		out = s.engine.Receive(content)
		if out == reconcile.Replaced && s.onReplace != nil {
			s.onReplace(s, content)
		}
	})
	if err == nil {
		s.logger.Debug("session: external update", slog.String("outcome", out.String()))
	}
	return out, err
}

// Flush saves pending changes now.
func (s *Session) Flush(ctx context.Context) (bool, error) {
	s.touch()
	var (
		saved    bool
		flushErr error
	)
	if err := s.do(ctx, func() { saved, flushErr = s.engine.Flush() }); err != nil {
		return false, err
	}
	return saved, flushErr
}

// Close ends the session. With flush, pending changes are saved first;
// otherwise the pending emission is discarded.
func (s *Session) Close(ctx context.Context, flush bool) error {
	var flushErr error
	err := s.do(ctx, func() {
		if flush {
			_, flushErr = s.engine.Flush()
		}
		s.engine.Close()
	})
	s.closeOnce.Do(func() { close(s.closed) })
	if errors.Is(err, ErrClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	return flushErr
}
