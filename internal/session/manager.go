package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/doodle/internal/apperr"
	"github.com/starford/doodle/internal/feed"
	"github.com/starford/doodle/internal/reconcile"
)

// Defaults.
const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// ReplaceFunc is told when an external update replaced a session's document.
type ReplaceFunc func(noteID, sessionID string)

// Option configures a Manager.
type Option func(*Manager)

// WithDelay sets the debounce window of new sessions.
func WithDelay(d time.Duration) Option {
	return func(m *Manager) { m.delay = d }
}

// WithIdleTTL sets how long an unused session lives.
func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTTL = d
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithReplaceFunc registers the replacement callback.
func WithReplaceFunc(fn ReplaceFunc) Option {
	return func(m *Manager) { m.onReplace = fn }
}

// Manager tracks open sessions and routes feed updates to them.
type Manager struct {
	store     Store
	delay     time.Duration
	idleTTL   time.Duration
	logger    *slog.Logger
	onReplace ReplaceFunc

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		delay:    reconcile.DefaultDelay,
		idleTTL:  DefaultIdleTTL,
		logger:   slog.Default(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open loads a note and starts a session on it.
func (m *Manager) Open(ctx context.Context, noteID string) (*Session, error) {
	doc, note, err := m.store.Load(ctx, noteID)
	if err != nil {
		return nil, err
	}
	s := newSession(uuid.NewString(), noteID, doc, note.Content, m.store, m.delay, m.logger)
	if m.onReplace != nil {
		s.onReplace = func(s *Session, _ string) { m.onReplace(s.NoteID, s.ID) }
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.Info("session opened", slog.String("session_id", s.ID), slog.String("note_id", noteID))
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close flushes and ends a session.
func (m *Manager) Close(ctx context.Context, id string) error {
	s, err := m.take(id)
	if err != nil {
		return err
	}
	m.logger.Info("session closed", slog.String("session_id", id))
	return s.Close(ctx, true)
}

func (m *Manager) take(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	delete(m.sessions, id)
	return s, nil
}

func (m *Manager) forNote(noteID string) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.NoteID == noteID {
			out = append(out, s)
		}
	}
	return out
}

// Dispatch delivers one feed update to every session of its note. Sessions
// of a deleted note end without saving.
func (m *Manager) Dispatch(ctx context.Context, u feed.Update) {
	for _, s := range m.forNote(u.NoteID) {
		if u.Deleted {
			if _, err := m.take(s.ID); err == nil {
				_ = s.Close(ctx, false)
				m.logger.Info("session closed, note deleted", slog.String("session_id", s.ID))
			}
			continue
		}
		if _, err := s.Receive(ctx, u.Content); err != nil {
			m.logger.Warn("session: deliver update failed",
				slog.String("session_id", s.ID), slog.String("error", err.Error()))
		}
	}
}

// Run dispatches updates until ctx is done or updates closes, then closes
// every session, saving pending changes.
func (m *Manager) Run(ctx context.Context, updates <-chan feed.Update) error {
	defer m.CloseAll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			m.Dispatch(ctx, u)
		}
	}
}

// Sweep closes sessions unused since before now minus the idle TTL.
func (m *Manager) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-m.idleTTL)
	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	n := 0
	for _, id := range idle {
		s, err := m.take(id)
		if err != nil {
			continue
		}
		if err := s.Close(ctx, true); err != nil {
			m.logger.Warn("session: idle close failed", slog.String("session_id", id), slog.String("error", err.Error()))
		}
		m.logger.Info("session expired", slog.String("session_id", id))
		n++
	}
	return n
}

// RunSweeper sweeps idle sessions every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.Sweep(ctx, now)
		}
	}
}

// CloseAll flushes and ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	for id, s := range all {
		if err := s.Close(ctx, true); err != nil {
			m.logger.Warn("session: close failed", slog.String("session_id", id), slog.String("error", err.Error()))
		}
	}
}
