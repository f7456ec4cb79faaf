// Package feed carries external note content updates between the processes
// and components that write notes and the editing sessions that reconcile
// against them.
package feed

import (
	"context"
	"log/slog"
	"sync"
)

// Update sources.
const (
	SourceAPI     = "api"
	SourceSession = "session"
	SourceAgent   = "agent"
	SourceWatcher = "watcher"
)

// Update is the latest stored content of one note. Created marks the first
// write of a note and Deleted its removal.
type Update struct {
	NoteID  string `json:"note_id"`
	Content string `json:"content"`
	Source  string `json:"source"`
	Created bool   `json:"created,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Bus publishes updates to every subscriber.
type Bus interface {
	Publish(ctx context.Context, u Update) error
	// Subscribe delivers updates until ctx is done, then closes the channel.
	Subscribe(ctx context.Context) (<-chan Update, error)
	Close() error
}

const subscriberBuffer = 64

// Local is an in-process Bus.
type Local struct {
	mu     sync.Mutex
	subs   map[chan Update]struct{}
	closed bool
	logger *slog.Logger
}

// NewLocal creates an in-process bus.
func NewLocal(logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{subs: make(map[chan Update]struct{}), logger: logger}
}

// Publish delivers u to every subscriber. A subscriber whose buffer is full
// misses the update.
func (b *Local) Publish(_ context.Context, u Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
			b.logger.Warn("feed subscriber lagging, update dropped",
				slog.String("note_id", u.NoteID), slog.String("source", u.Source))
		}
	}
	return nil
}

// Subscribe registers a subscriber for the lifetime of ctx.
func (b *Local) Subscribe(ctx context.Context) (<-chan Update, error) {
	ch := make(chan Update, subscriberBuffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(ch)
	}()
	return ch, nil
}

func (b *Local) remove(ch chan Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// Close ends every subscription.
func (b *Local) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}
