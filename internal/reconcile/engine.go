// Package reconcile keeps a locally edited document in step with an
// externally stored markdown copy of the same note.
//
// Incoming external text is classified as a duplicate of what was last
// accepted, an echo of the engine's own emission, or a genuine replacement.
// Local mutations are coalesced by a debounce timer and emitted only when the
// serialized document differs from what was last sent out.
//
// An Engine is not safe for concurrent use. It expects a single owner that
// also runs the scheduler's callbacks.
package reconcile

import (
	"time"

	"github.com/starford/doodle/internal/document"
)

// DefaultDelay is the debounce window used when none is configured.
const DefaultDelay = 600 * time.Millisecond

// Outcome classifies an external update.
type Outcome int

const (
	// Duplicate means the text equals the last accepted external text.
	Duplicate Outcome = iota
	// Echo means the text equals the engine's last emission or the current
	// serialized document.
	Echo
	// Replaced means the document was replaced by the parsed text.
	Replaced
)

func (o Outcome) String() string {
	switch o {
	case Duplicate:
		return "duplicate"
	case Echo:
		return "echo"
	case Replaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Emitter sends serialized content outward. A failed emission leaves the
// last-emitted text unchanged so the next flush retries it.
type Emitter func(content string, doc document.Document) error

// Mutation is a local structural edit.
type Mutation func(document.Document) document.Document

// Option configures an Engine.
type Option func(*Engine)

// WithDelay sets the debounce window.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.delay = d
		}
	}
}

// WithScheduler sets the timer source. Defaults to TimerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		if s != nil {
			e.sched = s
		}
	}
}

// WithErrorHandler receives emission errors raised by the debounce timer.
func WithErrorHandler(fn func(error)) Option {
	return func(e *Engine) {
		if fn != nil {
			e.onError = fn
		}
	}
}

// Engine owns one editing session's document and its reconciliation state.
type Engine struct {
	doc          document.Document
	lastAccepted string
	lastEmitted  string
	inFlight     bool

	delay   time.Duration
	sched   Scheduler
	emit    Emitter
	onError func(error)

	cancel func()
	gen    uint64
	closed bool
}

// New starts a session from doc and the stored content it was loaded from.
// The stored content counts as both accepted and emitted.
func New(doc document.Document, stored string, emit Emitter, opts ...Option) *Engine {
	e := &Engine{
		doc:          document.New(doc...),
		lastAccepted: stored,
		lastEmitted:  stored,
		delay:        DefaultDelay,
		sched:        TimerScheduler{},
		emit:         emit,
		onError:      func(error) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Document returns the current document.
func (e *Engine) Document() document.Document {
	return e.doc
}

// State is a snapshot of the reconciliation bookkeeping.
type State struct {
	LastAccepted string `json:"last_accepted"`
	LastEmitted  string `json:"last_emitted"`
	Pending      bool   `json:"pending"`
	Closed       bool   `json:"closed"`
}

// State reports the engine's bookkeeping.
func (e *Engine) State() State {
	return State{
		LastAccepted: e.lastAccepted,
		LastEmitted:  e.lastEmitted,
		Pending:      e.cancel != nil,
		Closed:       e.closed,
	}
}

// Receive processes external text.
//
// Text equal to the engine's last emission is an echo even when local edits
// have moved on since: the store is only catching up, and the pending edits
// still need to go out.
func (e *Engine) Receive(text string) Outcome {
	if text == e.lastAccepted {
		return Duplicate
	}
	if text == e.lastEmitted {
		e.lastAccepted = text
		return Echo
	}
	if text == e.doc.Markdown() {
		e.lastAccepted = text
		e.lastEmitted = text
		return Echo
	}

	// The pending emission describes content the replacement discards.
	e.stop()
	e.inFlight = true
	e.doc = document.FromMarkdown(text)
	e.lastAccepted = text
	// The store already holds text. Recording its normalized form keeps a
	// later flush from rewriting it without a local edit.
	e.lastEmitted = e.doc.Markdown()
	e.mutated()
	return Replaced
}

// Apply runs a local mutation and restarts the debounce window.
func (e *Engine) Apply(m Mutation) document.Document {
	e.doc = m(e.doc)
	e.mutated()
	return e.doc
}

func (e *Engine) mutated() {
	if e.inFlight {
		e.inFlight = false
		return
	}
	if e.closed {
		return
	}
	e.schedule()
}

func (e *Engine) schedule() {
	e.stop()
	e.gen++
	gen := e.gen
	e.cancel = e.sched.After(e.delay, func() { e.fire(gen) })
}

func (e *Engine) fire(gen uint64) {
	if gen != e.gen || e.closed {
		return
	}
	e.cancel = nil
	if err := e.emitIfChanged(); err != nil {
		e.onError(err)
	}
}

// Flush cancels the debounce timer and emits immediately if the content
// changed since the last emission. It reports whether anything was emitted.
func (e *Engine) Flush() (bool, error) {
	e.stop()
	if e.doc.Markdown() == e.lastEmitted {
		return false, nil
	}
	if err := e.emitIfChanged(); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) emitIfChanged() error {
	content := e.doc.Markdown()
	if content == e.lastEmitted {
		return nil
	}
	if e.emit != nil {
		if err := e.emit(content, e.doc); err != nil {
			return err
		}
	}
	e.lastEmitted = content
	return nil
}

// Close cancels any pending emission. Later mutations are applied but never
// scheduled.
func (e *Engine) Close() {
	e.stop()
	e.closed = true
}

func (e *Engine) stop() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
}
