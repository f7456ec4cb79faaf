package reconcile

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/doodle/internal/block"
	"github.com/starford/doodle/internal/document"
)

// fakeScheduler records callbacks and runs them on demand.
type fakeScheduler struct {
	timers []*fakeTimer
}

type fakeTimer struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

func (s *fakeScheduler) After(delay time.Duration, fn func()) func() {
	t := &fakeTimer{delay: delay, fn: fn}
	s.timers = append(s.timers, t)
	return func() { t.cancelled = true }
}

func (s *fakeScheduler) active() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.cancelled {
			out = append(out, t)
		}
	}
	return out
}

// fireAll runs every callback that has not been cancelled.
func (s *fakeScheduler) fireAll() {
	for _, t := range s.active() {
		t.cancelled = true
		t.fn()
	}
}

type recorder struct {
	emitted []string
	err     error
}

func (r *recorder) emit(content string, _ document.Document) error {
	if r.err != nil {
		return r.err
	}
	r.emitted = append(r.emitted, content)
	return nil
}

func newEngine(t *testing.T, stored string) (*Engine, *fakeScheduler, *recorder) {
	t.Helper()
	sched := &fakeScheduler{}
	rec := &recorder{}
	e := New(document.FromMarkdown(stored), stored, rec.emit,
		WithScheduler(sched), WithDelay(300*time.Millisecond))
	return e, sched, rec
}

func setText(i int, text string) Mutation {
	return func(d document.Document) document.Document { return d.UpdateText(i, text) }
}

func TestReceive_Duplicate(t *testing.T) {
	e, sched, rec := newEngine(t, "a")
	assert.Equal(t, Duplicate, e.Receive("a"))
	assert.Empty(t, sched.timers)
	assert.Empty(t, rec.emitted)
}

func TestReceive_IdempotentReplacement(t *testing.T) {
	e, sched, rec := newEngine(t, "a")

	assert.Equal(t, Replaced, e.Receive("# new"))
	before := e.Document()
	assert.Equal(t, Duplicate, e.Receive("# new"))

	assert.Equal(t, before, e.Document())
	assert.Equal(t, document.Document{block.Heading{Level: 1, Text: "new"}}, e.Document())
	assert.Empty(t, sched.active(), "replacement must not schedule emission")
	sched.fireAll()
	assert.Empty(t, rec.emitted)
}

func TestReceive_EchoKeepsDocument(t *testing.T) {
	e, sched, rec := newEngine(t, "a")

	e.Apply(setText(0, "hello"))
	sched.fireAll()
	require.Equal(t, []string{"hello"}, rec.emitted)

	doc := e.Document()
	assert.Equal(t, Echo, e.Receive("hello"))
	assert.Equal(t, doc, e.Document())

	st := e.State()
	assert.Equal(t, "hello", st.LastAccepted)
	assert.Equal(t, "hello", st.LastEmitted)

	assert.Equal(t, Duplicate, e.Receive("hello"))
}

func TestReceive_EchoBeforeTimerFires(t *testing.T) {
	e, sched, rec := newEngine(t, "a")

	e.Apply(setText(0, "typed"))
	// Another writer stored the same text first.
	assert.Equal(t, Echo, e.Receive("typed"))
	sched.fireAll()
	assert.Empty(t, rec.emitted, "content already stored")
}

func TestReceive_StaleEchoKeepsNewerLocalEdit(t *testing.T) {
	e, sched, rec := newEngine(t, "a")

	e.Apply(setText(0, "b"))
	_, err := e.Flush()
	require.NoError(t, err)
	e.Apply(setText(0, "bc"))

	// The store reports the earlier save after the next edit was made.
	assert.Equal(t, Echo, e.Receive("b"))
	assert.Equal(t, "bc", e.Document().Markdown())
	assert.Equal(t, "b", e.State().LastAccepted)
	require.Len(t, sched.active(), 1, "pending emission survives")

	sched.fireAll()
	assert.Equal(t, []string{"b", "bc"}, rec.emitted)
}

func TestReceive_ReplacementThenFlushDoesNotRewrite(t *testing.T) {
	e, _, rec := newEngine(t, "a")

	assert.Equal(t, Replaced, e.Receive("1. x\n7. y\n\n\nz"))
	assert.Equal(t, "1. x\n2. y\nz", e.State().LastEmitted)

	emitted, err := e.Flush()
	require.NoError(t, err)
	assert.False(t, emitted)
	assert.Empty(t, rec.emitted)
}

func TestReceive_ReplacementCancelsPendingEmission(t *testing.T) {
	e, sched, rec := newEngine(t, "a")

	e.Apply(setText(0, "local"))
	require.Len(t, sched.active(), 1)
	pending := sched.active()[0]

	assert.Equal(t, Replaced, e.Receive("- [ ] from agent"))
	assert.True(t, pending.cancelled)

	// A callback that raced the cancel is inert.
	pending.fn()
	assert.Empty(t, rec.emitted)
	assert.Equal(t, "- [ ] from agent", e.Document().Markdown())
}

func TestApply_ReplacementThenLocalEditEmits(t *testing.T) {
	e, sched, rec := newEngine(t, "a")

	e.Receive("- [ ] x")
	e.Apply(func(d document.Document) document.Document { return d.ToggleTodo(0) })
	sched.fireAll()
	assert.Equal(t, []string{"- [x] x"}, rec.emitted)
}

func TestApply_DebounceCoalesces(t *testing.T) {
	e, sched, rec := newEngine(t, "")

	for _, s := range []string{"h", "he", "hel", "hell", "hello"} {
		e.Apply(setText(0, s))
	}
	require.Len(t, sched.timers, 5)
	assert.Len(t, sched.active(), 1)
	assert.Equal(t, 300*time.Millisecond, sched.active()[0].delay)

	sched.fireAll()
	assert.Equal(t, []string{"hello"}, rec.emitted)
}

func TestApply_NoChangeSkipsEmission(t *testing.T) {
	e, sched, rec := newEngine(t, "same")

	e.Apply(setText(0, "other"))
	e.Apply(setText(0, "same"))
	sched.fireAll()
	assert.Empty(t, rec.emitted)
}

func TestFlush(t *testing.T) {
	e, sched, rec := newEngine(t, "a")

	emitted, err := e.Flush()
	require.NoError(t, err)
	assert.False(t, emitted)

	e.Apply(setText(0, "b"))
	emitted, err = e.Flush()
	require.NoError(t, err)
	assert.True(t, emitted)
	assert.Equal(t, []string{"b"}, rec.emitted)
	assert.Empty(t, sched.active())
	assert.False(t, e.State().Pending)
}

func TestFlush_ErrorRetries(t *testing.T) {
	e, _, rec := newEngine(t, "a")
	rec.err = errors.New("disk full")

	e.Apply(setText(0, "b"))
	_, err := e.Flush()
	require.Error(t, err)
	assert.Equal(t, "a", e.State().LastEmitted)

	rec.err = nil
	emitted, err := e.Flush()
	require.NoError(t, err)
	assert.True(t, emitted)
	assert.Equal(t, []string{"b"}, rec.emitted)
}

func TestTimerErrorGoesToHandler(t *testing.T) {
	sched := &fakeScheduler{}
	var got error
	e := New(document.Blank(), "", func(string, document.Document) error { return errors.New("boom") },
		WithScheduler(sched), WithErrorHandler(func(err error) { got = err }))

	e.Apply(setText(0, "x"))
	sched.fireAll()
	assert.EqualError(t, got, "boom")
}

func TestClose_CancelsTimer(t *testing.T) {
	e, sched, rec := newEngine(t, "a")

	e.Apply(setText(0, "b"))
	pending := sched.active()[0]
	e.Close()
	assert.True(t, pending.cancelled)

	pending.fn()
	e.Apply(setText(0, "c"))
	assert.Empty(t, sched.active())
	assert.Empty(t, rec.emitted)
	assert.True(t, e.State().Closed)
}

func TestNew_DefaultsDelay(t *testing.T) {
	sched := &fakeScheduler{}
	e := New(document.Blank(), "", nil, WithScheduler(sched), WithDelay(0))
	e.Apply(setText(0, "x"))
	assert.Equal(t, DefaultDelay, sched.timers[0].delay)

	// A nil emitter still records the emission.
	sched.fireAll()
	assert.Equal(t, "x", e.State().LastEmitted)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "duplicate", Duplicate.String())
	assert.Equal(t, "echo", Echo.String())
	assert.Equal(t, "replaced", Replaced.String())
}

func TestTimerScheduler(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	TimerScheduler{}.After(time.Millisecond, wg.Done)
	wg.Wait()

	fired := make(chan struct{}, 1)
	cancel := TimerScheduler{}.After(time.Hour, func() { fired <- struct{}{} })
	cancel()
	cancel()
	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	default:
	}
}

func TestSchedulerFunc(t *testing.T) {
	called := false
	s := SchedulerFunc(func(d time.Duration, fn func()) func() {
		fn()
		return func() {}
	})
	s.After(0, func() { called = true })
	assert.True(t, called)
}
