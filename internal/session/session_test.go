package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/doodle/internal/apperr"
	"github.com/starford/doodle/internal/block"
	"github.com/starford/doodle/internal/document"
	"github.com/starford/doodle/internal/feed"
	"github.com/starford/doodle/internal/reconcile"
	"github.com/starford/doodle/internal/session"
	"github.com/starford/doodle/internal/testutil"
)

const delay = 20 * time.Millisecond

type replaced struct {
	mu    sync.Mutex
	calls []string
}

func (r *replaced) record(noteID, sessionID string) {
	r.mu.Lock()
	r.calls = append(r.calls, noteID+"/"+sessionID)
	r.mu.Unlock()
}

func (r *replaced) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func setup(t *testing.T, content string) (*testutil.Env, *session.Manager, string, *replaced) {
	t.Helper()
	env := testutil.NewEnv(t)
	note, err := env.Svc.CreateNote(context.Background(),
		document.Record{Type: document.RecordType, Content: content}, feed.SourceAPI)
	require.NoError(t, err)

	rep := &replaced{}
	m := session.NewManager(env.Svc,
		session.WithDelay(delay),
		session.WithLogger(testutil.Logger()),
		session.WithReplaceFunc(rep.record))
	t.Cleanup(m.CloseAll)
	return env, m, note.ID, rep
}

func stored(t *testing.T, env *testutil.Env, id string) string {
	t.Helper()
	n, err := env.Svc.GetNote(context.Background(), id)
	require.NoError(t, err)
	return n.Content
}

func text(s string) *string { return &s }

func TestOpen_Missing(t *testing.T) {
	_, m, _, _ := setup(t, "x")
	_, err := m.Open(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApply_SavesAfterDebounce(t *testing.T) {
	env, m, id, _ := setup(t, "hello")
	ctx := context.Background()

	s, err := m.Open(ctx, id)
	require.NoError(t, err)

	v, err := s.Apply(ctx, document.Edit{Op: document.OpUpdateText, Index: 0, Text: text("hello world")})
	require.NoError(t, err)
	assert.Equal(t, "hello world", v.Content)
	assert.True(t, v.State.Pending)

	assert.Eventually(t, func() bool {
		return stored(t, env, id) == "hello world"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApply_CoalescesKeystrokes(t *testing.T) {
	env, m, id, _ := setup(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := env.Bus.Subscribe(ctx)
	require.NoError(t, err)

	s, err := m.Open(ctx, id)
	require.NoError(t, err)
	for _, w := range []string{"s", "sh", "sho", "shop"} {
		_, err := s.Apply(ctx, document.Edit{Op: document.OpUpdateText, Index: 0, Text: text(w)})
		require.NoError(t, err)
	}

	select {
	case u := <-updates:
		assert.Equal(t, "shop", u.Content)
		assert.Equal(t, feed.SourceSession, u.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no save")
	}
	select {
	case u := <-updates:
		t.Fatalf("second save %+v", u)
	case <-time.After(5 * delay):
	}
}

func TestApply_InvalidEdit(t *testing.T) {
	_, m, id, _ := setup(t, "a")
	ctx := context.Background()
	s, err := m.Open(ctx, id)
	require.NoError(t, err)

	_, err = s.Apply(ctx,
		document.Edit{Op: document.OpToggleTodo, Index: 0},
		document.Edit{Op: document.OpMove, Index: 0, Direction: 3})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	v, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, v.State.Pending, "nothing applied")
}

func TestRun_ExternalUpdateReplaces(t *testing.T) {
	env, m, id, rep := setup(t, "- [ ] one")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := env.Bus.Subscribe(ctx)
	require.NoError(t, err)
	go m.Run(ctx, updates)

	s, err := m.Open(ctx, id)
	require.NoError(t, err)

	_, err = env.Svc.ReplaceContent(ctx, id, "- [ ] one\n- [ ] two", feed.SourceAgent)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		v, err := s.Snapshot(ctx)
		return err == nil && len(v.Blocks) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rep.count())

	v, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, v.State.Pending, "replacement is not re-emitted")
}

func TestRun_OwnSaveIsEcho(t *testing.T) {
	env, m, id, rep := setup(t, "a")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := env.Bus.Subscribe(ctx)
	require.NoError(t, err)
	go m.Run(ctx, updates)

	s, err := m.Open(ctx, id)
	require.NoError(t, err)
	_, err = s.Apply(ctx, document.Edit{Op: document.OpChangeType, Index: 0, Target: document.TargetTodo})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		v, err := s.Snapshot(ctx)
		return err == nil && v.State.LastAccepted == "- [ ] a"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, rep.count(), "own save must not replace the document")
}

func TestReceive_Outcomes(t *testing.T) {
	_, m, id, _ := setup(t, "a")
	ctx := context.Background()
	s, err := m.Open(ctx, id)
	require.NoError(t, err)

	out, err := s.Receive(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, reconcile.Duplicate, out)

	out, err = s.Receive(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, reconcile.Replaced, out)

	_, err = s.Mutate(ctx, func(d document.Document) document.Document { return d.UpdateText(0, "c") })
	require.NoError(t, err)
	out, err = s.Receive(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, reconcile.Echo, out)
}

func TestClose_FlushesPending(t *testing.T) {
	env, _, id, _ := setup(t, "a")
	ctx := context.Background()

	m2 := session.NewManager(env.Svc, session.WithDelay(time.Hour), session.WithLogger(testutil.Logger()))
	s, err := m2.Open(ctx, id)
	require.NoError(t, err)
	_, err = s.Apply(ctx, document.Edit{Op: document.OpInsertAfter, Index: 0})
	require.NoError(t, err)
	_, err = s.Apply(ctx, document.Edit{Op: document.OpUpdateText, Index: 1, Text: text("b")})
	require.NoError(t, err)

	require.NoError(t, m2.Close(ctx, s.ID))
	assert.Equal(t, "a\nb", stored(t, env, id))

	_, err = m2.Get(s.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = s.Snapshot(ctx)
	assert.ErrorIs(t, err, session.ErrClosed)
}

func TestFlush(t *testing.T) {
	env, _, id, _ := setup(t, "a")
	ctx := context.Background()
	m := session.NewManager(env.Svc, session.WithDelay(time.Hour), session.WithLogger(testutil.Logger()))
	defer m.CloseAll()

	s, err := m.Open(ctx, id)
	require.NoError(t, err)

	saved, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.False(t, saved)

	_, err = s.Mutate(ctx, func(d document.Document) document.Document {
		return d.Append(block.Quote{Text: "q"})
	})
	require.NoError(t, err)
	saved, err = s.Flush(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, "a\n> q", stored(t, env, id))
}

func TestDispatch_DeletedNoteEndsSessions(t *testing.T) {
	env, m, id, _ := setup(t, "a")
	ctx := context.Background()

	s, err := m.Open(ctx, id)
	require.NoError(t, err)
	require.NoError(t, env.Svc.DeleteNote(ctx, id, feed.SourceAPI))

	m.Dispatch(ctx, feed.Update{NoteID: id, Deleted: true})
	assert.Equal(t, 0, m.Len())
	select {
	case <-s.Done():
	default:
		t.Fatal("session still running")
	}
}

func TestSweep(t *testing.T) {
	_, m, id, _ := setup(t, "a")
	ctx := context.Background()

	s, err := m.Open(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, 0, m.Sweep(ctx, time.Now()))
	assert.Equal(t, 1, m.Sweep(ctx, s.LastUsed().Add(session.DefaultIdleTTL+time.Second)))
	assert.Equal(t, 0, m.Len())
}

func TestManagerClose_Unknown(t *testing.T) {
	_, m, _, _ := setup(t, "a")
	err := m.Close(context.Background(), "nope")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
