package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/doodle/internal/storage"
)

// watcherTestEnv sets up a vault dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) has(kind, id, content string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Kind == kind && e.ID == id && e.Content == content {
			return true
		}
	}
	return false
}

func (l *eventLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func TestWatcher_ExternalWriteIndexedWithContent(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var log eventLog
	go Watch(ctx, db, store, vaultDir, quietLogger(), log.add)

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vaultDir, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("new")
		return cs != ""
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has(EventCreated, "new", "# New") || log.has(EventUpdated, "new", "# New")
	}, "expected an event carrying the new content")
}

func TestWatcher_AlreadyIndexedContentIsQuiet(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	content := []byte("- [ ] same")
	if _, err := IndexContent(db, "own", content, time.Time{}); err != nil {
		t.Fatal(err)
	}

	var log eventLog
	go Watch(ctx, db, store, vaultDir, quietLogger(), log.add)
	time.Sleep(100 * time.Millisecond)

	_ = store.Write("own", content)
	time.Sleep(500 * time.Millisecond)
	if n := log.count(); n != 0 {
		t.Errorf("got %d events for content already in the index", n)
	}
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(vaultDir, "del.md"), []byte("# Delete Me"), 0o644)
	Sync(db, store, quietLogger())

	cs, _ := db.GetChecksum("del")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var log eventLog
	go Watch(ctx, db, store, vaultDir, quietLogger(), log.add)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(vaultDir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del")
		return cs == ""
	}, "deleted file still in index")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return log.has(EventDeleted, "del", "")
	}, "expected deleted event")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	vaultDir, store, db := watcherTestEnv(t)

	_ = os.WriteFile(filepath.Join(vaultDir, "old.md"), []byte("# Rename"), 0o644)
	Sync(db, store, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, vaultDir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(vaultDir, "old.md"), filepath.Join(vaultDir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old")
		newCS, _ := db.GetChecksum("renamed")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old note should be removed and new note indexed")
}
