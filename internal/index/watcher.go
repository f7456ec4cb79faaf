package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/doodle/internal/checksum"
	"github.com/starford/doodle/internal/storage"
)

// Watcher event kinds.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event describes a watcher-driven index change. Content is the new file
// content and is empty for deletions.
type Event struct {
	Kind    string
	ID      string
	Content string
}

// EventCallback is called after a watcher-driven index change.
type EventCallback func(ev Event)

const renameSettle = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the vault root and processes note file
// changes until ctx is cancelled. It calls cb (if non-nil) after each index
// mutation caused by a change made outside this process's own writes:
// files whose checksum already matches the index are skipped.
//
// Rename events trigger a reconciliation pass that removes stale index
// entries whose files no longer exist on disk.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	emit := func(ev Event) {
		if cb != nil {
			cb(ev)
		}
	}

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(renameSettle)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(renameSettle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcileAfterRename(db, store, logger, emit)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			id, isNote := storage.IDFromPath(vaultRoot, ev.Name)
			if !isNote {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := EventUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = EventCreated
				}
				if changed, content := reindex(db, store, id, logger); changed {
					logger.Debug("watcher: indexed", slog.String("id", id), slog.String("op", kind))
					emit(Event{Kind: kind, ID: id, Content: content})
				}

			case ev.Op&fsnotify.Remove != 0:
				if !removeIndexed(db, id, logger) {
					continue
				}
				logger.Debug("watcher: deleted", slog.String("id", id))
				emit(Event{Kind: EventDeleted, ID: id})

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only. Atomic writes
				// rename onto the note path and arrive as Create; a note
				// renamed away is removed by the reconciliation pass.
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindex reads note id and indexes it when its checksum differs from the
// indexed one. It reports whether the index changed and the content read.
func reindex(db *DB, store storage.Provider, id string, logger *slog.Logger) (bool, string) {
	data, err := store.Read(id)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("id", id), slog.String("error", err.Error()))
		return false, ""
	}
	indexed, err := db.GetChecksum(id)
	if err != nil {
		logger.Warn("watcher: checksum lookup failed", slog.String("id", id), slog.String("error", err.Error()))
		return false, ""
	}
	if indexed == checksum.Sum(data) {
		return false, ""
	}
	if _, err := IndexContent(db, id, data, time.Time{}); err != nil {
		logger.Warn("watcher: index failed", slog.String("id", id), slog.String("error", err.Error()))
		return false, ""
	}
	return true, string(data)
}

// removeIndexed deletes id from the index if it is there.
func removeIndexed(db *DB, id string, logger *slog.Logger) bool {
	cs, err := db.GetChecksum(id)
	if err != nil || cs == "" {
		return false
	}
	if err := db.DeleteNote(id); err != nil {
		logger.Warn("watcher: delete failed", slog.String("id", id), slog.String("error", err.Error()))
		return false
	}
	return true
}

// reconcileAfterRename does a lightweight sync using batch lookups:
// finds index entries without a corresponding file on disk and removes them,
// and finds on-disk files that are not indexed and indexes them.
func reconcileAfterRename(db *DB, store storage.Provider, logger *slog.Logger, emit EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	files, err := store.List()
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(files))
	for _, f := range files {
		disk[f.ID] = f.Checksum
	}

	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if delErr := db.DeleteNote(id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("id", id))
				emit(Event{Kind: EventDeleted, ID: id})
			}
		}
	}

	for id, cs := range disk {
		if checksums[id] == cs {
			continue
		}
		data, readErr := store.Read(id)
		if readErr != nil {
			continue
		}
		if _, idxErr := IndexContent(db, id, data, time.Time{}); idxErr == nil {
			logger.Debug("reconcile: indexed new", slog.String("id", id))
			kind := EventUpdated
			if _, known := checksums[id]; !known {
				kind = EventCreated
			}
			emit(Event{Kind: kind, ID: id, Content: string(data)})
		}
	}
}
