package index

import (
	"log/slog"
	"time"

	"github.com/starford/doodle/internal/checksum"
	"github.com/starford/doodle/internal/parser"
	"github.com/starford/doodle/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	files, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.ID] = struct{}{}

		if checksums[f.ID] == f.Checksum {
			continue
		}

		data, err := store.Read(f.ID)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("id", f.ID), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexContent(db, f.ID, data, f.ModTime); err != nil {
			logger.Warn("sync: index failed", slog.String("id", f.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("id", f.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteNote(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("id", id))
			}
		}
	}

	return nil
}

// IndexContent parses data and upserts it into the DB together with its
// block cache. A zero modTime means now.
func IndexContent(db NoteIndex, id string, data []byte, modTime time.Time) (*parser.Result, error) {
	res := parser.Parse(string(data))
	cs := checksum.Sum(data)

	row := NoteRow{
		ID:             id,
		Title:          res.Title,
		Checksum:       cs,
		Tags:           res.Tags,
		Blocks:         res.Doc,
		BlocksChecksum: cs,
		UpdatedAt:      modTime,
	}
	if err := db.UpsertNote(row, res.Text); err != nil {
		return nil, err
	}
	return res, nil
}
