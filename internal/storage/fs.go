package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/doodle/internal/apperr"
	"github.com/starford/doodle/internal/checksum"
	"github.com/starford/doodle/internal/models"
)

// Ext is the file extension of note files.
const Ext = ".md"

var idRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// ValidID reports whether id can name a note file.
func ValidID(id string) bool {
	return idRe.MatchString(id)
}

// IDFromPath returns the note id of a vault file path, or false when the path
// is not a note file directly under root.
func IDFromPath(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || filepath.Dir(rel) != "." || !strings.HasSuffix(rel, Ext) {
		return "", false
	}
	id := strings.TrimSuffix(rel, Ext)
	return id, ValidID(id)
}

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string {
	return f.root
}

// notePath maps an id to its file, rejecting ids that could leave the vault.
func (f *FS) notePath(id string) (string, error) {
	if !ValidID(id) {
		return "", fmt.Errorf("storage: invalid note id %q: %w", id, apperr.ErrInvalid)
	}
	return filepath.Join(f.root, id+Ext), nil
}

// List returns metadata for every note file at the vault root.
func (f *FS) List() ([]models.NoteFile, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []models.NoteFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(f.root, e.Name())
		id, ok := IDFromPath(f.root, p)
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: stat %s: %w", e.Name(), err)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("storage: read %s: %w", e.Name(), err)
		}
		out = append(out, models.NoteFile{
			ID:       id,
			Checksum: checksum.Sum(data),
			ModTime:  info.ModTime(),
		})
	}
	return out, nil
}

// Read returns the raw content of a note.
func (f *FS) Read(id string) ([]byte, error) {
	p, err := f.notePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, wrapNotExist("read", id, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(id string, content []byte) error {
	p, err := f.notePath(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".doodle-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a note file.
func (f *FS) Delete(id string) error {
	p, err := f.notePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return wrapNotExist("delete", id, err)
	}
	return nil
}

func wrapNotExist(op, id string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: %s %s: %w", op, id, apperr.ErrNotFound)
	}
	return fmt.Errorf("storage: %s %s: %w", op, id, err)
}
