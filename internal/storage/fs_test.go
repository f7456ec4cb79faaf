package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/doodle/internal/apperr"
	"github.com/starford/doodle/internal/checksum"
)

func tempVault(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempVault(t)
	content := []byte("# Hello\n- [ ] World")
	if err := s.Write("01HZX", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("01HZX")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "01HZX.md")); err != nil {
		t.Errorf("note file not at <id>.md: %v", err)
	}
}

func TestReadMissing(t *testing.T) {
	s := tempVault(t)
	_, err := s.Read("nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("del", []byte("bye"))
	if err := s.Delete("del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del"); err == nil {
		t.Error("expected error reading deleted note")
	}
	if err := s.Delete("del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("a", []byte("a"))
	_ = s.Write("b", []byte("b"))
	_ = os.WriteFile(filepath.Join(s.Root(), "readme.txt"), []byte("not md"), 0o644)
	_ = os.MkdirAll(filepath.Join(s.Root(), "sub"), 0o755)
	_ = os.WriteFile(filepath.Join(s.Root(), "sub", "c.md"), []byte("nested"), 0o644)

	items, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	for _, it := range items {
		if it.Checksum != checksum.Sum([]byte(it.ID)) {
			t.Errorf("checksum mismatch for %s", it.ID)
		}
	}
}

func TestInvalidIDsRejected(t *testing.T) {
	s := tempVault(t)

	cases := []string{
		"../../etc/passwd",
		"../outside",
		"/etc/shadow",
		"sub/note",
		"",
		".hidden",
	}
	for _, id := range cases {
		if _, err := s.Read(id); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("read %q: err = %v, want ErrInvalid", id, err)
		}
		if err := s.Write(id, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", id)
		}
	}
}

func TestIDFromPath(t *testing.T) {
	root := "/vault"
	cases := []struct {
		path string
		id   string
		ok   bool
	}{
		{"/vault/01ABC.md", "01ABC", true},
		{"/vault/notes.txt", "", false},
		{"/vault/sub/x.md", "", false},
		{"/vault/.doodle-tmp-123", "", false},
		{"/elsewhere/x.md", "", false},
	}
	for _, tc := range cases {
		id, ok := IDFromPath(root, tc.path)
		if ok != tc.ok || (ok && id != tc.id) {
			t.Errorf("IDFromPath(%q) = %q, %v; want %q, %v", tc.path, id, ok, tc.id, tc.ok)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempVault(t)
	_ = s.Write("atomic", []byte("original content"))
	if err := s.Write("atomic", []byte("new content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic")
	if string(got) != "new content" {
		t.Errorf("content = %q", got)
	}

	entries, _ := os.ReadDir(s.Root())
	for _, e := range entries {
		if e.Name() != "atomic.md" {
			t.Errorf("leftover file %s", e.Name())
		}
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "doodle-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
