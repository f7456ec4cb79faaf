// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/doodle/internal/feed"
	"github.com/starford/doodle/internal/index"
	"github.com/starford/doodle/internal/noteservice"
	"github.com/starford/doodle/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "doodle-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Env is a wired note service over a temporary vault and database.
type Env struct {
	VaultDir string
	Store    *storage.FS
	DB       *index.DB
	Bus      *feed.Local
	Svc      *noteservice.Service
}

// NewEnv builds an Env with an in-process feed.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	dir, store := TestVault(t)
	db := TestDB(t)
	bus := feed.NewLocal(Logger())
	t.Cleanup(func() { bus.Close() })
	return &Env{
		VaultDir: dir,
		Store:    store,
		DB:       db,
		Bus:      bus,
		Svc:      noteservice.NewService(store, db, bus, noteservice.WithLogger(Logger())),
	}
}
