package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/doodle/internal/apperr"
	"github.com/starford/doodle/internal/document"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	ID       string
	Title    string
	Checksum string
	Tags     []string
	// Blocks caches the parsed document of the content whose checksum is
	// BlocksChecksum.
	Blocks         document.Document
	BlocksChecksum string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string
	Title   string
	Snippet string
}

// Sort orders for ListNotes.
const (
	SortUpdated = "updated"
	SortCreated = "created"
	SortTitle   = "title"
)

// ListQuery selects a page of notes.
type ListQuery struct {
	Limit  int
	Offset int
	Tag    string
	Sort   string
}

// UpsertNote inserts or replaces a note and its FTS entry within a transaction.
// CreatedAt is kept from the first insert.
func (db *DB) UpsertNote(n NoteRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	var blocksJSON []byte
	if len(n.Blocks) > 0 {
		blocksJSON, err = json.Marshal(n.Blocks)
		if err != nil {
			return fmt.Errorf("index: encode blocks: %w", err)
		}
	}

	now := time.Now().UTC()
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = n.UpdatedAt
	}

	_, err = tx.Exec(`
		INSERT INTO notes (id, title, checksum, tags, body, blocks, blocks_checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title           = excluded.title,
			checksum        = excluded.checksum,
			tags            = excluded.tags,
			body            = excluded.body,
			blocks          = excluded.blocks,
			blocks_checksum = excluded.blocks_checksum,
			updated_at      = excluded.updated_at
	`, n.ID, n.Title, n.Checksum, string(tagsJSON), body, string(blocksJSON), n.BlocksChecksum,
		n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.ID, n.Title, body, tags); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteNote removes a note and its FTS entry.
func (db *DB) DeleteNote(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const noteColumns = `id, title, checksum, tags, blocks, blocks_checksum, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var (
		n          NoteRow
		tagsJSON   string
		blocksJSON string
	)
	if err := s.Scan(&n.ID, &n.Title, &n.Checksum, &tagsJSON, &blocksJSON, &n.BlocksChecksum, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		n.Tags = nil
	}
	if blocksJSON != "" {
		var doc document.Document
		if err := json.Unmarshal([]byte(blocksJSON), &doc); err == nil {
			n.Blocks = doc
		} else {
			// A cache that no longer decodes is ignored.
			n.BlocksChecksum = ""
		}
	}
	return &n, nil
}

// GetNote returns the indexed row of a note.
func (db *DB) GetNote(id string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: note %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// CachedBlocks returns the cached document of a note when it was parsed
// from content with the given checksum.
func (db *DB) CachedBlocks(id, checksum string) (document.Document, bool) {
	n, err := db.GetNote(id)
	if err != nil || n.BlocksChecksum == "" || n.BlocksChecksum != checksum || len(n.Blocks) == 0 {
		return nil, false
	}
	return n.Blocks, true
}

// ListNotes returns a page of notes and the total count matching the query.
func (db *DB) ListNotes(q ListQuery) ([]NoteRow, int, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	var (
		where string
		args  []any
	)
	if q.Tag != "" {
		// Tags are stored as a JSON array of strings.
		where = `WHERE tags LIKE ? ESCAPE '\'`
		args = append(args, `%"`+escapeLike(q.Tag)+`"%`)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	order := `updated_at DESC, id`
	switch q.Sort {
	case SortTitle:
		order = `title COLLATE NOCASE, id`
	case SortCreated:
		order = `created_at DESC, id`
	}

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the checksum of every indexed note keyed by id.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

const defaultSearchLimit = 20

// searchTerms splits a search query into the words every hit must contain.
func searchTerms(query string) []string {
	return strings.Fields(query)
}

func scanSearchResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, fmt.Errorf("index: scan search result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
