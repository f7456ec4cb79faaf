//go:build !sqlite_fts5

package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error { return nil }

// The fallback searches notes.body directly, which UpsertNote already keeps.
func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search returns notes containing every word of query in their title, body
// or tags, most recently updated first.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var (
		where []string
		args  []any
	)
	for _, term := range terms {
		like := "%" + escapeLike(term) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR body LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, title, substr(body, 1, 200)
		FROM notes
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY updated_at DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanSearchResults(rows)
}
