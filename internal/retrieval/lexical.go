package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const lexicalSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	text,
	source_id UNINDEXED,
	url UNINDEXED,
	title UNINDEXED
);
`

// LexicalIndex is a term-frequency index over chunk text backed by SQLite
// FTS5. Rank order is FTS5's bm25-derived rank.
type LexicalIndex struct {
	db *sql.DB
}

// NewLexicalIndex creates the FTS table on db if needed.
func NewLexicalIndex(db *sql.DB) (*LexicalIndex, error) {
	if _, err := db.Exec(lexicalSchema); err != nil {
		return nil, fmt.Errorf("failed to create FTS index: %w", err)
	}
	return &LexicalIndex{db: db}, nil
}

// Add indexes the chunks.
func (l *LexicalIndex) Add(ctx context.Context, chunks []Chunk) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks_fts (text, source_id, url, title) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.Text, c.SourceID, c.URL, c.Title); err != nil {
			return fmt.Errorf("failed to index chunk: %w", err)
		}
	}
	return tx.Commit()
}

// Rank returns the top-k chunks for query in rank order.
func (l *LexicalIndex) Rank(ctx context.Context, query string, k int) ([]Chunk, error) {
	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT text, source_id, url, title FROM chunks_fts
		 WHERE chunks_fts MATCH ? ORDER BY rank LIMIT ?`, ftsQuery, k)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Text, &c.SourceID, &c.URL, &c.Title); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count reports the number of indexed chunks.
func (l *LexicalIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT count(*) FROM chunks_fts`).Scan(&n)
	return n, err
}

// sanitizeFTS quotes each term and joins them with OR so user text cannot be
// interpreted as FTS5 query syntax.
func sanitizeFTS(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " OR ")
}
