// Package store implements the persistent session/message/user layer on
// SQLite. Messages are an append-only log per session with a JSON metadata
// bag; the analytics surface reads bounded recent windows and per-user mood
// series from it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Session is one chat session belonging to a user.
type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Message is one conversation turn. Metadata carries derived signals such as
// mood_index, retrieval confidence and the risk label.
type Message struct {
	ID        string         `json:"message_id"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// User is a profile with EQ baseline scores.
type User struct {
	ID             string             `json:"user_id"`
	Email          string             `json:"email,omitempty"`
	BaselineScores map[string]float64 `json:"baseline_scores"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Document records an ingested source (url, transcript, feed, upload).
type Document struct {
	ID         string    `json:"doc_id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	SourceType string    `json:"source_type"`
	Source     string    `json:"source"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// MoodSample is one point in a user's mood time series.
type MoodSample struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Index     float64   `json:"index"`
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id    TEXT PRIMARY KEY,
	email      TEXT,
	baselines  TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	message_count INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS messages (
	message_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	timestamp  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, timestamp ASC);
CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS documents (
	doc_id      TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	source_type TEXT NOT NULL,
	source      TEXT NOT NULL,
	chunk_count INTEGER NOT NULL DEFAULT 0,
	uploaded_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id, uploaded_at DESC);
`

// Store is the SQLite-backed persistence layer.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. ":memory:" works for
// tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// DB exposes the underlying handle for sibling packages sharing the file.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// SetClock overrides the timestamp source. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// CreateUser inserts a profile, seeding zeroed baseline scores when absent.
func (s *Store) CreateUser(ctx context.Context, u User) error {
	if u.BaselineScores == nil {
		u.BaselineScores = map[string]float64{}
	}
	baselines, err := json.Marshal(u.BaselineScores)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, email, baselines, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, string(baselines), s.now())
	if err != nil {
		return fmt.Errorf("failed to create user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser returns the profile for id, or (nil, nil) when it does not exist.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT user_id, email, baselines, created_at FROM users WHERE user_id = ?`, id)

	var u User
	var baselines string
	var email sql.NullString
	if err := row.Scan(&u.ID, &email, &baselines, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Email = email.String
	if err := json.Unmarshal([]byte(baselines), &u.BaselineScores); err != nil {
		u.BaselineScores = map[string]float64{}
	}
	return &u, nil
}

// UpdateBaselines replaces a user's EQ baseline scores.
func (s *Store) UpdateBaselines(ctx context.Context, userID string, scores map[string]float64) error {
	data, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET baselines = ? WHERE user_id = ?`, string(data), userID)
	return err
}

func (s *Store) CreateSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Name, s.now())
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_id, name, message_count, created_at FROM sessions WHERE session_id = ?`, id)

	var sess Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.MessageCount, &sess.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns a user's sessions, most recent first.
func (s *Store) ListSessions(ctx context.Context, userID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_id, name, message_count, created_at
		 FROM sessions WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Name, &sess.MessageCount, &sess.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AppendMessage appends one turn to the session log and bumps the session's
// message count. The log is append-only; messages are never updated.
func (s *Store) AppendMessage(ctx context.Context, m Message) error {
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, user_id, role, content, metadata, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.UserID, m.Role, m.Content, string(meta), ts)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET message_count = message_count + 1 WHERE session_id = ?`, m.SessionID)
	return err
}

// SessionMessages returns a session's messages in chronological order.
func (s *Store) SessionMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, user_id, role, content, metadata, timestamp
		 FROM messages WHERE session_id = ? ORDER BY timestamp ASC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// RecentMessages returns a user's messages across sessions inside the window,
// newest first.
func (s *Store) RecentMessages(ctx context.Context, userID string, days, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	cutoff := s.now().AddDate(0, 0, -days)
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, user_id, role, content, metadata, timestamp
		 FROM messages WHERE user_id = ? AND timestamp >= ?
		 ORDER BY timestamp DESC LIMIT ?`, userID, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MoodSeries extracts the chronological mood index series for a user from
// message metadata, bounded by the window.
func (s *Store) MoodSeries(ctx context.Context, userID string, days, limit int) ([]MoodSample, error) {
	msgs, err := s.RecentMessages(ctx, userID, days, limit)
	if err != nil {
		return nil, err
	}

	// RecentMessages is newest-first; the series must be oldest-first.
	var series []MoodSample
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if v, ok := moodIndexFromMetadata(m.Metadata); ok {
			series = append(series, MoodSample{UserID: userID, Timestamp: m.Timestamp, Index: v})
		}
	}
	return series, nil
}

func (s *Store) AddDocument(ctx context.Context, d Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, user_id, title, source_type, source, chunk_count, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Title, d.SourceType, d.Source, d.ChunkCount, s.now())
	if err != nil {
		return fmt.Errorf("failed to add document %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, userID string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, user_id, title, source_type, source, chunk_count, uploaded_at
		 FROM documents WHERE user_id = ? ORDER BY uploaded_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.SourceType, &d.Source, &d.ChunkCount, &d.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		var meta string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Content, &meta, &m.Timestamp); err != nil {
			return nil, err
		}
		if meta != "" {
			json.Unmarshal([]byte(meta), &m.Metadata)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func moodIndexFromMetadata(meta map[string]any) (float64, bool) {
	raw, ok := meta["mood_index"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
