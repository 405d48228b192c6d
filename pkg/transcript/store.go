// Package transcript persists conversations in SQLite so sessions survive
// restarts and evictions.
package transcript

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nous-labs/folio/pkg/artifact"
)

const timeFormat = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (session_id, seq)
);
CREATE TABLE IF NOT EXISTS artifacts (
	session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
`

// Message is one stored history entry.
type Message struct {
	Seq     int
	Role    string
	Content string
	At      time.Time
}

// Transcript is everything stored for one session.
type Transcript struct {
	Session   string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []Message
	Artifact  artifact.Artifact
}

// Stats holds row counts.
type Stats struct {
	Sessions int `json:"sessions"`
	Messages int `json:"messages"`
}

// Store is a SQLite transcript database. Safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the transcript database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create transcript dir: %w", err)
		}
	}

	// WAL for concurrent reads, foreign keys for cascading deletes
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open transcript db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping transcript db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate transcript db: %w", err)
	}

	s := &Store{db: db, path: path}
	stats := s.Stats(context.Background())
	slog.Info("transcript store opened",
		"path", path,
		"sessions", stats.Sessions,
		"messages", stats.Messages,
	)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Stats returns row counts.
func (s *Store) Stats(ctx context.Context) Stats {
	var st Stats
	s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&st.Sessions)
	s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&st.Messages)
	return st
}

// EnsureSession creates the session row if it does not exist.
func (s *Store) EnsureSession(ctx context.Context, id, source string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, source, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, source, now, now,
	)
	if err != nil {
		return fmt.Errorf("ensure session %s: %w", id, err)
	}
	return nil
}

// AppendMessages stores messages for a session, creating the session row
// on first use. Re-appending an existing seq overwrites it.
func (s *Store) AppendMessages(ctx context.Context, session string, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(timeFormat)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, source, created_at, updated_at) VALUES (?, '', ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		session, now, now,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (session_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, seq) DO UPDATE SET role = excluded.role, content = excluded.content`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		at := m.At
		if at.IsZero() {
			at = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, session, m.Seq, m.Role, m.Content, at.UTC().Format(timeFormat)); err != nil {
			return fmt.Errorf("insert message %d: %w", m.Seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	slog.Debug("messages recorded", "session", session, "count", len(msgs))
	return nil
}

// SaveArtifact replaces the stored artifact for a session.
func (s *Store) SaveArtifact(ctx context.Context, session string, a artifact.Artifact) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	now := time.Now().UTC().Format(timeFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, source, created_at, updated_at) VALUES (?, '', ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		session, now, now,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO artifacts (session_id, kind, payload, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET kind = excluded.kind, payload = excluded.payload, updated_at = excluded.updated_at`,
		session, string(a.Kind()), string(payload), now,
	); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	return tx.Commit()
}

// Load returns the stored transcript for a session. found is false when
// the session does not exist.
func (s *Store) Load(ctx context.Context, session string) (t Transcript, found bool, err error) {
	var created, updated string
	err = s.db.QueryRowContext(ctx,
		"SELECT source, created_at, updated_at FROM sessions WHERE id = ?", session,
	).Scan(&t.Source, &created, &updated)
	if err == sql.ErrNoRows {
		return Transcript{}, false, nil
	}
	if err != nil {
		return Transcript{}, false, fmt.Errorf("load session %s: %w", session, err)
	}
	t.Session = session
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updated)
	t.Artifact = artifact.None()

	rows, err := s.db.QueryContext(ctx,
		"SELECT seq, role, content, created_at FROM messages WHERE session_id = ? ORDER BY seq", session)
	if err != nil {
		return Transcript{}, false, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Message
		var at string
		if err := rows.Scan(&m.Seq, &m.Role, &m.Content, &at); err != nil {
			return Transcript{}, false, fmt.Errorf("scan message: %w", err)
		}
		m.At = parseTime(at)
		t.Messages = append(t.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return Transcript{}, false, fmt.Errorf("iterate messages: %w", err)
	}

	var payload string
	err = s.db.QueryRowContext(ctx, "SELECT payload FROM artifacts WHERE session_id = ?", session).Scan(&payload)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return Transcript{}, false, fmt.Errorf("load artifact: %w", err)
	default:
		if err := json.Unmarshal([]byte(payload), &t.Artifact); err != nil {
			slog.Warn("discarding unreadable artifact", "session", session, "error", err)
			t.Artifact = artifact.None()
		}
	}
	return t, true, nil
}

// Prune deletes sessions not updated since cutoff, with their messages
// and artifacts. Returns the number of sessions removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE updated_at < ?", cutoff.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// parseTime parses a datetime string from SQLite, handling the formats
// modernc/sqlite may hand back.
func parseTime(s string) time.Time {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
		timeFormat,
		"2006-01-02T15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
