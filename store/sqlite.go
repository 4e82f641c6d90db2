package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bmad-method/orchestrator/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			pathway TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			doc TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS universal_state (
			session_id TEXT PRIMARY KEY,
			doc TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			snapshot_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			tag TEXT NOT NULL,
			doc TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			role TEXT NOT NULL,
			speaker TEXT,
			content TEXT NOT NULL,
			streaming INTEGER NOT NULL DEFAULT 0,
			handoff TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL,
			seq INTEGER,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, pathway, status, created_at, doc) VALUES (?, ?, ?, ?, ?, ?)`,
		session.SessionID, session.UserID, session.Pathway, session.Status, session.StartTime, string(doc))
	return err
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM sessions WHERE session_id = ?`, sessionID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var session domain.Session
	if err := json.Unmarshal([]byte(doc), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ListSessions retrieves all sessions for a user, newest first. An empty
// userID lists every session.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]domain.Session, error) {
	query := `SELECT doc FROM sessions`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var session domain.Session
		if err := json.Unmarshal([]byte(doc), &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// UpdateSession replaces the stored session document. Last write wins.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *domain.Session) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET pathway = ?, status = ?, doc = ? WHERE session_id = ?`,
		session.Pathway, session.Status, string(doc), session.SessionID)
	return err
}

// SaveState upserts the universal session state document. Last write wins.
func (s *SQLiteStore) SaveState(ctx context.Context, sessionID string, state *domain.UniversalSessionState) error {
	doc, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO universal_state (session_id, doc, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		sessionID, string(doc), time.Now())
	return err
}

// LoadState returns the most recently saved universal state for a session.
func (s *SQLiteStore) LoadState(ctx context.Context, sessionID string) (*domain.UniversalSessionState, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM universal_state WHERE session_id = ?`, sessionID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var state domain.UniversalSessionState
	if err := json.Unmarshal([]byte(doc), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// Backup snapshots the current universal state under a tag.
func (s *SQLiteStore) Backup(ctx context.Context, sessionID, tag string) (string, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM universal_state WHERE session_id = ?`, sessionID).Scan(&doc)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}

	snapshotID := "snap_" + uuid.New().String()[:8]
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (snapshot_id, session_id, tag, doc, created_at) VALUES (?, ?, ?, ?, ?)`,
		snapshotID, sessionID, tag, doc, time.Now())
	if err != nil {
		return "", err
	}
	return snapshotID, nil
}

// ListBackups returns the snapshots taken for a session, newest first.
func (s *SQLiteStore) ListBackups(ctx context.Context, sessionID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_id, session_id, tag, created_at FROM snapshots WHERE session_id = ? ORDER BY created_at DESC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.SnapshotID, &snap.SessionID, &snap.Tag, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// SaveMessage upserts a conversation-log entry by message id. A finalize of
// a streamed message overwrites the buffered row; last write wins.
func (s *SQLiteStore) SaveMessage(ctx context.Context, message *domain.CommittedMessage) error {
	var handoff interface{}
	if message.Handoff != nil {
		b, err := json.Marshal(message.Handoff)
		if err != nil {
			return fmt.Errorf("failed to marshal handoff: %w", err)
		}
		handoff = string(b)
	}
	var metadata interface{}
	if len(message.Metadata) > 0 {
		metadata = string(message.Metadata)
	}
	streaming := 0
	if message.Streaming {
		streaming = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, kind, role, speaker, content, streaming, handoff, metadata, created_at, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			 COALESCE((SELECT seq FROM messages WHERE message_id = ?),
			          COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = ?), 0) + 1))
		 ON CONFLICT(message_id) DO UPDATE SET
			 content = excluded.content,
			 streaming = excluded.streaming,
			 handoff = excluded.handoff,
			 metadata = excluded.metadata`,
		message.MessageID, message.SessionID, message.Kind, message.Role, message.Speaker,
		message.Content, streaming, handoff, metadata, message.CreatedAt,
		message.MessageID, message.SessionID)
	return err
}

// GetMessages retrieves the conversation log for a session in commit order.
func (s *SQLiteStore) GetMessages(ctx context.Context, sessionID string, limit int, before string) ([]domain.CommittedMessage, error) {
	query := `SELECT message_id, session_id, kind, role, speaker, content, streaming, handoff, metadata, created_at
		FROM messages WHERE session_id = ?`
	args := []interface{}{sessionID}

	if before != "" {
		query += ` AND seq < (SELECT seq FROM messages WHERE message_id = ?)`
		args = append(args, before)
	}

	query += ` ORDER BY seq ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.CommittedMessage
	for rows.Next() {
		var msg domain.CommittedMessage
		var speaker, handoff, metadata sql.NullString
		var streaming int
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &msg.Kind, &msg.Role, &speaker,
			&msg.Content, &streaming, &handoff, &metadata, &msg.CreatedAt); err != nil {
			return nil, err
		}
		if speaker.Valid {
			msg.Speaker = speaker.String
		}
		msg.Streaming = streaming != 0
		if handoff.Valid && handoff.String != "" {
			var h domain.HandoffAnnotation
			if err := json.Unmarshal([]byte(handoff.String), &h); err != nil {
				return nil, fmt.Errorf("failed to unmarshal handoff: %w", err)
			}
			msg.Handoff = &h
		}
		if metadata.Valid && metadata.String != "" {
			msg.Metadata = json.RawMessage(metadata.String)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
