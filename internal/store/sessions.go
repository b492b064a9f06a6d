package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTitle names a session until its first user message.
const DefaultSessionTitle = "New Chat"

// Session is a stored conversation.
type Session struct {
	ID           int64
	Title        string
	Model        string
	SystemPrompt string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Message is one stored turn of a session.
type Message struct {
	ID        int64
	SessionID int64
	Role      string
	Content   string
	CreatedAt time.Time
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

// CreateSession inserts an empty session titled DefaultSessionTitle.
func (db *DB) CreateSession(ctx context.Context, model, systemPrompt string) (Session, error) {
	now := time.Now().UTC()
	s := Session{Title: DefaultSessionTitle, Model: model, SystemPrompt: systemPrompt, CreatedAt: now, UpdatedAt: now}
	res, err := db.conn.ExecContext(ctx, `INSERT INTO sessions
		(title, model, system_prompt, message_count, created_at, updated_at) VALUES (?, ?, ?, 0, ?, ?)`,
		s.Title, s.Model, s.SystemPrompt, millis(now), millis(now))
	if err != nil {
		return s, fmt.Errorf("insert session: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return s, err
	}
	return s, nil
}

const sessionColumns = `id, title, model, system_prompt, message_count, created_at, updated_at`

type scanner interface{ Scan(dest ...any) error }

func scanSession(sc scanner) (Session, error) {
	var s Session
	var created, updated int64
	if err := sc.Scan(&s.ID, &s.Title, &s.Model, &s.SystemPrompt, &s.MessageCount, &created, &updated); err != nil {
		return s, err
	}
	s.CreatedAt, s.UpdatedAt = fromMillis(created), fromMillis(updated)
	return s, nil
}

// ListSessions returns every session, most recently updated first.
func (db *DB) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSession returns the session with id.
func (db *DB) GetSession(ctx context.Context, id int64) (Session, error) {
	s, err := scanSession(db.conn.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrSessionNotFound
	}
	if err != nil {
		return s, fmt.Errorf("get session %d: %w", id, err)
	}
	return s, nil
}

// UpdateSession stores the title, model and system prompt of s and bumps
// its update time.
func (db *DB) UpdateSession(ctx context.Context, s Session) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE sessions SET title = ?, model = ?, system_prompt = ?, updated_at = ?
		WHERE id = ?`, s.Title, s.Model, s.SystemPrompt, millis(time.Now()), s.ID)
	if err != nil {
		return fmt.Errorf("update session %d: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session and its messages.
func (db *DB) DeleteSession(ctx context.Context, id int64) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("delete messages of session %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete session %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}

// AddMessage appends m to its session and refreshes the session's message
// count and update time. It returns m with ID and CreatedAt set.
func (db *DB) AddMessage(ctx context.Context, m Message) (Message, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE sessions
			SET message_count = message_count + 1, updated_at = ? WHERE id = ?`, millis(time.Now()), m.SessionID)
		if err != nil {
			return fmt.Errorf("touch session %d: %w", m.SessionID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSessionNotFound
		}
		res, err = tx.ExecContext(ctx, `INSERT INTO messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
			m.SessionID, m.Role, m.Content, millis(m.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		m.ID, err = res.LastInsertId()
		return err
	})
	return m, err
}

// Messages returns the messages of a session in insertion order.
func (db *DB) Messages(ctx context.Context, sessionID int64) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id, session_id, role, content, created_at
		FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		var created int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = fromMillis(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClearMessages deletes every message of a session and keeps the session.
func (db *DB) ClearMessages(ctx context.Context, sessionID int64) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE sessions SET message_count = 0, updated_at = ? WHERE id = ?`,
			millis(time.Now()), sessionID)
		if err != nil {
			return fmt.Errorf("reset session %d: %w", sessionID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSessionNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("clear messages of session %d: %w", sessionID, err)
		}
		return nil
	})
}

func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
