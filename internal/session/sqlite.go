package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AgentLoom/AgentLoom/internal/agenterr"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL,
	initiator_id TEXT NOT NULL DEFAULT '',
	parent_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	history TEXT NOT NULL DEFAULT '[]',
	tool_calls INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	cost_units REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent_id);
CREATE INDEX IF NOT EXISTS idx_sessions_parent ON sessions(parent_id);
`

// SQLiteStore is a Store backed by a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the sessions database at dbPath.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sessions db: %w", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sessions schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, sess *Session) error {
	history, err := json.Marshal(sess.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, agent_id, initiator_id, parent_id, title, history,
			tool_calls, error_count, total_tokens, cost_units, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.AgentID, sess.InitiatorID, sess.ParentID, sess.Title, string(history),
		sess.Metrics.ToolCalls, sess.Metrics.ErrorCount, sess.Metrics.TotalTokens,
		sess.Metrics.CostUnits, sess.CreatedAt.UTC(), sess.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, agent_id, initiator_id, parent_id, title, history,
			tool_calls, error_count, total_tokens, cost_units, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if agenterr.IsNotFound(err) {
			return nil, agenterr.NewSessionNotFound(id)
		}
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) Update(ctx context.Context, id string, delta Delta) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, agent_id, initiator_id, parent_id, title, history,
			tool_calls, error_count, total_tokens, cost_units, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		if agenterr.IsNotFound(err) {
			return nil, agenterr.NewSessionNotFound(id)
		}
		return nil, err
	}

	applyDelta(sess, delta)

	history, err := json.Marshal(sess.History)
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET initiator_id = ?, title = ?, history = ?,
			tool_calls = ?, error_count = ?, total_tokens = ?, cost_units = ?, updated_at = ?
		WHERE id = ?`,
		sess.InitiatorID, sess.Title, string(history),
		sess.Metrics.ToolCalls, sess.Metrics.ErrorCount, sess.Metrics.TotalTokens,
		sess.Metrics.CostUnits, sess.UpdatedAt.UTC(), id); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) List(ctx context.Context, agentID string) ([]*Session, error) {
	query := `
		SELECT id, agent_id, initiator_id, parent_id, title, history,
			tool_calls, error_count, total_tokens, cost_units, created_at, updated_at
		FROM sessions`
	args := []any{}
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at`
	return s.querySessions(ctx, query, args...)
}

func (s *SQLiteStore) Children(ctx context.Context, parentID string) ([]*Session, error) {
	if parentID == "" {
		return nil, nil
	}
	return s.querySessions(ctx, `
		SELECT id, agent_id, initiator_id, parent_id, title, history,
			tool_calls, error_count, total_tokens, cost_units, created_at, updated_at
		FROM sessions WHERE parent_id = ? ORDER BY created_at`, parentID)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return agenterr.NewSessionNotFound(id)
	}
	return nil
}

func (s *SQLiteStore) querySessions(ctx context.Context, query string, args ...any) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var history string
	var createdAt, updatedAt time.Time
	err := row.Scan(&sess.ID, &sess.AgentID, &sess.InitiatorID, &sess.ParentID,
		&sess.Title, &history,
		&sess.Metrics.ToolCalls, &sess.Metrics.ErrorCount, &sess.Metrics.TotalTokens,
		&sess.Metrics.CostUnits, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, agenterr.NewSessionNotFound("")
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &sess.History); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	sess.CreatedAt = createdAt
	sess.UpdatedAt = updatedAt
	return &sess, nil
}
