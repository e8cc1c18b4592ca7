package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AgentLoom/AgentLoom/internal/agenterr"
)

const definitionSchema = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	persona TEXT NOT NULL DEFAULT '',
	instructions TEXT NOT NULL DEFAULT '',
	wallet_ref TEXT NOT NULL DEFAULT '',
	tools TEXT NOT NULL DEFAULT '[]',
	temperature REAL NOT NULL DEFAULT 0,
	top_p REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// SQLiteDefinitionStore is a DefinitionStore backed by a local sqlite
// database.
type SQLiteDefinitionStore struct {
	db *sql.DB
}

// NewSQLiteDefinitionStore opens (and migrates) the agents database at
// dbPath. Use ":memory:" for an ephemeral store.
func NewSQLiteDefinitionStore(dbPath string) (*SQLiteDefinitionStore, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open agents db: %w", err)
	}
	if _, err := db.Exec(definitionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply agents schema: %w", err)
	}
	return &SQLiteDefinitionStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteDefinitionStore) Close() error { return s.db.Close() }

func (s *SQLiteDefinitionStore) Register(ctx context.Context, def *AgentDefinition) error {
	now := time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	toolsJSON, err := json.Marshal(def.Tools)
	if err != nil {
		return fmt.Errorf("marshal tools: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, persona, instructions, wallet_ref, tools, temperature, top_p, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID, def.Name, def.Persona, def.Instructions, def.WalletRef, string(toolsJSON),
		def.Temperature, def.TopP, def.CreatedAt.UTC(), def.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (s *SQLiteDefinitionStore) Get(ctx context.Context, id string) (*AgentDefinition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, persona, instructions, wallet_ref, tools, temperature, top_p, created_at, updated_at
		FROM agents WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, agenterr.NewAgentNotFound(id)
	}
	return def, err
}

func (s *SQLiteDefinitionStore) Update(ctx context.Context, id string, delta DefinitionDelta) (*AgentDefinition, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, name, persona, instructions, wallet_ref, tools, temperature, top_p, created_at, updated_at
		FROM agents WHERE id = ?`, id)
	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, agenterr.NewAgentNotFound(id)
	}
	if err != nil {
		return nil, err
	}

	applyDefinitionDelta(def, delta)

	toolsJSON, err := json.Marshal(def.Tools)
	if err != nil {
		return nil, fmt.Errorf("marshal tools: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE agents SET name = ?, persona = ?, instructions = ?, tools = ?, temperature = ?, top_p = ?, updated_at = ?
		WHERE id = ?`,
		def.Name, def.Persona, def.Instructions, string(toolsJSON),
		def.Temperature, def.TopP, def.UpdatedAt.UTC(), id); err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return def, nil
}

func (s *SQLiteDefinitionStore) List(ctx context.Context) ([]*AgentDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, persona, instructions, wallet_ref, tools, temperature, top_p, created_at, updated_at
		FROM agents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var out []*AgentDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*AgentDefinition, error) {
	var def AgentDefinition
	var toolsJSON string
	err := row.Scan(&def.ID, &def.Name, &def.Persona, &def.Instructions, &def.WalletRef,
		&toolsJSON, &def.Temperature, &def.TopP, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(toolsJSON), &def.Tools); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	return &def, nil
}
