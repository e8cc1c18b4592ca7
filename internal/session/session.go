// Package session provides the durable conversation-session model and
// its stores.
package session

import (
	"context"
	"time"
)

// HistoryEntry is one record in a session's ordered history.
type HistoryEntry struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Metrics holds a session's usage counters.
type Metrics struct {
	ToolCalls   int     `json:"tool_calls"`
	ErrorCount  int     `json:"error_count"`
	TotalTokens int     `json:"total_tokens"`
	CostUnits   float64 `json:"cost_units"`
}

// Session is one conversation thread. ParentID links agent-to-agent
// sub-conversations into a tree; it is set at creation and immutable.
type Session struct {
	ID          string         `json:"id"`
	AgentID     string         `json:"agent_id"`
	InitiatorID string         `json:"initiator_id,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	Title       string         `json:"title,omitempty"`
	History     []HistoryEntry `json:"history"`
	Metrics     Metrics        `json:"metrics"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Delta describes a partial session update. Nil fields are left
// unchanged. ID, AgentID and ParentID are immutable and deliberately
// not representable here.
type Delta struct {
	Title       *string
	InitiatorID *string
	History     []HistoryEntry // nil = unchanged; non-nil replaces the whole history
	Metrics     *Metrics
}

// Store is durable storage for sessions. Updates write a complete,
// self-consistent snapshot of the changed fields; no field-level
// concurrent writes are assumed safe.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, delta Delta) (*Session, error)
	List(ctx context.Context, agentID string) ([]*Session, error)
	Children(ctx context.Context, parentID string) ([]*Session, error)
	Delete(ctx context.Context, id string) error
}

// New creates a session with fresh timestamps.
func New(id, agentID, initiatorID, parentID string) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		AgentID:     agentID,
		InitiatorID: initiatorID,
		ParentID:    parentID,
		History:     []HistoryEntry{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
