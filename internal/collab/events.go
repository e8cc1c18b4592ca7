// Package collab implements the per-session shared context: an
// append-only event log aggregated into queryable projections, and the
// process-wide registry that guarantees one context per session.
package collab

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of an agent event.
type EventType string

const (
	EventMessage   EventType = "message"
	EventTool      EventType = "tool"
	EventAgentCall EventType = "agentCall"
	EventFinal     EventType = "final"
)

// AgentEvent is an immutable fact published to a session's event log.
// Events are never mutated or deleted after publication.
type AgentEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	AgentID   string    `json:"agent_id"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh id and the current time.
func NewEvent(t EventType, agentID string, payload any) AgentEvent {
	return AgentEvent{
		ID:        uuid.NewString(),
		Type:      t,
		AgentID:   agentID,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

func newEventID() string { return uuid.NewString() }

// Tool call outcome status values.
const (
	ToolStatusOK    = "ok"
	ToolStatusError = "error"
)

// ToolCallRecord is the structured payload of a tool event: one tool
// invocation and its outcome.
type ToolCallRecord struct {
	CallID     string         `json:"call_id"`
	Name       string         `json:"name"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Result     string         `json:"result,omitempty"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// InteractionRecord is the structured payload of an agentCall event: one
// agent-to-agent call from an initiator into a child session.
type InteractionRecord struct {
	InitiatorID    string `json:"initiator_id"`
	TargetAgentID  string `json:"target_agent_id"`
	ChildSessionID string `json:"child_session_id"`
	Task           string `json:"task"`
}

// Statistics summarizes a session's collaboration state.
type Statistics struct {
	TotalMessages          int        `json:"total_messages"`
	TotalToolCalls         int        `json:"total_tool_calls"`
	TotalAgentInteractions int        `json:"total_agent_interactions"`
	TotalEvents            int        `json:"total_events"`
	HasFinalized           bool       `json:"has_finalized"`
	LastActivity           *time.Time `json:"last_activity,omitempty"`
	ActiveAgents           []string   `json:"active_agents"`
}
