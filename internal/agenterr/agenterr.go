// Package agenterr defines the error types surfaced by the agent core.
package agenterr

import (
	"errors"
	"fmt"
	"time"
)

// NotFoundError reports that a referenced agent or session does not exist.
type NotFoundError struct {
	Kind string // "agent" or "session"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewAgentNotFound returns a NotFoundError for an agent id.
func NewAgentNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "agent", ID: id}
}

// NewSessionNotFound returns a NotFoundError for a session id.
func NewSessionNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "session", ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ToolError reports a failed tool invocation. The attempt is recorded in
// the session's tool-call log before this error is returned.
type ToolError struct {
	Tool    string
	Elapsed time.Duration
	Cause   error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed after %dms: %v", e.Tool, e.Elapsed.Milliseconds(), e.Cause)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// ModelError reports a failed or unparsable language-model call.
type ModelError struct {
	Model   string
	Elapsed time.Duration
	Cause   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model call (%s) failed after %dms: %v", e.Model, e.Elapsed.Milliseconds(), e.Cause)
}

func (e *ModelError) Unwrap() error { return e.Cause }

// InteractionTimeoutError reports that an agent-to-agent interaction did
// not receive a final event within the bound. Kept distinct from ToolError
// so callers can tell "the other party never responded" from a local
// tool failure.
type InteractionTimeoutError struct {
	SessionID string
	AgentID   string
	Bound     time.Duration
}

func (e *InteractionTimeoutError) Error() string {
	return fmt.Sprintf("interaction with agent %s (session %s) timed out after %s", e.AgentID, e.SessionID, e.Bound)
}

// IsInteractionTimeout reports whether err is (or wraps) an
// InteractionTimeoutError.
func IsInteractionTimeout(err error) bool {
	var it *InteractionTimeoutError
	return errors.As(err, &it)
}

// InvariantViolation reports internal state that should be unreachable
// through the documented API, e.g. a second context registered for a
// session id outside GetOrCreate.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Detail
}
