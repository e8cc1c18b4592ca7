package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AgentLoom/AgentLoom/internal/agenterr"
	"github.com/AgentLoom/AgentLoom/internal/collab"
	"github.com/AgentLoom/AgentLoom/internal/provider"
	"github.com/AgentLoom/AgentLoom/internal/tools"
)

type interactionLimits struct {
	Timeout       time.Duration
	MaxDepth      int
	MaxConcurrent int
}

// interactionRun tracks one in-flight agent-to-agent sub-conversation.
type interactionRun struct {
	ID            string
	InitiatorID   string
	TargetAgentID string
	ParentSession string
	ChildSession  string
	Task          string
	StartedAt     time.Time
}

// interactionManager enforces the depth and concurrency bounds on
// agent-to-agent calls and keeps an inventory of active ones.
type interactionManager struct {
	mu     sync.Mutex
	limits interactionLimits
	active map[string]*interactionRun
}

func newInteractionManager(limits interactionLimits) *interactionManager {
	if limits.MaxDepth == 0 {
		limits.MaxDepth = 3
	}
	if limits.MaxConcurrent == 0 {
		limits.MaxConcurrent = 5
	}
	return &interactionManager{
		limits: limits,
		active: make(map[string]*interactionRun),
	}
}

func (im *interactionManager) begin(initiatorID, targetAgentID, parentSession, childSession, task string, depth int) (*interactionRun, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	if depth >= im.limits.MaxDepth {
		return nil, fmt.Errorf("agent call depth limit reached (%d)", im.limits.MaxDepth)
	}
	if len(im.active) >= im.limits.MaxConcurrent {
		return nil, fmt.Errorf("too many concurrent agent calls (%d active)", len(im.active))
	}

	run := &interactionRun{
		ID:            uuid.NewString(),
		InitiatorID:   initiatorID,
		TargetAgentID: targetAgentID,
		ParentSession: parentSession,
		ChildSession:  childSession,
		Task:          task,
		StartedAt:     time.Now(),
	}
	im.active[run.ID] = run
	return run, nil
}

func (im *interactionManager) finish(id string) {
	im.mu.Lock()
	defer im.mu.Unlock()
	delete(im.active, id)
}

func (im *interactionManager) Active() []interactionRun {
	im.mu.Lock()
	defer im.mu.Unlock()
	out := make([]interactionRun, 0, len(im.active))
	for _, run := range im.active {
		out = append(out, *run)
	}
	return out
}

// CallAgent opens (or resumes) a sub-conversation with another agent,
// runs it, and waits for its final event. The wait is bounded: if the
// target does not finalize within the configured timeout, the call
// fails with an interaction timeout and the sub-conversation is
// abandoned.
func (m *StepMachine) CallAgent(ctx context.Context, initiatorAgentID, parentSessionID, targetAgentID, task, childSessionID string, depth int) (string, error) {
	if _, err := m.definitions.Get(ctx, targetAgentID); err != nil {
		return "", err
	}

	resuming := childSessionID != ""
	if !resuming {
		childSessionID = uuid.NewString()
	}

	run, err := m.interactions.begin(initiatorAgentID, targetAgentID, parentSessionID, childSessionID, task, depth)
	if err != nil {
		return "", err
	}
	defer m.interactions.finish(run.ID)

	parent := m.contexts.GetOrCreate(parentSessionID)
	parent.Publish(collab.NewEvent(collab.EventAgentCall, initiatorAgentID, collab.InteractionRecord{
		InitiatorID:    initiatorAgentID,
		TargetAgentID:  targetAgentID,
		ChildSessionID: childSessionID,
		Task:           task,
	}))

	child := m.contexts.GetOrCreate(childSessionID)

	slog.Info("Agent call started",
		"initiator", initiatorAgentID, "target", targetAgentID,
		"parent_session", parentSessionID, "child_session", childSessionID,
		"resuming", resuming)

	runErr := make(chan error, 1)
	go func() {
		_, err := m.Run(ctx, RunRequest{
			AgentID:     targetAgentID,
			SessionID:   childSessionID,
			InitiatorID: initiatorAgentID,
			ParentID:    parentSessionID,
			Messages: []provider.Message{{
				ID:      uuid.NewString(),
				Role:    "user",
				Content: task,
			}},
			depth: depth + 1,
		})
		runErr <- err
	}()

	waitCtx, cancel := context.WithTimeout(ctx, m.interactions.limits.Timeout)
	defer cancel()

	type finalWait struct {
		payload any
		err     error
	}
	finalCh := make(chan finalWait, 1)
	go func() {
		payload, err := child.WaitForFinal(waitCtx)
		finalCh <- finalWait{payload, err}
	}()

	var final any
	select {
	case err := <-runErr:
		// A failed run never publishes a final event; surface its error
		// (model, tool) instead of waiting out the bound.
		if err != nil {
			return "", err
		}
		res := <-finalCh
		if res.err != nil {
			return "", res.err
		}
		final = res.payload
	case res := <-finalCh:
		if res.err != nil {
			if waitCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
				return "", &agenterr.InteractionTimeoutError{
					SessionID: childSessionID,
					AgentID:   targetAgentID,
					Bound:     m.interactions.limits.Timeout,
				}
			}
			return "", res.err
		}
		final = res.payload
	}

	if payload, ok := final.(map[string]any); ok {
		if content, ok := payload["content"].(string); ok {
			return content, nil
		}
	}
	return fmt.Sprintf("%v", final), nil
}

// agentCallTool exposes CallAgent to the model. The executing agent and
// its session come from call metadata, not from the model's arguments.
type agentCallTool struct {
	machine *StepMachine
}

func newAgentCallTool(m *StepMachine) *agentCallTool {
	return &agentCallTool{machine: m}
}

func (t *agentCallTool) Name() string { return "agent_call" }

func (t *agentCallTool) Description() string {
	return "Delegate a task to another agent and wait for its answer. Pass session_id to continue an existing sub-conversation."
}

func (t *agentCallTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_id": map[string]any{
				"type":        "string",
				"description": "ID of the agent to call",
			},
			"task": map[string]any{
				"type":        "string",
				"description": "The task or question for the agent",
			},
			"session_id": map[string]any{
				"type":        "string",
				"description": "Existing sub-conversation to resume (optional)",
			},
		},
		"required": []string{"agent_id", "task"},
	}
}

func (t *agentCallTool) Execute(ctx context.Context, params map[string]any, meta tools.CallMeta) (string, error) {
	targetID := tools.GetString(params, "agent_id", "")
	task := tools.GetString(params, "task", "")
	if targetID == "" || task == "" {
		return "", fmt.Errorf("agent_call requires agent_id and task")
	}
	childSession := tools.GetString(params, "session_id", "")
	return t.machine.CallAgent(ctx, meta.AgentID, meta.SessionID, targetID, task, childSession, meta.Depth)
}
