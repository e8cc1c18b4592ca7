package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AgentLoom/AgentLoom/internal/agenterr"
	"github.com/AgentLoom/AgentLoom/internal/collab"
	"github.com/AgentLoom/AgentLoom/internal/provider"
	"github.com/AgentLoom/AgentLoom/internal/session"
	"github.com/AgentLoom/AgentLoom/internal/tools"
)

// StepState identifies a state of the step machine.
type StepState string

const (
	StateStart StepState = "start"
	StateModel StepState = "model"
	StateTools StepState = "tools"
	StateEnd   StepState = "end"
)

// Params are the generation parameters for a model call. Resolution
// order: call-time override, then agent definition, then system default.
type Params struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// MessageMeta records attribution and resolved parameters for one
// message, keyed by message id in RunResult.Meta.
type MessageMeta struct {
	AgentID string
	Params  Params
}

// StepEvent is one observable transition of the step machine, delivered
// on the stream returned by RunStream.
type StepEvent struct {
	State     StepState
	SessionID string
	Message   *provider.Message
	ToolCall  *collab.ToolCallRecord
	Result    *RunResult // set on the terminal event
	Err       error
}

// RunRequest describes one agent turn.
type RunRequest struct {
	AgentID     string
	SessionID   string // empty = generate a fresh id
	InitiatorID string // human or agent that started this turn
	ParentID    string // parent session for agent-to-agent sub-conversations
	Messages    []provider.Message
	Params      *Params // call-time override, may be nil

	depth int // interaction depth, set internally by CallAgent
}

// RunResult is the outcome of a completed turn.
type RunResult struct {
	SessionID    string
	Messages     []provider.Message
	FinalContent string
	Meta         map[string]MessageMeta
	Usage        provider.Usage
}

// Options configures a StepMachine.
type Options struct {
	Provider    provider.LLMProvider
	Tools       *tools.Registry
	Contexts    *collab.Registry
	Sessions    session.Store
	Definitions DefinitionStore

	Model         string // model identifier, from configuration
	Defaults      Params // system-default generation parameters
	MaxIterations int    // safety bound on model/tool cycles, default 20

	InteractionTimeout        time.Duration // bound on agent-to-agent awaits, default 120s
	MaxInteractionDepth       int
	MaxConcurrentInteractions int
}

// StepMachine drives one agent turn to completion or failure: ensure a
// system prompt, call the model, dispatch any requested tools, loop
// until a response carries no tool calls.
type StepMachine struct {
	provider    provider.LLMProvider
	tools       *tools.Registry
	contexts    *collab.Registry
	sessions    session.Store
	definitions DefinitionStore

	model         string
	defaults      Params
	maxIterations int

	interactions *interactionManager
}

// NewStepMachine creates a step machine and registers the agent_call
// tool so agents can open sub-conversations with each other.
func NewStepMachine(opts Options) *StepMachine {
	maxIter := opts.MaxIterations
	if maxIter == 0 {
		maxIter = 20
	}
	timeout := opts.InteractionTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	m := &StepMachine{
		provider:      opts.Provider,
		tools:         opts.Tools,
		contexts:      opts.Contexts,
		sessions:      opts.Sessions,
		definitions:   opts.Definitions,
		model:         opts.Model,
		defaults:      opts.Defaults,
		maxIterations: maxIter,
		interactions: newInteractionManager(interactionLimits{
			Timeout:       timeout,
			MaxDepth:      opts.MaxInteractionDepth,
			MaxConcurrent: opts.MaxConcurrentInteractions,
		}),
	}

	if m.tools != nil {
		m.tools.Register(newAgentCallTool(m))
	}
	return m
}

// Run executes one turn in batch mode: the loop runs to completion and
// the final state is returned.
func (m *StepMachine) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	return m.run(ctx, req, nil)
}

// RunStream executes one turn in streaming mode: the same sequence of
// state transitions is delivered as events on the returned channel. The
// channel is closed after the terminal event (StateEnd with Result, or
// an event with Err set).
func (m *StepMachine) RunStream(ctx context.Context, req RunRequest) <-chan StepEvent {
	events := make(chan StepEvent, 16)
	go func() {
		defer close(events)
		emit := func(ev StepEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		result, err := m.run(ctx, req, emit)
		if err != nil {
			emit(StepEvent{State: StateEnd, SessionID: req.SessionID, Err: err})
			return
		}
		emit(StepEvent{State: StateEnd, SessionID: result.SessionID, Result: result})
	}()
	return events
}

// run is the shared branching logic for both invocation modes. emit may
// be nil in batch mode.
func (m *StepMachine) run(ctx context.Context, req RunRequest, emit func(StepEvent)) (*RunResult, error) {
	if emit == nil {
		emit = func(StepEvent) {}
	}

	def, err := m.definitions.Get(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if req.SessionID != "" && !m.contexts.Has(sessionID) {
		// A restart loses the live context; the durable snapshot, when
		// one exists, carries the thread across.
		if _, err := m.contexts.LoadFromStore(ctx, m.sessions, sessionID); err != nil && !agenterr.IsNotFound(err) {
			return nil, err
		}
	}
	if err := m.ensureSession(ctx, sessionID, req); err != nil {
		return nil, err
	}

	sctx := m.contexts.GetOrCreate(sessionID)
	emit(StepEvent{State: StateStart, SessionID: sessionID})

	// Resuming rebuilds the prompt from the shared record, so callers
	// pass only their genuinely new messages. A message whose id already
	// appears in the record is replayed history, not new input.
	prior := sctx.Messages()
	seen := make(map[string]struct{}, len(prior))
	for _, msg := range prior {
		if msg.ID != "" {
			seen[msg.ID] = struct{}{}
		}
	}

	fresh := make([]provider.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		} else if _, ok := seen[msg.ID]; ok {
			continue
		}
		fresh = append(fresh, msg)
	}

	var system provider.Message
	if len(fresh) > 0 && fresh[0].Role == "system" {
		system = fresh[0]
		fresh = fresh[1:]
	} else {
		system = m.buildSystemMessage(ctx, def, sessionID)
	}

	messages := make([]provider.Message, 0, 1+len(prior)+len(fresh))
	messages = append(messages, system)
	for _, msg := range prior {
		// Tool requests from earlier turns were already satisfied; the
		// resumed prompt keeps only the conversational content.
		msg.ToolCalls = nil
		if msg.Content == "" {
			continue
		}
		messages = append(messages, msg)
	}
	messages = append(messages, fresh...)

	// Human/initiator input becomes part of the shared record before the
	// first model call.
	initiator := req.InitiatorID
	if initiator == "" {
		initiator = "user"
	}
	for _, msg := range fresh {
		if msg.Role != "user" {
			continue
		}
		sctx.Publish(collab.NewEvent(collab.EventMessage, initiator, msg))
	}

	params := m.resolveParams(req.Params, def)
	toolDefs := m.toolDefinitions(def)
	meta := make(map[string]MessageMeta)
	var usage provider.Usage
	finalContent := ""

	for i := 0; i < m.maxIterations; i++ {
		llmStart := time.Now()
		resp, err := m.provider.Chat(ctx, &provider.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Model:       m.model,
			MaxTokens:   params.MaxTokens,
			Temperature: params.Temperature,
			TopP:        params.TopP,
		})
		llmElapsed := time.Since(llmStart)
		if err != nil {
			merr := &agenterr.ModelError{Model: m.model, Elapsed: llmElapsed, Cause: err}
			emit(StepEvent{State: StateModel, SessionID: sessionID, Err: merr})
			return nil, merr
		}
		usage.Add(resp.Usage)

		assistant := provider.Message{
			ID:        uuid.NewString(),
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		messages = append(messages, assistant)
		meta[assistant.ID] = MessageMeta{AgentID: req.AgentID, Params: params}
		sctx.Publish(collab.NewEvent(collab.EventMessage, req.AgentID, assistant))
		emit(StepEvent{State: StateModel, SessionID: sessionID, Message: &assistant})

		slog.Debug("Model step completed",
			"agent", req.AgentID, "session", sessionID,
			"tokens", resp.Usage.TotalTokens, "duration_ms", llmElapsed.Milliseconds(),
			"tool_calls", len(resp.ToolCalls))

		// Branch: no pending tool calls means the turn is done.
		if !assistant.HasToolCalls() {
			finalContent = resp.Content
			break
		}

		toolMessages, err := m.runToolStep(ctx, sctx, req, sessionID, resp.ToolCalls, emit)
		if err != nil {
			return nil, err
		}
		messages = append(messages, toolMessages...)

		if i == m.maxIterations-1 {
			finalContent = "Max iterations reached. Please try a simpler request."
		}
	}

	sctx.Publish(collab.NewEvent(collab.EventFinal, req.AgentID, map[string]any{
		"content":    finalContent,
		"session_id": sessionID,
	}))

	m.recordUsage(ctx, sessionID, usage)

	return &RunResult{
		SessionID:    sessionID,
		Messages:     messages,
		FinalContent: finalContent,
		Meta:         meta,
		Usage:        usage,
	}, nil
}

// runToolStep dispatches every pending tool call concurrently and waits
// for all of them. Each attempt is recorded in the tool-call log before
// any failure is surfaced; the first failure aborts the step.
func (m *StepMachine) runToolStep(ctx context.Context, sctx *collab.SharedContext, req RunRequest, sessionID string, calls []provider.ToolCall, emit func(StepEvent)) ([]provider.Message, error) {
	agentID := req.AgentID
	type outcome struct {
		record  collab.ToolCallRecord
		elapsed time.Duration
		err     error
	}

	results := make([]outcome, len(calls))
	var wg sync.WaitGroup
	for idx, tc := range calls {
		wg.Add(1)
		go func(idx int, tc provider.ToolCall) {
			defer wg.Done()
			start := time.Now()
			out, err := m.tools.Execute(ctx, tc.Name, tc.Arguments, tools.CallMeta{
				AgentID:   agentID,
				SessionID: sessionID,
				Depth:     req.depth,
			})
			elapsed := time.Since(start)

			rec := collab.ToolCallRecord{
				CallID:     tc.ID,
				Name:       tc.Name,
				Arguments:  tc.Arguments,
				DurationMS: elapsed.Milliseconds(),
			}
			if err != nil {
				rec.Status = collab.ToolStatusError
				rec.Error = err.Error()
			} else {
				rec.Status = collab.ToolStatusOK
				rec.Result = out
			}
			results[idx] = outcome{record: rec, elapsed: elapsed, err: err}
		}(idx, tc)
	}
	wg.Wait()

	// Publication happens after the join, in request order, so the log
	// keeps a single deterministic order per step.
	var failed error
	var toolMessages []provider.Message
	for idx, tc := range calls {
		res := results[idx]
		sctx.Publish(collab.NewEvent(collab.EventTool, agentID, res.record))
		emit(StepEvent{State: StateTools, SessionID: sessionID, ToolCall: &res.record})

		if res.err != nil {
			slog.Warn("Tool failed", "tool", tc.Name, "session", sessionID, "error", res.err)
			if failed == nil {
				failed = &agenterr.ToolError{Tool: tc.Name, Elapsed: res.elapsed, Cause: res.err}
			}
			continue
		}
		toolMessages = append(toolMessages, provider.Message{
			ID:         uuid.NewString(),
			Role:       "tool",
			Content:    res.record.Result,
			ToolCallID: tc.ID,
		})
	}
	if failed != nil {
		return nil, failed
	}
	return toolMessages, nil
}

// recordUsage accumulates a completed turn's token consumption onto the
// durable session record. CostUnits count thousands of tokens.
func (m *StepMachine) recordUsage(ctx context.Context, sessionID string, usage provider.Usage) {
	if usage.TotalTokens == 0 {
		return
	}
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		slog.Warn("Usage persist failed", "session", sessionID, "error", err)
		return
	}
	metrics := sess.Metrics
	metrics.TotalTokens += usage.TotalTokens
	metrics.CostUnits += float64(usage.TotalTokens) / 1000
	if _, err := m.sessions.Update(ctx, sessionID, session.Delta{Metrics: &metrics}); err != nil {
		slog.Warn("Usage persist failed", "session", sessionID, "error", err)
	}
}

// ensureSession makes sure a durable session record exists for the id.
// A race between two runs on the same unseen id resolves to a single
// created record.
func (m *StepMachine) ensureSession(ctx context.Context, sessionID string, req RunRequest) error {
	_, err := m.sessions.Get(ctx, sessionID)
	if err == nil {
		return nil
	}
	if !agenterr.IsNotFound(err) {
		return err
	}
	sess := session.New(sessionID, req.AgentID, req.InitiatorID, req.ParentID)
	if err := m.sessions.Create(ctx, sess); err != nil {
		// Lost the creation race; the winner's record serves.
		if _, getErr := m.sessions.Get(ctx, sessionID); getErr == nil {
			return nil
		}
		return err
	}
	return nil
}

// buildSystemMessage synthesizes the system prompt from the agent's
// persona and instructions, plus the current time, the session id, and a
// summary of known child sessions so the model resumes existing
// agent-to-agent threads instead of starting duplicates.
func (m *StepMachine) buildSystemMessage(ctx context.Context, def *AgentDefinition, sessionID string) provider.Message {
	var sb strings.Builder

	name := def.Name
	if name == "" {
		name = def.ID
	}
	fmt.Fprintf(&sb, "You are %s.\n\n%s\n", name, strings.TrimSpace(def.Persona))
	if inst := strings.TrimSpace(def.Instructions); inst != "" {
		sb.WriteString("\n## Instructions\n")
		sb.WriteString(inst)
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "\n## Current Time\n%s\n", time.Now().Format("2006-01-02 15:04 (Monday)"))
	fmt.Fprintf(&sb, "\n## Session\nSession ID: %s\n", sessionID)

	if children, err := m.sessions.Children(ctx, sessionID); err == nil && len(children) > 0 {
		sb.WriteString("\n## Open Sub-Conversations\n")
		sb.WriteString("Resume these via agent_call instead of starting new ones:\n")
		for _, child := range children {
			title := child.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(&sb, "- agent %s, session %s: %s\n", child.AgentID, child.ID, title)
		}
	}

	return provider.Message{
		ID:      uuid.NewString(),
		Role:    "system",
		Content: sb.String(),
	}
}

// resolveParams resolves generation parameters: call-time override wins,
// then the agent definition, then the system default.
func (m *StepMachine) resolveParams(override *Params, def *AgentDefinition) Params {
	params := m.defaults
	if def.Temperature > 0 {
		params.Temperature = def.Temperature
	}
	if def.TopP > 0 {
		params.TopP = def.TopP
	}
	if override != nil {
		if override.Temperature > 0 {
			params.Temperature = override.Temperature
		}
		if override.TopP > 0 {
			params.TopP = override.TopP
		}
		if override.MaxTokens > 0 {
			params.MaxTokens = override.MaxTokens
		}
	}
	return params
}

// toolDefinitions builds the tool catalog for the model, restricted to
// the definition's enabled set.
func (m *StepMachine) toolDefinitions(def *AgentDefinition) []provider.ToolDefinition {
	var defs []provider.ToolDefinition
	for _, tool := range m.tools.List() {
		if !def.ToolEnabled(tool.Name()) {
			continue
		}
		defs = append(defs, provider.ToolDefinition{
			Type: "function",
			Function: provider.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		})
	}
	return defs
}
