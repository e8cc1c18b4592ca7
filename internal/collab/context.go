package collab

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AgentLoom/AgentLoom/internal/provider"
)

// SharedContext aggregates one session's event log into projections.
// Publication is the serialization point: all projections are consistent
// with the single total order of contributions at every observation.
//
// The projections are pure functions of the log; they are never mutated
// except through Publish.
type SharedContext struct {
	sessionID string

	mu            sync.RWMutex
	contributions []AgentEvent
	messages      []provider.Message
	toolCalls     []ToolCallRecord
	interactions  []AgentEvent
	finalResult   any
	hasFinal      bool

	subscribers map[int]chan AgentEvent
	nextSubID   int
	finalWait   []chan any
}

func newSharedContext(sessionID string) *SharedContext {
	return &SharedContext{
		sessionID:   sessionID,
		subscribers: make(map[int]chan AgentEvent),
	}
}

// SessionID returns the session this context belongs to.
func (c *SharedContext) SessionID() string { return c.sessionID }

// Publish appends the event to the contributions log and updates exactly
// one projection based on the event type. Events with a zero timestamp or
// empty id are stamped on entry.
func (c *SharedContext) Publish(event AgentEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ID == "" {
		event.ID = newEventID()
	}

	c.mu.Lock()
	c.contributions = append(c.contributions, event)

	switch event.Type {
	case EventMessage:
		if msg, ok := messagePayload(event.Payload); ok {
			c.messages = append(c.messages, msg)
		}
	case EventTool:
		if rec, ok := toolPayload(event.Payload); ok {
			c.toolCalls = append(c.toolCalls, rec)
		}
	case EventAgentCall:
		c.interactions = append(c.interactions, event)
	case EventFinal:
		c.finalResult = event.Payload
		c.hasFinal = true
		for _, ch := range c.finalWait {
			ch <- event.Payload
		}
		c.finalWait = nil
	}

	subs := make([]chan AgentEvent, 0, len(c.subscribers))
	for _, ch := range c.subscribers {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	// Best-effort fan-out; a stalled subscriber must not block publication.
	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func messagePayload(payload any) (provider.Message, bool) {
	switch v := payload.(type) {
	case provider.Message:
		return v, true
	case *provider.Message:
		if v != nil {
			return *v, true
		}
	}
	return provider.Message{}, false
}

func toolPayload(payload any) (ToolCallRecord, bool) {
	switch v := payload.(type) {
	case ToolCallRecord:
		return v, true
	case *ToolCallRecord:
		if v != nil {
			return *v, true
		}
	}
	return ToolCallRecord{}, false
}

// Messages returns the ordered message projection.
func (c *SharedContext) Messages() []provider.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]provider.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// MessagesForAgent returns the message payloads attributed to one agent,
// filtered from the contributions log.
func (c *SharedContext) MessagesForAgent(agentID string) []provider.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []provider.Message
	for _, ev := range c.contributions {
		if ev.Type != EventMessage || ev.AgentID != agentID {
			continue
		}
		if msg, ok := messagePayload(ev.Payload); ok {
			out = append(out, msg)
		}
	}
	return out
}

// ToolCalls returns the ordered tool-call projection.
func (c *SharedContext) ToolCalls() []ToolCallRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolCallRecord, len(c.toolCalls))
	copy(out, c.toolCalls)
	return out
}

// AgentInteractions returns the ordered agent-to-agent call events.
func (c *SharedContext) AgentInteractions() []AgentEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AgentEvent, len(c.interactions))
	copy(out, c.interactions)
	return out
}

// FinalResult returns the last-write-wins terminal payload, if any.
func (c *SharedContext) FinalResult() (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finalResult, c.hasFinal
}

// Contributions returns the full underlying event log.
func (c *SharedContext) Contributions() []AgentEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]AgentEvent, len(c.contributions))
	copy(out, c.contributions)
	return out
}

// Statistics returns projection counts and activity aggregates.
func (c *SharedContext) Statistics() Statistics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Statistics{
		TotalMessages:          len(c.messages),
		TotalToolCalls:         len(c.toolCalls),
		TotalAgentInteractions: len(c.interactions),
		TotalEvents:            len(c.contributions),
		HasFinalized:           c.hasFinal,
	}

	seen := make(map[string]struct{})
	for _, ev := range c.contributions {
		if stats.LastActivity == nil || ev.Timestamp.After(*stats.LastActivity) {
			ts := ev.Timestamp
			stats.LastActivity = &ts
		}
		if ev.AgentID != "" {
			seen[ev.AgentID] = struct{}{}
		}
	}
	for id := range seen {
		stats.ActiveAgents = append(stats.ActiveAgents, id)
	}
	sort.Strings(stats.ActiveAgents)
	return stats
}

// Subscribe registers a live event stream. Delivery is best-effort: the
// subscriber's buffer must be drained or events are dropped for that
// subscriber (the log itself is never affected). The returned cancel
// function must be called when done.
func (c *SharedContext) Subscribe(buffer int) (<-chan AgentEvent, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan AgentEvent, buffer)

	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
	return ch, cancel
}

// WaitForFinal blocks until a final event is published or the context
// expires. If a final result is already set it returns immediately.
func (c *SharedContext) WaitForFinal(ctx context.Context) (any, error) {
	c.mu.Lock()
	if c.hasFinal {
		result := c.finalResult
		c.mu.Unlock()
		return result, nil
	}
	ch := make(chan any, 1)
	c.finalWait = append(c.finalWait, ch)
	c.mu.Unlock()

	select {
	case result := <-ch:
		return result, nil
	case <-ctx.Done():
		c.mu.Lock()
		for i, w := range c.finalWait {
			if w == ch {
				c.finalWait = append(c.finalWait[:i], c.finalWait[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}
