package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AgentLoom/AgentLoom/internal/provider"
	"github.com/AgentLoom/AgentLoom/internal/session"
)

// HistoryMetaType tags the history entry that carries a serialized
// shared-context snapshot.
const HistoryMetaType = "shared_context_snapshot"

// snapshot is the serialized form of a context's projections, written
// into the session history as a tagged metadata record.
type snapshot struct {
	Messages          []provider.Message `json:"messages"`
	ToolCalls         []ToolCallRecord   `json:"tool_calls"`
	AgentInteractions []AgentEvent       `json:"agent_interactions"`
	FinalResult       any                `json:"final_result,omitempty"`
	HasFinal          bool               `json:"has_final"`
	LastUpdated       time.Time          `json:"last_updated"`
	TotalEvents       int                `json:"total_events"`
}

// Registry owns the process-wide sessionId → SharedContext map. At most
// one context exists per session id at any time; repeated lookups return
// the identical instance. All mutation of shared state goes through the
// contexts it hands out.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*SharedContext
	onCreate []func(sessionID string)
}

// NewRegistry creates an empty registry. Registries are constructor
// injected; tests may run several side by side.
func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*SharedContext)}
}

// GetOrCreate returns the context for sessionID, creating it atomically
// on first access. Concurrent first-access races observe the same
// winning instance.
func (r *Registry) GetOrCreate(sessionID string) *SharedContext {
	r.mu.Lock()
	if ctx, ok := r.contexts[sessionID]; ok {
		r.mu.Unlock()
		return ctx
	}
	ctx := newSharedContext(sessionID)
	r.contexts[sessionID] = ctx
	hooks := append([]func(string){}, r.onCreate...)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(sessionID)
	}
	return ctx
}

// OnCreate registers a hook invoked whenever GetOrCreate materializes a
// new context. Hooks run outside the registry lock.
func (r *Registry) OnCreate(hook func(sessionID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCreate = append(r.onCreate, hook)
}

// Has reports whether a context exists for sessionID.
func (r *Registry) Has(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.contexts[sessionID]
	return ok
}

// Clear removes the context for sessionID and reports whether one
// existed. Durable storage is untouched; a subsequent GetOrCreate yields
// a brand-new, empty instance.
func (r *Registry) Clear(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.contexts[sessionID]
	delete(r.contexts, sessionID)
	return ok
}

// ActiveIDs returns the session ids with live contexts, sorted.
func (r *Registry) ActiveIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.contexts))
	for id := range r.contexts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of live contexts.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}

// SaveToStore writes the context's projections into the durable session:
// one plain history entry per message (so the stored history stays
// readable on its own) followed by a tagged metadata record carrying the
// full snapshot. Aggregate metrics are recomputed from the tool-call log.
// Fails if the session record does not exist.
func (r *Registry) SaveToStore(ctx context.Context, store session.Store, sessionID string) error {
	sctx := r.GetOrCreate(sessionID)

	sess, err := store.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("save context %s: %w", sessionID, err)
	}

	contributions := sctx.Contributions()
	snap := snapshot{
		Messages:          sctx.Messages(),
		ToolCalls:         sctx.ToolCalls(),
		AgentInteractions: sctx.AgentInteractions(),
		LastUpdated:       time.Now(),
		TotalEvents:       len(contributions),
	}
	snap.FinalResult, snap.HasFinal = sctx.FinalResult()

	history := make([]session.HistoryEntry, 0, len(snap.Messages)+1)
	for _, ev := range contributions {
		if ev.Type != EventMessage {
			continue
		}
		msg, ok := messagePayload(ev.Payload)
		if !ok {
			continue
		}
		history = append(history, session.HistoryEntry{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: ev.Timestamp,
			Metadata:  map[string]any{"agent_id": ev.AgentID, "message_id": msg.ID},
		})
	}

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal context snapshot: %w", err)
	}
	history = append(history, session.HistoryEntry{
		Role:      "metadata",
		Timestamp: snap.LastUpdated,
		Metadata: map[string]any{
			"type":     HistoryMetaType,
			"snapshot": string(snapJSON),
		},
	})

	metrics := sess.Metrics
	metrics.ToolCalls = len(snap.ToolCalls)
	metrics.ErrorCount = 0
	for _, tc := range snap.ToolCalls {
		if tc.Status == ToolStatusError {
			metrics.ErrorCount++
		}
	}

	if _, err := store.Update(ctx, sessionID, session.Delta{
		History: history,
		Metrics: &metrics,
	}); err != nil {
		return fmt.Errorf("save context %s: %w", sessionID, err)
	}
	return nil
}

// LoadFromStore reads the session's history, locates the tagged snapshot
// record, and replays it back through the bus, reconstructing an
// equivalent context. A session without a snapshot yields the context
// as-is (normally empty); a missing session fails.
func (r *Registry) LoadFromStore(ctx context.Context, store session.Store, sessionID string) (*SharedContext, error) {
	sess, err := store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load context %s: %w", sessionID, err)
	}

	sctx := r.GetOrCreate(sessionID)

	snap, ok := findSnapshot(sess.History)
	if !ok {
		return sctx, nil
	}

	for _, msg := range snap.Messages {
		agentID := sess.AgentID
		if msg.Role == "user" {
			agentID = sess.InitiatorID
		}
		sctx.Publish(NewEvent(EventMessage, agentID, msg))
	}
	for _, tc := range snap.ToolCalls {
		sctx.Publish(NewEvent(EventTool, sess.AgentID, tc))
	}
	for _, ev := range snap.AgentInteractions {
		sctx.Publish(AgentEvent{
			ID:        ev.ID,
			Type:      EventAgentCall,
			AgentID:   ev.AgentID,
			Payload:   ev.Payload,
			Timestamp: ev.Timestamp,
		})
	}
	if snap.HasFinal {
		sctx.Publish(NewEvent(EventFinal, sess.AgentID, snap.FinalResult))
	}
	return sctx, nil
}

func findSnapshot(history []session.HistoryEntry) (snapshot, bool) {
	// Last tagged record wins if several saves accumulated.
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if entry.Metadata == nil {
			continue
		}
		if t, _ := entry.Metadata["type"].(string); t != HistoryMetaType {
			continue
		}
		raw, _ := entry.Metadata["snapshot"].(string)
		if raw == "" {
			continue
		}
		var snap snapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			continue
		}
		return snap, true
	}
	return snapshot{}, false
}
