// Package agent implements agent definitions and the step machine that
// drives one agent turn through model/tool cycles.
package agent

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AgentLoom/AgentLoom/internal/agenterr"
)

// AgentDefinition is the identity and behavior of a registered agent.
// It is read-only during execution; changes go through DefinitionStore.
// Update, which cannot touch identity or credential fields.
type AgentDefinition struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Persona      string    `json:"persona"`
	Instructions string    `json:"instructions"`
	WalletRef    string    `json:"wallet_ref,omitempty"` // opaque credential handle, never interpreted here
	Tools        []string  `json:"tools,omitempty"`      // enabled tool names; empty = all registered tools
	Temperature  float64   `json:"temperature"`
	TopP         float64   `json:"top_p"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToolEnabled reports whether the definition allows the named tool.
func (d *AgentDefinition) ToolEnabled(name string) bool {
	if len(d.Tools) == 0 {
		return true
	}
	for _, t := range d.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// DefinitionDelta describes a partial definition update. ID and
// WalletRef are immutable and deliberately not representable.
type DefinitionDelta struct {
	Name         *string
	Persona      *string
	Instructions *string
	Tools        []string // nil = unchanged
	Temperature  *float64
	TopP         *float64
}

// DefinitionStore is storage for agent definitions.
type DefinitionStore interface {
	Register(ctx context.Context, def *AgentDefinition) error
	Get(ctx context.Context, id string) (*AgentDefinition, error)
	Update(ctx context.Context, id string, delta DefinitionDelta) (*AgentDefinition, error)
	List(ctx context.Context) ([]*AgentDefinition, error)
}

// MemoryDefinitionStore is an in-memory DefinitionStore.
type MemoryDefinitionStore struct {
	mu   sync.RWMutex
	defs map[string]*AgentDefinition
}

// NewMemoryDefinitionStore creates an empty in-memory store.
func NewMemoryDefinitionStore() *MemoryDefinitionStore {
	return &MemoryDefinitionStore{defs: make(map[string]*AgentDefinition)}
}

func (m *MemoryDefinitionStore) Register(_ context.Context, def *AgentDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.defs[def.ID]; ok {
		return &agenterr.InvariantViolation{Detail: "agent already registered: " + def.ID}
	}
	now := time.Now()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now
	copied := *def
	m.defs[def.ID] = &copied
	return nil
}

func (m *MemoryDefinitionStore) Get(_ context.Context, id string) (*AgentDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.defs[id]
	if !ok {
		return nil, agenterr.NewAgentNotFound(id)
	}
	copied := *def
	return &copied, nil
}

func (m *MemoryDefinitionStore) Update(_ context.Context, id string, delta DefinitionDelta) (*AgentDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[id]
	if !ok {
		return nil, agenterr.NewAgentNotFound(id)
	}
	applyDefinitionDelta(def, delta)
	copied := *def
	return &copied, nil
}

func (m *MemoryDefinitionStore) List(_ context.Context) ([]*AgentDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*AgentDefinition, 0, len(m.defs))
	for _, def := range m.defs {
		copied := *def
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func applyDefinitionDelta(def *AgentDefinition, delta DefinitionDelta) {
	if delta.Name != nil {
		def.Name = *delta.Name
	}
	if delta.Persona != nil {
		def.Persona = *delta.Persona
	}
	if delta.Instructions != nil {
		def.Instructions = *delta.Instructions
	}
	if delta.Tools != nil {
		def.Tools = append([]string(nil), delta.Tools...)
	}
	if delta.Temperature != nil {
		def.Temperature = *delta.Temperature
	}
	if delta.TopP != nil {
		def.TopP = *delta.TopP
	}
	def.UpdatedAt = time.Now()
}
