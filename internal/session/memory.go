package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AgentLoom/AgentLoom/internal/agenterr"
)

// MemoryStore is an in-memory Store used by tests and single-process
// setups without durable storage configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return &agenterr.InvariantViolation{Detail: "session already exists: " + s.ID}
	}
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, agenterr.NewSessionNotFound(id)
	}
	return cloneSession(s), nil
}

func (m *MemoryStore) Update(_ context.Context, id string, delta Delta) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, agenterr.NewSessionNotFound(id)
	}
	applyDelta(s, delta)
	return cloneSession(s), nil
}

func (m *MemoryStore) List(_ context.Context, agentID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if agentID != "" && s.AgentID != agentID {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sortSessions(out)
	return out, nil
}

func (m *MemoryStore) Children(_ context.Context, parentID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.ParentID == parentID && parentID != "" {
			out = append(out, cloneSession(s))
		}
	}
	sortSessions(out)
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return agenterr.NewSessionNotFound(id)
	}
	delete(m.sessions, id)
	return nil
}

func applyDelta(s *Session, delta Delta) {
	if delta.Title != nil {
		s.Title = *delta.Title
	}
	if delta.InitiatorID != nil {
		s.InitiatorID = *delta.InitiatorID
	}
	if delta.History != nil {
		s.History = append([]HistoryEntry(nil), delta.History...)
	}
	if delta.Metrics != nil {
		s.Metrics = *delta.Metrics
	}
	s.UpdatedAt = time.Now()
}

func cloneSession(s *Session) *Session {
	out := *s
	out.History = append([]HistoryEntry(nil), s.History...)
	return &out
}

func sortSessions(list []*Session) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
