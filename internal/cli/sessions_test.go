package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/AgentLoom/AgentLoom/internal/collab"
	"github.com/AgentLoom/AgentLoom/internal/provider"
	"github.com/AgentLoom/AgentLoom/internal/session"
)

func TestContextSummaryFromStoredSnapshot(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewMemoryStore()
	contexts := collab.NewRegistry()

	if err := sessions.Create(ctx, session.New("s1", "writer", "user-1", "")); err != nil {
		t.Fatalf("create session: %v", err)
	}

	sctx := contexts.GetOrCreate("s1")
	sctx.Publish(collab.NewEvent(collab.EventMessage, "user-1", provider.Message{ID: "m1", Role: "user", Content: "hi"}))
	sctx.Publish(collab.NewEvent(collab.EventMessage, "writer", provider.Message{ID: "m2", Role: "assistant", Content: "hello"}))
	sctx.Publish(collab.NewEvent(collab.EventTool, "writer", collab.ToolCallRecord{CallID: "c1", Name: "lookup", Status: collab.ToolStatusOK}))
	sctx.Publish(collab.NewEvent(collab.EventFinal, "writer", map[string]any{"content": "hello"}))

	if err := contexts.SaveToStore(ctx, sessions, "s1"); err != nil {
		t.Fatalf("SaveToStore: %v", err)
	}
	contexts.Clear("s1")

	// The show path: reload the snapshot, then render the aggregate.
	loaded, err := contexts.LoadFromStore(ctx, sessions, "s1")
	if err != nil {
		t.Fatalf("LoadFromStore: %v", err)
	}
	out := contextSummary(loaded.Statistics())

	for _, want := range []string{"2 messages", "1 tool calls", "finalized", "user-1, writer"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
