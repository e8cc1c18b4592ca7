package collab

import (
	"context"
	"testing"
	"time"

	"github.com/AgentLoom/AgentLoom/internal/provider"
)

func publishMessage(t *testing.T, sctx *SharedContext, agentID, role, content string) {
	t.Helper()
	sctx.Publish(NewEvent(EventMessage, agentID, provider.Message{Role: role, Content: content}))
}

func TestProjectionsFollowEventTypes(t *testing.T) {
	sctx := newSharedContext("s1")

	publishMessage(t, sctx, "user-1", "user", "hello")
	publishMessage(t, sctx, "researcher", "assistant", "looking into it")
	publishMessage(t, sctx, "writer", "assistant", "drafting")
	sctx.Publish(NewEvent(EventTool, "researcher", ToolCallRecord{
		CallID: "c1", Name: "read_file", Status: ToolStatusOK, Result: "data",
	}))
	sctx.Publish(NewEvent(EventTool, "researcher", ToolCallRecord{
		CallID: "c2", Name: "write_file", Status: ToolStatusError, Error: "denied",
	}))
	sctx.Publish(NewEvent(EventAgentCall, "researcher", InteractionRecord{
		InitiatorID: "researcher", TargetAgentID: "writer", ChildSessionID: "s2", Task: "summarize",
	}))
	sctx.Publish(NewEvent(EventFinal, "researcher", map[string]any{"content": "done"}))

	if got := len(sctx.Messages()); got != 3 {
		t.Fatalf("messages = %d, want 3", got)
	}
	if got := len(sctx.ToolCalls()); got != 2 {
		t.Fatalf("toolCalls = %d, want 2", got)
	}
	if got := len(sctx.AgentInteractions()); got != 1 {
		t.Fatalf("interactions = %d, want 1", got)
	}
	final, ok := sctx.FinalResult()
	if !ok {
		t.Fatal("expected final result")
	}
	payload, ok := final.(map[string]any)
	if !ok || payload["content"] != "done" {
		t.Fatalf("final = %v", final)
	}
	if got := len(sctx.Contributions()); got != 7 {
		t.Fatalf("contributions = %d, want 7", got)
	}
}

func TestStatistics(t *testing.T) {
	sctx := newSharedContext("s1")

	publishMessage(t, sctx, "user-1", "user", "hi")
	publishMessage(t, sctx, "writer", "assistant", "hello")
	sctx.Publish(NewEvent(EventTool, "writer", ToolCallRecord{CallID: "c1", Name: "list_dir", Status: ToolStatusOK}))
	sctx.Publish(NewEvent(EventFinal, "writer", map[string]any{"content": "hello"}))

	stats := sctx.Statistics()
	if stats.TotalMessages != 2 {
		t.Fatalf("TotalMessages = %d, want 2", stats.TotalMessages)
	}
	if stats.TotalToolCalls != 1 {
		t.Fatalf("TotalToolCalls = %d, want 1", stats.TotalToolCalls)
	}
	if stats.TotalAgentInteractions != 0 {
		t.Fatalf("TotalAgentInteractions = %d, want 0", stats.TotalAgentInteractions)
	}
	if stats.TotalEvents != 4 {
		t.Fatalf("TotalEvents = %d, want 4", stats.TotalEvents)
	}
	if !stats.HasFinalized {
		t.Fatal("expected HasFinalized")
	}
	if stats.LastActivity == nil {
		t.Fatal("expected LastActivity")
	}
	want := []string{"user-1", "writer"}
	if len(stats.ActiveAgents) != len(want) {
		t.Fatalf("ActiveAgents = %v, want %v", stats.ActiveAgents, want)
	}
	for i, id := range want {
		if stats.ActiveAgents[i] != id {
			t.Fatalf("ActiveAgents = %v, want %v", stats.ActiveAgents, want)
		}
	}
}

func TestMessagesForAgent(t *testing.T) {
	sctx := newSharedContext("s1")

	publishMessage(t, sctx, "a", "assistant", "one")
	publishMessage(t, sctx, "b", "assistant", "two")
	publishMessage(t, sctx, "a", "assistant", "three")

	got := sctx.MessagesForAgent("a")
	if len(got) != 2 || got[0].Content != "one" || got[1].Content != "three" {
		t.Fatalf("MessagesForAgent = %+v", got)
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	sctx := newSharedContext("s1")
	events, cancel := sctx.Subscribe(8)
	defer cancel()

	publishMessage(t, sctx, "a", "assistant", "hi")

	select {
	case ev := <-events:
		if ev.Type != EventMessage || ev.AgentID != "a" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSubscribeDropsWhenFull(t *testing.T) {
	sctx := newSharedContext("s1")
	events, cancel := sctx.Subscribe(1)
	defer cancel()

	publishMessage(t, sctx, "a", "assistant", "one")
	publishMessage(t, sctx, "a", "assistant", "two")

	// Log must keep everything even though the subscriber lost one.
	if got := len(sctx.Contributions()); got != 2 {
		t.Fatalf("contributions = %d, want 2", got)
	}
	if got := len(events); got != 1 {
		t.Fatalf("buffered = %d, want 1", got)
	}
}

func TestWaitForFinalImmediate(t *testing.T) {
	sctx := newSharedContext("s1")
	sctx.Publish(NewEvent(EventFinal, "a", map[string]any{"content": "ok"}))

	result, err := sctx.WaitForFinal(context.Background())
	if err != nil {
		t.Fatalf("WaitForFinal: %v", err)
	}
	if payload := result.(map[string]any); payload["content"] != "ok" {
		t.Fatalf("result = %v", result)
	}
}

func TestWaitForFinalBlocksUntilPublished(t *testing.T) {
	sctx := newSharedContext("s1")

	go func() {
		time.Sleep(20 * time.Millisecond)
		sctx.Publish(NewEvent(EventFinal, "a", map[string]any{"content": "late"}))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := sctx.WaitForFinal(ctx)
	if err != nil {
		t.Fatalf("WaitForFinal: %v", err)
	}
	if payload := result.(map[string]any); payload["content"] != "late" {
		t.Fatalf("result = %v", result)
	}
}

func TestWaitForFinalTimesOut(t *testing.T) {
	sctx := newSharedContext("s1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := sctx.WaitForFinal(ctx); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestFinalResultLastWriteWins(t *testing.T) {
	sctx := newSharedContext("s1")
	sctx.Publish(NewEvent(EventFinal, "a", map[string]any{"content": "first"}))
	sctx.Publish(NewEvent(EventFinal, "a", map[string]any{"content": "second"}))

	final, ok := sctx.FinalResult()
	if !ok {
		t.Fatal("expected final result")
	}
	if payload := final.(map[string]any); payload["content"] != "second" {
		t.Fatalf("final = %v", final)
	}
	if got := sctx.Statistics().TotalEvents; got != 2 {
		t.Fatalf("TotalEvents = %d, want 2", got)
	}
}

func TestNonMessagePayloadIgnoredByMessageProjection(t *testing.T) {
	sctx := newSharedContext("s1")
	// A message event with an unexpected payload shape lands in the log
	// but not in the projection.
	sctx.Publish(NewEvent(EventMessage, "a", 42))

	if got := len(sctx.Messages()); got != 0 {
		t.Fatalf("messages = %d, want 0", got)
	}
	if got := len(sctx.Contributions()); got != 1 {
		t.Fatalf("contributions = %d, want 1", got)
	}
}
