package agent

import (
	"context"
	"testing"

	"github.com/AgentLoom/AgentLoom/internal/agenterr"
)

func TestDefinitionStoreRegisterAndGet(t *testing.T) {
	store := NewMemoryDefinitionStore()
	ctx := context.Background()

	def := &AgentDefinition{ID: "researcher", Name: "Researcher", Persona: "Digs deep."}
	if err := store.Register(ctx, def); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := store.Get(ctx, "researcher")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Researcher" {
		t.Fatalf("Name = %s", got.Name)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestDefinitionStoreGetUnknown(t *testing.T) {
	store := NewMemoryDefinitionStore()
	if _, err := store.Get(context.Background(), "ghost"); !agenterr.IsNotFound(err) {
		t.Fatalf("err = %v, want not-found", err)
	}
}

func TestDefinitionStoreDuplicateRegister(t *testing.T) {
	store := NewMemoryDefinitionStore()
	ctx := context.Background()

	if err := store.Register(ctx, &AgentDefinition{ID: "a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := store.Register(ctx, &AgentDefinition{ID: "a"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestDefinitionUpdateWhitelist(t *testing.T) {
	store := NewMemoryDefinitionStore()
	ctx := context.Background()

	if err := store.Register(ctx, &AgentDefinition{
		ID:          "a",
		Name:        "Alpha",
		Persona:     "First.",
		Temperature: 0.5,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	newName := "Alpha Prime"
	newTemp := 0.1
	updated, err := store.Update(ctx, "a", DefinitionDelta{
		Name:        &newName,
		Temperature: &newTemp,
		Tools:       []string{"read_file"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Alpha Prime" || updated.Temperature != 0.1 {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.Persona != "First." {
		t.Fatalf("Persona changed: %s", updated.Persona)
	}
	if updated.ID != "a" {
		t.Fatalf("ID changed: %s", updated.ID)
	}
	if len(updated.Tools) != 1 || updated.Tools[0] != "read_file" {
		t.Fatalf("Tools = %v", updated.Tools)
	}
}

func TestToolEnabled(t *testing.T) {
	open := AgentDefinition{ID: "open"}
	if !open.ToolEnabled("anything") {
		t.Fatal("empty tool list should allow everything")
	}

	narrow := AgentDefinition{ID: "narrow", Tools: []string{"read_file"}}
	if !narrow.ToolEnabled("read_file") {
		t.Fatal("listed tool should be enabled")
	}
	if narrow.ToolEnabled("write_file") {
		t.Fatal("unlisted tool should be disabled")
	}
}
