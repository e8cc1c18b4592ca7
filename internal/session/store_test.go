package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/AgentLoom/AgentLoom/internal/agenterr"
)

// storeFactories lets every Store implementation run the same contract
// tests.
var storeFactories = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store {
		return NewMemoryStore()
	},
	"sqlite": func(t *testing.T) Store {
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
		if err != nil {
			t.Fatalf("open sqlite store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	},
}

func TestStoreCreateAndGet(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			s := New("s1", "writer", "user-1", "")
			if err := store.Create(ctx, s); err != nil {
				t.Fatalf("Create: %v", err)
			}

			got, err := store.Get(ctx, "s1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.AgentID != "writer" || got.InitiatorID != "user-1" {
				t.Fatalf("got = %+v", got)
			}
		})
	}
}

func TestStoreDuplicateCreate(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			if err := store.Create(ctx, New("s1", "writer", "", "")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if err := store.Create(ctx, New("s1", "writer", "", "")); err == nil {
				t.Fatal("expected duplicate create to fail")
			}
		})
	}
}

func TestStoreGetUnknown(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			_, err := store.Get(context.Background(), "ghost")
			if !agenterr.IsNotFound(err) {
				t.Fatalf("err = %v, want not-found", err)
			}
			var nf *agenterr.NotFoundError
			if errors.As(err, &nf) && nf.ID != "ghost" {
				t.Fatalf("id = %s", nf.ID)
			}
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			if err := store.Create(ctx, New("s1", "writer", "", "")); err != nil {
				t.Fatalf("Create: %v", err)
			}

			title := "My Thread"
			history := []HistoryEntry{
				{Role: "user", Content: "hi", Timestamp: time.Now()},
				{Role: "assistant", Content: "hello", Timestamp: time.Now(), Metadata: map[string]any{"agent_id": "writer"}},
			}
			metrics := Metrics{ToolCalls: 3, ErrorCount: 1, TotalTokens: 250}

			updated, err := store.Update(ctx, "s1", Delta{
				Title:   &title,
				History: history,
				Metrics: &metrics,
			})
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if updated.Title != "My Thread" {
				t.Fatalf("Title = %q", updated.Title)
			}
			if len(updated.History) != 2 {
				t.Fatalf("History = %d entries", len(updated.History))
			}
			if updated.Metrics.ToolCalls != 3 || updated.Metrics.ErrorCount != 1 {
				t.Fatalf("Metrics = %+v", updated.Metrics)
			}

			// A nil history delta leaves the stored history alone.
			again, err := store.Update(ctx, "s1", Delta{Metrics: &Metrics{TotalTokens: 300}})
			if err != nil {
				t.Fatalf("second Update: %v", err)
			}
			if len(again.History) != 2 {
				t.Fatalf("History after partial update = %d entries", len(again.History))
			}
			if again.Metrics.TotalTokens != 300 {
				t.Fatalf("Metrics after partial update = %+v", again.Metrics)
			}
		})
	}
}

func TestStoreUpdateUnknown(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			title := "x"
			if _, err := store.Update(context.Background(), "ghost", Delta{Title: &title}); !agenterr.IsNotFound(err) {
				t.Fatalf("err = %v, want not-found", err)
			}
		})
	}
}

func TestStoreListAndChildren(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			parent := New("parent", "writer", "user-1", "")
			parent.CreatedAt = parent.CreatedAt.Add(-2 * time.Second)
			childA := New("child-a", "helper", "writer", "parent")
			childA.CreatedAt = childA.CreatedAt.Add(-time.Second)
			childB := New("child-b", "editor", "writer", "parent")

			for _, s := range []*Session{parent, childA, childB} {
				if err := store.Create(ctx, s); err != nil {
					t.Fatalf("Create %s: %v", s.ID, err)
				}
			}

			all, err := store.List(ctx, "")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("List = %d, want 3", len(all))
			}
			if all[0].ID != "parent" {
				t.Fatalf("order = %s first", all[0].ID)
			}

			helpers, err := store.List(ctx, "helper")
			if err != nil {
				t.Fatalf("List(helper): %v", err)
			}
			if len(helpers) != 1 || helpers[0].ID != "child-a" {
				t.Fatalf("List(helper) = %+v", helpers)
			}

			children, err := store.Children(ctx, "parent")
			if err != nil {
				t.Fatalf("Children: %v", err)
			}
			if len(children) != 2 {
				t.Fatalf("Children = %d, want 2", len(children))
			}
		})
	}
}

func TestStoreDelete(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			if err := store.Create(ctx, New("s1", "writer", "", "")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if err := store.Delete(ctx, "s1"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := store.Get(ctx, "s1"); !agenterr.IsNotFound(err) {
				t.Fatalf("err = %v, want not-found", err)
			}
			if err := store.Delete(ctx, "s1"); !agenterr.IsNotFound(err) {
				t.Fatalf("second delete err = %v, want not-found", err)
			}
		})
	}
}

func TestStoreHistoryMetadataRoundTrip(t *testing.T) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			if err := store.Create(ctx, New("s1", "writer", "", "")); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if _, err := store.Update(ctx, "s1", Delta{
				History: []HistoryEntry{{
					Role:     "metadata",
					Metadata: map[string]any{"type": "snapshot", "snapshot": `{"x":1}`},
				}},
			}); err != nil {
				t.Fatalf("Update: %v", err)
			}

			got, err := store.Get(ctx, "s1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			meta := got.History[0].Metadata
			if meta["type"] != "snapshot" || meta["snapshot"] != `{"x":1}` {
				t.Fatalf("metadata = %v", meta)
			}
		})
	}
}
