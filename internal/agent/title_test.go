package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/AgentLoom/AgentLoom/internal/provider"
	"github.com/AgentLoom/AgentLoom/internal/session"
)

func seedSessionWithHistory(t *testing.T, env *testEnv, id, userContent string) {
	t.Helper()
	ctx := context.Background()
	if err := env.sessions.Create(ctx, session.New(id, "writer", "user-1", "")); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := env.sessions.Update(ctx, id, session.Delta{
		History: []session.HistoryEntry{
			{Role: "user", Content: userContent},
			{Role: "assistant", Content: "sure"},
		},
	}); err != nil {
		t.Fatalf("seed history: %v", err)
	}
}

func TestGenerateTitle(t *testing.T) {
	prov := &scriptedProvider{responses: []*provider.ChatResponse{
		{Content: `"Trip Planning Help"`},
	}}
	env := newTestEnv(t, prov)
	seedSessionWithHistory(t, env, "s1", "help me plan a trip to Lisbon")

	title, err := env.machine.GenerateTitle(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}
	if title != "Trip Planning Help" {
		t.Fatalf("title = %q", title)
	}

	sess, err := env.sessions.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Title != "Trip Planning Help" {
		t.Fatalf("stored title = %q", sess.Title)
	}
}

func TestGenerateTitleTruncatesLongInput(t *testing.T) {
	prov := &scriptedProvider{responses: []*provider.ChatResponse{
		{Content: "Long Request"},
	}}
	env := newTestEnv(t, prov)
	seedSessionWithHistory(t, env, "s1", strings.Repeat("x", 1000))

	if _, err := env.machine.GenerateTitle(context.Background(), "s1"); err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}

	sent := prov.requests[0].Messages[1].Content
	if len(sent) != titleInputLimit {
		t.Fatalf("input length = %d, want %d", len(sent), titleInputLimit)
	}
}

func TestGenerateTitleTruncatesOnRuneBoundary(t *testing.T) {
	prov := &scriptedProvider{responses: []*provider.ChatResponse{
		{Content: "Unicode Request"},
	}}
	env := newTestEnv(t, prov)
	seedSessionWithHistory(t, env, "s1", strings.Repeat("é", 400))

	if _, err := env.machine.GenerateTitle(context.Background(), "s1"); err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}

	sent := prov.requests[0].Messages[1].Content
	if !utf8.ValidString(sent) {
		t.Fatal("truncated input is not valid UTF-8")
	}
	if got := utf8.RuneCountInString(sent); got != titleInputLimit {
		t.Fatalf("rune count = %d, want %d", got, titleInputLimit)
	}
}

func TestGenerateTitleNoUserMessage(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{})
	if err := env.sessions.Create(context.Background(), session.New("empty", "writer", "user-1", "")); err != nil {
		t.Fatalf("create: %v", err)
	}

	title, err := env.machine.GenerateTitle(context.Background(), "empty")
	if err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}
	if title != "" {
		t.Fatalf("title = %q, want empty", title)
	}
	if env.provider.requestCount() != 0 {
		t.Fatal("no model call expected without user input")
	}
}

func TestGenerateTitleUnknownSession(t *testing.T) {
	env := newTestEnv(t, &scriptedProvider{})
	if _, err := env.machine.GenerateTitle(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown session")
	}
}
