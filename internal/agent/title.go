package agent

import (
	"context"
	"strings"

	"github.com/AgentLoom/AgentLoom/internal/provider"
	"github.com/AgentLoom/AgentLoom/internal/session"
)

const titleInputLimit = 200

// GenerateTitle produces a short human-readable title for a session from
// its most recent user message and stores it on the session record. It
// is invoked explicitly, typically after the first completed turn of a
// fresh session.
func (m *StepMachine) GenerateTitle(ctx context.Context, sessionID string) (string, error) {
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}

	input := lastUserContent(sess.History)
	if input == "" {
		return "", nil
	}
	if runes := []rune(input); len(runes) > titleInputLimit {
		input = string(runes[:titleInputLimit])
	}

	resp, err := m.provider.Chat(ctx, &provider.ChatRequest{
		Model:     m.model,
		MaxTokens: 24,
		Messages: []provider.Message{
			{Role: "system", Content: "You title conversations. Produce a plain title of at most 6 words. No quotes, no punctuation at the end."},
			{Role: "user", Content: input},
		},
	})
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Content), `"'`))
	if title == "" {
		return "", nil
	}

	if _, err := m.sessions.Update(ctx, sessionID, session.Delta{Title: &title}); err != nil {
		return "", err
	}
	return title, nil
}

func lastUserContent(history []session.HistoryEntry) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return history[i].Content
		}
	}
	return ""
}
