package agent

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/AgentLoom/AgentLoom/internal/bus"
	"github.com/AgentLoom/AgentLoom/internal/provider"
	"github.com/AgentLoom/AgentLoom/internal/session"
)

// Gateway consumes inbound messages from channel adapters, runs the
// step machine for each one, and dispatches replies. Sessions are keyed
// per (channel, chat) so a human conversation keeps its thread.
type Gateway struct {
	machine      *StepMachine
	bus          *bus.Bus
	defaultAgent string

	sessionKeys map[string]string // channel+chat -> session id
}

func NewGateway(machine *StepMachine, b *bus.Bus, defaultAgent string) *Gateway {
	return &Gateway{
		machine:      machine,
		bus:          b,
		defaultAgent: defaultAgent,
		sessionKeys:  make(map[string]string),
	}
}

// Run processes inbound messages until the context is cancelled. One
// message is handled at a time; ordering within a conversation is
// preserved.
func (g *Gateway) Run(ctx context.Context) error {
	slog.Info("Gateway started", "default_agent", g.defaultAgent)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Gateway stopped")
			return ctx.Err()
		case msg := <-g.bus.Inbound():
			g.handle(ctx, msg)
		}
	}
}

func (g *Gateway) handle(ctx context.Context, msg bus.InboundMessage) {
	agentID := msg.AgentID
	if agentID == "" {
		agentID = g.defaultAgent
	}

	sessionID := msg.SessionID
	if sessionID == "" {
		key := msg.Channel + ":" + msg.ChatID
		if id, ok := g.sessionKeys[key]; ok {
			sessionID = id
		} else {
			sessionID = uuid.NewString()
			g.sessionKeys[key] = sessionID
		}
	}

	firstTurn := !g.machine.contexts.Has(sessionID)

	result, err := g.machine.Run(ctx, RunRequest{
		AgentID:     agentID,
		SessionID:   sessionID,
		InitiatorID: msg.SenderID,
		Messages: []provider.Message{{
			ID:      uuid.NewString(),
			Role:    "user",
			Content: msg.Content,
		}},
	})
	if err != nil {
		slog.Error("Turn failed", "agent", agentID, "session", sessionID, "error", err)
		g.bus.DispatchOutbound(bus.OutboundMessage{
			Channel:   msg.Channel,
			ChatID:    msg.ChatID,
			SessionID: sessionID,
			Content:   "Something went wrong handling that message.",
		})
		return
	}

	if err := g.machine.contexts.SaveToStore(ctx, g.machine.sessions, result.SessionID); err != nil {
		slog.Warn("Session persist failed", "session", result.SessionID, "error", err)
	}
	if firstTurn {
		if title, err := g.machine.GenerateTitle(ctx, result.SessionID); err != nil {
			slog.Warn("Title generation failed", "session", result.SessionID, "error", err)
		} else if title != "" {
			slog.Debug("Session titled", "session", result.SessionID, "title", title)
		}
	}

	g.bus.DispatchOutbound(bus.OutboundMessage{
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		SessionID: result.SessionID,
		Content:   result.FinalContent,
	})
}

// Sessions exposes the machine's session store to command surfaces.
func (g *Gateway) Sessions() session.Store {
	return g.machine.sessions
}
