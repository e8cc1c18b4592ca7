package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/AgentLoom/AgentLoom/internal/bus"
	"github.com/AgentLoom/AgentLoom/internal/config"
)

// SlackChannel connects a Slack workspace over Socket Mode. Inbound
// messages and app mentions flow into the bus; outbound replies are
// posted back to the originating channel.
type SlackChannel struct {
	cfg    config.SlackConfig
	bus    *bus.Bus
	client *socketmode.Client
	api    *slack.Client
}

func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.Bus) *SlackChannel {
	return &SlackChannel{cfg: cfg, bus: messageBus}
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	if strings.TrimSpace(c.cfg.BotToken) == "" || strings.TrimSpace(c.cfg.AppToken) == "" {
		return fmt.Errorf("slack channel requires botToken and appToken")
	}

	c.api = slack.New(c.cfg.BotToken, slack.OptionAppLevelToken(c.cfg.AppToken))
	c.client = socketmode.New(c.api)

	go c.consumeEvents(ctx)
	go c.consumeOutbound(ctx)
	go func() {
		if err := c.client.RunContext(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Slack socket mode stopped", "error", err)
		}
	}()
	return nil
}

func (c *SlackChannel) Stop() error { return nil }

func (c *SlackChannel) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.client.Events:
			if !ok {
				return
			}
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			if evt.Request != nil {
				c.client.Ack(*evt.Request)
			}
			ev, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok || ev.Type != slackevents.CallbackEvent {
				continue
			}
			switch in := ev.InnerEvent.Data.(type) {
			case *slackevents.MessageEvent:
				if in == nil || in.BotID != "" || in.SubType != "" {
					continue
				}
				c.handleInbound(in.User, in.Channel, in.Text)
			case *slackevents.AppMentionEvent:
				if in == nil {
					continue
				}
				c.handleInbound(in.User, in.Channel, in.Text)
			}
		}
	}
}

func (c *SlackChannel) handleInbound(senderID, chatID, text string) {
	if !senderAllowed(c.cfg.AllowFrom, senderID) {
		slog.Debug("Slack message dropped", "sender", senderID)
		return
	}
	delivered := c.bus.PublishInbound(bus.InboundMessage{
		Channel:   c.Name(),
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   text,
		Timestamp: time.Now(),
	})
	if !delivered {
		slog.Warn("Slack inbound dropped, bus full", "chat", chatID)
	}
}

func (c *SlackChannel) consumeOutbound(ctx context.Context) {
	replies := c.bus.SubscribeOutbound(c.Name())
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-replies:
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			_, _, err := c.api.PostMessageContext(ctx, msg.ChatID,
				slack.MsgOptionText(msg.Content, false))
			if err != nil {
				slog.Warn("Slack post failed", "chat", msg.ChatID, "error", err)
			}
		}
	}
}
