// Package bus carries messages between channel adapters and the agent
// gateway over buffered channels.
package bus

import (
	"sync"
	"time"
)

// InboundMessage is a message arriving from a human client, normalized
// across channel adapters.
type InboundMessage struct {
	Channel   string // adapter name, e.g. "slack", "cli"
	SenderID  string
	ChatID    string // adapter-native conversation key
	SessionID string // agent session to route into; empty = adapter default
	AgentID   string // target agent; empty = gateway default
	Content   string
	Timestamp time.Time
}

// OutboundMessage is a reply heading back to a human client.
type OutboundMessage struct {
	Channel   string
	ChatID    string
	SessionID string
	Content   string
}

// Bus is a simple fan-in/fan-out hub: adapters publish inbound messages
// and subscribe for outbound ones addressed to their channel.
type Bus struct {
	mu       sync.RWMutex
	inbound  chan InboundMessage
	outbound map[string]chan OutboundMessage
}

func New() *Bus {
	return &Bus{
		inbound:  make(chan InboundMessage, 100),
		outbound: make(map[string]chan OutboundMessage),
	}
}

// PublishInbound hands a message to the gateway. Drops the message if
// the gateway has fallen behind, rather than blocking the adapter.
func (b *Bus) PublishInbound(msg InboundMessage) bool {
	select {
	case b.inbound <- msg:
		return true
	default:
		return false
	}
}

// Inbound returns the stream consumed by the gateway loop.
func (b *Bus) Inbound() <-chan InboundMessage {
	return b.inbound
}

// SubscribeOutbound returns the reply stream for a channel adapter,
// creating it on first use.
func (b *Bus) SubscribeOutbound(channel string) <-chan OutboundMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.outbound[channel]
	if !ok {
		ch = make(chan OutboundMessage, 100)
		b.outbound[channel] = ch
	}
	return ch
}

// DispatchOutbound routes a reply to its channel's subscriber. Replies
// for channels nobody subscribed to are dropped.
func (b *Bus) DispatchOutbound(msg OutboundMessage) bool {
	b.mu.RLock()
	ch, ok := b.outbound[msg.Channel]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}
