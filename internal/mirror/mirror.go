// Package mirror streams collaboration events to Kafka so external
// consumers can observe sessions without touching the in-process bus.
package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/AgentLoom/AgentLoom/internal/collab"
)

// Envelope is the wire form of one mirrored event. The session id rides
// alongside the event so consumers can partition by conversation.
type Envelope struct {
	SessionID string            `json:"sessionId"`
	Event     collab.AgentEvent `json:"event"`
}

// Publisher writes event envelopes to an external sink.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// KafkaPublisher implements Publisher using segmentio/kafka-go.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher writing to the given topic.
// Messages are keyed by session id so one conversation stays ordered
// within a partition.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.SessionID),
		Value: data,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ChannelPublisher is a test/in-process Publisher implementation backed
// by a Go channel.
type ChannelPublisher struct {
	ch chan Envelope
}

func NewChannelPublisher() *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Envelope, 100)}
}

func (p *ChannelPublisher) Publish(ctx context.Context, env Envelope) error {
	select {
	case p.ch <- env:
	default:
	}
	return nil
}

func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}

// Envelopes returns the captured envelopes (for testing).
func (p *ChannelPublisher) Envelopes() <-chan Envelope { return p.ch }

// Mirror attaches to shared contexts and forwards every published event
// to a Publisher. One goroutine runs per attached session.
type Mirror struct {
	publisher Publisher

	mu      sync.Mutex
	cancels map[string]func()
}

func New(publisher Publisher) *Mirror {
	return &Mirror{
		publisher: publisher,
		cancels:   make(map[string]func()),
	}
}

// Attach starts forwarding events from the session's shared context.
// Attaching the same session twice is a no-op.
func (m *Mirror) Attach(ctx context.Context, sessionID string, sctx *collab.SharedContext) {
	m.mu.Lock()
	if _, ok := m.cancels[sessionID]; ok {
		m.mu.Unlock()
		return
	}
	events, unsubscribe := sctx.Subscribe(64)
	// Detach must wake the forwarding goroutine, not just drop the
	// subscription, so each attachment gets its own cancellable context.
	fctx, stop := context.WithCancel(ctx)
	m.cancels[sessionID] = func() {
		unsubscribe()
		stop()
	}
	m.mu.Unlock()

	go func() {
		for {
			select {
			case <-fctx.Done():
				m.Detach(sessionID)
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := m.publisher.Publish(fctx, Envelope{SessionID: sessionID, Event: ev}); err != nil {
					slog.Warn("Mirror publish failed", "session", sessionID, "error", err)
				}
			}
		}
	}()
}

// Detach stops forwarding for a session.
func (m *Mirror) Detach(sessionID string) {
	m.mu.Lock()
	cancel, ok := m.cancels[sessionID]
	if ok {
		delete(m.cancels, sessionID)
	}
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close detaches every session and closes the publisher.
func (m *Mirror) Close() error {
	m.mu.Lock()
	for id, cancel := range m.cancels {
		cancel()
		delete(m.cancels, id)
	}
	m.mu.Unlock()
	return m.publisher.Close()
}
