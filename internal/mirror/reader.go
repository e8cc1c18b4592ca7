package mirror

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Tail consumes mirrored envelopes from the topic and delivers them on
// the returned channel until the context is cancelled. Malformed
// records are logged and skipped.
func Tail(ctx context.Context, brokers []string, topic, consumerGroup string) <-chan Envelope {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  consumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	out := make(chan Envelope, 100)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("Mirror tail: read error", "topic", topic, "error", err)
				continue
			}
			var env Envelope
			if err := json.Unmarshal(msg.Value, &env); err != nil {
				slog.Warn("Mirror tail: bad envelope", "topic", topic, "error", err)
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
