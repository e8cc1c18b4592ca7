// Package channels connects human clients (Slack, CLI) to the agent
// gateway through the message bus.
package channels

import (
	"context"
	"strings"
)

// Channel is a transport that delivers human messages into the bus and
// replies back out.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// senderAllowed applies an allowlist: empty list means everyone.
func senderAllowed(allowFrom []string, senderID string) bool {
	if len(allowFrom) == 0 {
		return true
	}
	for _, allowed := range allowFrom {
		if strings.EqualFold(strings.TrimSpace(allowed), strings.TrimSpace(senderID)) {
			return true
		}
	}
	return false
}
