// Package relay defines the interface for outbound delivery backends used to
// forward messages captured by Mailpit.
package relay

import (
	"context"

	"github.com/shineum/mailpit-go/message"
)

// Provider is the interface that outbound delivery backends must implement.
type Provider interface {
	// Send delivers msg to the given addresses.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg *message.Message, to []string) error

	// Name returns the human-readable name of this provider.
	Name() string
}
