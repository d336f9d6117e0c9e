// Package push is the delivery edge between the relay and connected clients:
// one broadcast channel per tenant, fire-and-forget fan-out.
package push

import (
	"context"

	"github.com/google/uuid"
)

// ChannelFor returns the tenant's channel name.
func ChannelFor(orgID uuid.UUID) string {
	return "notifications:" + orgID.String()
}

// Status reports subscription lifecycle changes to the consumer.
type Status string

const (
	StatusSubscribed Status = "subscribed"
	StatusError      Status = "error"
	StatusTimedOut   Status = "timed_out"
	StatusClosed     Status = "closed"
)

// Publisher pushes an event payload to every subscriber of the tenant's
// channel. A nil error means the broker accepted the payload; pub/sub fan-out
// has no per-subscriber acknowledgement.
type Publisher interface {
	Publish(ctx context.Context, orgID uuid.UUID, payload []byte) error
}

// Subscription is a live attachment to one tenant's channel.
type Subscription interface {
	// Events yields raw event payloads. Closed when the subscription ends.
	Events() <-chan []byte
	// Status yields lifecycle notifications, starting with StatusSubscribed.
	// Closed when the subscription ends.
	Status() <-chan Status
	// Close detaches from the channel. Safe to call more than once.
	Close() error
}

// Subscriber opens per-tenant subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, orgID uuid.UUID) (Subscription, error)
}
