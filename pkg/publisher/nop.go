package publisher

import (
	"context"
)

// NopPublisher discards events. It is used when no event sink is configured.
type NopPublisher struct{}

// NewNopPublisher creates a new no-op publisher.
func NewNopPublisher() *NopPublisher {
	return &NopPublisher{}
}

func (n *NopPublisher) Publish(context.Context, *Event) error {
	return nil
}

func (n *NopPublisher) Close() error {
	return nil
}
