package service

import (
	"context"

	"github.com/BrainstormWilly/yno-libero-vino-sub003/pkg/events"
)

// EventPublisher is the slice of pkg/events.Publisher the services use.
// Tests inject a recording fake; production wires the Kafka publisher.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Event) error
	PublishAsync(ctx context.Context, topic string, event events.Event)
}
