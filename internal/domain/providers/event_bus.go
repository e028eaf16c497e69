package providers

import (
	"context"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to fountain events
type EventBus interface {
	// Publish publishes an event to all subscribers of channel
	Publish(ctx context.Context, channel string, event *entities.FountainEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.FountainEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelFountainUpdates carries every fountain event
	EventChannelFountainUpdates = "fountain:updates"

	// EventChannelFountainPrefix is the prefix for fountain-specific channels
	EventChannelFountainPrefix = "fountain:"
)

// GetFountainChannel returns the channel name for a specific fountain
func GetFountainChannel(fountainID int64) string {
	return EventChannelFountainPrefix + entities.FountainKey(fountainID)
}

// PublishFountainEvent publishes event on the global channel and on the fountain's own channel
func PublishFountainEvent(ctx context.Context, bus EventBus, event *entities.FountainEvent) error {
	if err := bus.Publish(ctx, EventChannelFountainUpdates, event); err != nil {
		return err
	}
	return bus.Publish(ctx, GetFountainChannel(event.FountainID), event)
}
