package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventBus writes every event to a Kafka topic, keyed by channel, and fans it out to
// in-process subscribers.
type KafkaEventBus struct {
	writer messageWriter
	local  *MemoryEventBus
}

var _ providers.EventBus = (*KafkaEventBus)(nil)

// NewKafkaEventBus creates a bus publishing to topic on brokers
func NewKafkaEventBus(brokers []string, topic string) *KafkaEventBus {
	return newKafkaEventBus(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	})
}

func newKafkaEventBus(w messageWriter) *KafkaEventBus {
	return &KafkaEventBus{writer: w, local: NewMemoryEventBus()}
}

// Publish writes the event to Kafka, then delivers it locally
func (b *KafkaEventBus) Publish(ctx context.Context, channel string, event *entities.FountainEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(channel),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to write event to kafka: %w", err)
	}

	log.Ctx(ctx).Debug().Str("channel", channel).Str("event_id", event.ID).Msg("published event to kafka")
	return b.local.Publish(ctx, channel, event)
}

// Subscribe subscribes to events published by this process
func (b *KafkaEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.FountainEvent, error) {
	return b.local.Subscribe(ctx, channel)
}

// Unsubscribe unsubscribes from a channel
func (b *KafkaEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return b.local.Unsubscribe(ctx, channel)
}

// Close flushes the writer and drops subscribers
func (b *KafkaEventBus) Close() error {
	_ = b.local.Close()
	return b.writer.Close()
}
