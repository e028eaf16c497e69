package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
	redisclient "github.com/berez-app/berez/backend/internal/infrastructure/clients/redis"
)

func testEvent(id int64) *entities.FountainEvent {
	return entities.NewFountainEvent(&entities.Fountain{ID: id, Latitude: 32.1, Longitude: 34.8}, entities.FountainEventRatingUpdated, map[string]interface{}{"number_of_ratings": 1})
}

func receive(t *testing.T, ch <-chan *entities.FountainEvent) *entities.FountainEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	global, err := bus.Subscribe(ctx, providers.EventChannelFountainUpdates)
	require.NoError(t, err)
	single, err := bus.Subscribe(ctx, providers.GetFountainChannel(7))
	require.NoError(t, err)

	ev := testEvent(7)
	require.NoError(t, providers.PublishFountainEvent(ctx, bus, ev))

	assert.Equal(t, ev.ID, receive(t, global).ID)
	assert.Equal(t, ev.ID, receive(t, single).ID)

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-global
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryEventBus_CloseClosesSubscribers(t *testing.T) {
	bus := NewMemoryEventBus()
	ch, err := bus.Subscribe(context.Background(), "fountain:1")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)

	late, err := bus.Subscribe(context.Background(), "fountain:1")
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
}

func TestRedisEventBus_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bus := NewRedisEventBus(redisclient.Wrap(rdb))
	t.Cleanup(func() {
		_ = bus.Close()
		_ = rdb.Close()
	})

	ctx := context.Background()
	ch, err := bus.Subscribe(ctx, providers.GetFountainChannel(3))
	require.NoError(t, err)

	ev := testEvent(3)
	require.NoError(t, bus.Publish(ctx, providers.GetFountainChannel(3), ev))

	got := receive(t, ch)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, int64(3), got.FountainID)
	assert.Equal(t, entities.FountainEventRatingUpdated, got.EventType)
}

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestKafkaEventBus_WritesAndFansOut(t *testing.T) {
	w := &recordingWriter{}
	bus := newKafkaEventBus(w)
	ctx := context.Background()

	ch, err := bus.Subscribe(ctx, providers.EventChannelFountainUpdates)
	require.NoError(t, err)

	ev := testEvent(9)
	require.NoError(t, bus.Publish(ctx, providers.EventChannelFountainUpdates, ev))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, providers.EventChannelFountainUpdates, string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), ev.ID)
	assert.Equal(t, ev.ID, receive(t, ch).ID)
}

func TestKafkaEventBus_WriteFailure(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	bus := newKafkaEventBus(w)

	err := bus.Publish(context.Background(), "fountain:1", testEvent(1))
	assert.Error(t, err)
}
