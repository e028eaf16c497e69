package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/internal/adapters/events"
	"github.com/berez-app/berez/backend/internal/api/handlers"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
)

// runStream serves req until publish has run and the client goes away, then returns the recorded stream
func runStream(t *testing.T, serve http.HandlerFunc, req *http.Request, publish func()) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		serve(w, req.WithContext(ctx))
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	publish()
	time.Sleep(200 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}
	return w
}

func fountainAt(id int64, lon, lat float64) *entities.Fountain {
	return &entities.Fountain{ID: id, Longitude: lon, Latitude: lat}
}

func TestSSEHandler_StreamFountainUpdates(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandler(bus)

	req := httptest.NewRequest(http.MethodGet, "/fountains/5/events", nil)
	req.SetPathValue("id", "5")

	w := runStream(t, handler.StreamFountainUpdates, req, func() {
		other := entities.NewFountainEvent(fountainAt(6, 34.78, 32.08), entities.FountainEventUpdated, nil)
		require.NoError(t, providers.PublishFountainEvent(context.Background(), bus, other))

		event := entities.NewFountainEvent(fountainAt(5, 34.78, 32.08), entities.FountainEventRatingUpdated,
			map[string]interface{}{"number_of_ratings": 3})
		require.NoError(t, providers.PublishFountainEvent(context.Background(), bus, event))
	})

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, `"fountain_id":5`)
	assert.Contains(t, body, "event: rating_updated")
	assert.NotContains(t, body, `"fountain_id":6`)
	assert.Zero(t, handler.ClientCount())
}

func TestSSEHandler_StreamUpdatesWithinRadius(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandler(bus)

	req := httptest.NewRequest(http.MethodGet, "/events?latitude=32.08&longitude=34.78&radius_km=2", nil)

	w := runStream(t, handler.StreamUpdates, req, func() {
		near := entities.NewFountainEvent(fountainAt(1, 34.781, 32.081), entities.FountainEventCreated, nil)
		far := entities.NewFountainEvent(fountainAt(2, 35.21, 31.77), entities.FountainEventCreated, nil)
		require.NoError(t, providers.PublishFountainEvent(context.Background(), bus, far))
		require.NoError(t, providers.PublishFountainEvent(context.Background(), bus, near))
	})

	body := w.Body.String()
	assert.Contains(t, body, `"radius_km":2`)
	assert.Contains(t, body, "event: fountain_created")
	assert.Contains(t, body, `"fountain_id":1`)
	assert.NotContains(t, body, `"fountain_id":2`)
}

func TestSSEHandler_StreamUpdatesUnfiltered(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandler(bus).WithHeartbeat(50 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := runStream(t, handler.StreamUpdates, req, func() {
		far := entities.NewFountainEvent(fountainAt(2, 35.21, 31.77), entities.FountainEventReportCreated, nil)
		require.NoError(t, providers.PublishFountainEvent(context.Background(), bus, far))
	})

	body := w.Body.String()
	assert.Contains(t, body, "event: report_created")
	assert.Contains(t, body, "event: heartbeat")
}

func TestSSEHandler_RejectsBadParameters(t *testing.T) {
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	handler := handlers.NewSSEHandler(bus)

	req := httptest.NewRequest(http.MethodGet, "/fountains/abc/events", nil)
	req.SetPathValue("id", "abc")
	w := httptest.NewRecorder()
	handler.StreamFountainUpdates(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, query := range []string{
		"latitude=32.08",
		"latitude=95&longitude=34.78",
		"latitude=32.08&longitude=34.78&radius_km=-1",
	} {
		w := httptest.NewRecorder()
		handler.StreamUpdates(w, httptest.NewRequest(http.MethodGet, "/events?"+query, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
}
