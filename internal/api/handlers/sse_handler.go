package handlers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// DefaultHeartbeat is how often idle streams receive a heartbeat event
const DefaultHeartbeat = 30 * time.Second

// SSEHandler handles Server-Sent Events for real-time fountain updates
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	clients   map[string]map[chan *entities.FountainEvent]bool
	mu        sync.RWMutex
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: DefaultHeartbeat,
		clients:   make(map[string]map[chan *entities.FountainEvent]bool),
	}
}

// WithHeartbeat overrides the heartbeat interval
func (h *SSEHandler) WithHeartbeat(d time.Duration) *SSEHandler {
	if d > 0 {
		h.heartbeat = d
	}
	return h
}

// regionFilter keeps events within radiusKm of a point
type regionFilter struct {
	lat, lon, radiusKm float64
}

func (f *regionFilter) match(event *entities.FountainEvent) bool {
	if f == nil {
		return true
	}
	return haversineDistance(f.lat, f.lon, event.Latitude, event.Longitude) <= f.radiusKm
}

// StreamFountainUpdates handles GET /fountains/{id}/events
func (h *SSEHandler) StreamFountainUpdates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	h.stream(w, r, providers.GetFountainChannel(id), nil, map[string]interface{}{
		"fountain_id": id,
	})
}

// StreamUpdates handles GET /events with optional latitude, longitude and radius_km filters
func (h *SSEHandler) StreamUpdates(w http.ResponseWriter, r *http.Request) {
	var filter *regionFilter
	hello := map[string]interface{}{}

	q := r.URL.Query()
	if q.Get("latitude") != "" || q.Get("longitude") != "" {
		lat, err := queryFloat(r, "latitude")
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		lon, err := queryFloat(r, "longitude")
		if err != nil {
			respondWithError(w, r, err)
			return
		}
		if err := entities.ValidateCoordinates(lon, lat); err != nil {
			respondWithError(w, r, err)
			return
		}
		radius := 5.0
		if q.Get("radius_km") != "" {
			if radius, err = queryFloat(r, "radius_km"); err != nil {
				respondWithError(w, r, err)
				return
			}
			if radius <= 0 {
				respondWithError(w, r, apperrors.NewValidationError("radius_km must be positive"))
				return
			}
		}
		filter = &regionFilter{lat: lat, lon: lon, radiusKm: radius}
		hello["latitude"], hello["longitude"], hello["radius_km"] = lat, lon, radius
	}

	h.stream(w, r, providers.EventChannelFountainUpdates, filter, hello)
}

func (h *SSEHandler) stream(w http.ResponseWriter, r *http.Request, channel string, filter *regionFilter, hello map[string]interface{}) {
	logger := observability.LoggerFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, r, apperrors.NewInternalError("streaming not supported", nil))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	eventChan, err := h.eventBus.Subscribe(ctx, channel)
	if err != nil {
		respondWithError(w, r, apperrors.NewExternalError("event bus unavailable", err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	clientChan := make(chan *entities.FountainEvent, 50)
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	hello["timestamp"] = time.Now().UTC()
	h.sendEvent(w, "connected", hello)
	flusher.Flush()

	go h.forwardEvents(ctx, eventChan, clientChan, filter)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str("channel", channel).Msg("client disconnected from event stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{"timestamp": time.Now().UTC()})
			flusher.Flush()
		case event := <-clientChan:
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// forwardEvents copies matching events to the client, dropping them when the client lags
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.FountainEvent, clientChan chan<- *entities.FountainEvent, filter *regionFilter) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil || !filter.match(event) {
				continue
			}
			select {
			case clientChan <- event:
			default:
			}
		}
	}
}

func (h *SSEHandler) registerClient(channel string, clientChan chan *entities.FountainEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.FountainEvent]bool)
	}
	h.clients[channel][clientChan] = true
}

func (h *SSEHandler) unregisterClient(channel string, clientChan chan *entities.FountainEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// haversineDistance calculates the distance between two points in kilometers
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// ClientCount returns the number of connected clients
func (h *SSEHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
