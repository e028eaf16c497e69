package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
)

// CacheInvalidationService sweeps cached HTTP responses when fountain events arrive. The writer
// already hid them by bumping generations; the sweep frees the memory before the TTL does.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelFountainUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to fountain updates: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	<-s.done
	log.Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.FountainEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event != nil {
				s.handleEvent(event)
			}
		}
	}
}

// handleEvent drops the responses of the event's fountain, and the list responses when a
// fountain was added.
func (s *CacheInvalidationService) handleEvent(event *entities.FountainEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.InvalidateFountainCache(ctx, event.FountainID); err != nil {
		log.Warn().Err(err).Int64("fountain_id", event.FountainID).Msg("failed to invalidate fountain cache")
	}
	if event.EventType == entities.FountainEventCreated {
		if err := s.InvalidateListCaches(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate list caches")
		}
	}
}

// InvalidateListCaches drops every cached nearest and search response
func (s *CacheInvalidationService) InvalidateListCaches(ctx context.Context) error {
	for _, group := range []string{providers.HTTPCacheGroupNearest, providers.HTTPCacheGroupSearch} {
		pattern := providers.HTTPCacheGroupPattern(group)
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
		}
	}
	return nil
}

// InvalidateFountainCache drops the cached responses of one fountain
func (s *CacheInvalidationService) InvalidateFountainCache(ctx context.Context, fountainID int64) error {
	pattern := providers.HTTPCacheGroupPattern(providers.HTTPCacheFountainGroup(fountainID))
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate fountain cache: %w", err)
	}
	log.Debug().Int64("fountain_id", fountainID).Msg("invalidated fountain cache")
	return nil
}
