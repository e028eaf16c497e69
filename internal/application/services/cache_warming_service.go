package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/internal/domain/repositories"
)

// DefaultWarmCount is how many fountains a warming pass loads into the cache
const DefaultWarmCount = 200

// FountainPrimer loads the fountains with the given ids into the read cache
type FountainPrimer interface {
	Prime(ctx context.Context, ids []int64) (int, error)
}

// CacheWarmingService preloads fountain records so the first reads after a deploy or flush hit the cache
type CacheWarmingService struct {
	fountains repositories.FountainRepository
	primer    FountainPrimer
	count     int
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(fountains repositories.FountainRepository, primer FountainPrimer, count int) *CacheWarmingService {
	if count <= 0 {
		count = DefaultWarmCount
	}
	return &CacheWarmingService{fountains: fountains, primer: primer, count: count}
}

// WarmCache loads the first fountains in id order into the cache
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	fountains, err := s.fountains.List(ctx, s.count, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list fountains: %w", err)
	}
	ids := make([]int64, len(fountains))
	for i, f := range fountains {
		ids[i] = f.ID
	}
	n, err := s.primer.Prime(ctx, ids)
	if err != nil {
		return n, err
	}
	log.Ctx(ctx).Debug().Int("fountains", n).Msg("cache warmed")
	return n, nil
}

// StartPeriodicWarming warms once, then again every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if _, err := s.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopping cache warming service")
				return
			case <-ticker.C:
				if _, err := s.WarmCache(ctx); err != nil {
					log.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("started periodic cache warming")
}
