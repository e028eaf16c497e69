package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
)

// CachedFountainAdapter wraps a FountainRepository with read-through caching of single fountains
type CachedFountainAdapter struct {
	repositories.FountainRepository
	cache      providers.CacheProvider
	ttlSeconds int
	metrics    *observability.Metrics
	async      bool
}

var _ repositories.FountainRepository = (*CachedFountainAdapter)(nil)

// NewCachedFountainAdapter creates a new cached fountain adapter
func NewCachedFountainAdapter(adapter repositories.FountainRepository, cache providers.CacheProvider, ttlSeconds int) *CachedFountainAdapter {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	return &CachedFountainAdapter{
		FountainRepository: adapter,
		cache:              cache,
		ttlSeconds:         ttlSeconds,
		async:              true,
	}
}

// WithMetrics records cache hits and misses
func (a *CachedFountainAdapter) WithMetrics(metrics *observability.Metrics) *CachedFountainAdapter {
	a.metrics = metrics
	return a
}

// Synchronous makes cache fills happen before GetByID returns
func (a *CachedFountainAdapter) Synchronous() *CachedFountainAdapter {
	a.async = false
	return a
}

// FountainCacheKey is the cache key of one fountain record at a generation
func FountainCacheKey(id, generation int64) string {
	return fmt.Sprintf("fountain:%d:g%d", id, generation)
}

// GetByID retrieves a fountain by ID with caching. The generation is read before the record is
// loaded, so a fill that races a write lands under a generation nobody reads anymore.
func (a *CachedFountainAdapter) GetByID(ctx context.Context, id int64) (*entities.Fountain, error) {
	gen, err := providers.Generation(ctx, a.cache, providers.FountainGenerationKey(id))
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("fountain_id", id).Msg("fountain cache unavailable")
		return a.FountainRepository.GetByID(ctx, id)
	}
	key := FountainCacheKey(id, gen)

	if cached, err := a.cache.Get(ctx, key); err == nil {
		var fountain entities.Fountain
		if err := json.Unmarshal(cached, &fountain); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "fountain")
			return &fountain, nil
		}
		log.Ctx(ctx).Warn().Err(err).Int64("fountain_id", id).Msg("failed to decode cached fountain")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "fountain")

	fountain, err := a.FountainRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(fountain)
	if err != nil {
		return fountain, nil
	}
	fill := func() {
		setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.cache.Set(setCtx, key, data, a.ttlSeconds); err != nil {
			log.Warn().Err(err).Int64("fountain_id", id).Msg("failed to cache fountain")
		}
	}
	if a.async {
		go fill()
	} else {
		fill()
	}
	return fountain, nil
}

// ApplyChanges updates the fountain and drops its cached copy
func (a *CachedFountainAdapter) ApplyChanges(ctx context.Context, id int64, changes entities.FountainChanges, lastUpdated time.Time) error {
	if err := a.FountainRepository.ApplyChanges(ctx, id, changes, lastUpdated); err != nil {
		return err
	}
	return a.Invalidate(ctx, id)
}

// SetRating updates the rating and drops the cached copy
func (a *CachedFountainAdapter) SetRating(ctx context.Context, id int64, aggregate entities.RatingAggregate, lastUpdated time.Time) error {
	if err := a.FountainRepository.SetRating(ctx, id, aggregate, lastUpdated); err != nil {
		return err
	}
	return a.Invalidate(ctx, id)
}

// Invalidate bumps the fountain's generation and the list generation, which hides its cached
// record and every cached response that shows it. Call it after the write commits.
func (a *CachedFountainAdapter) Invalidate(ctx context.Context, id int64) error {
	gen, err := providers.BumpGeneration(ctx, a.cache, providers.FountainGenerationKey(id))
	if err != nil {
		return err
	}
	if _, err := providers.BumpGeneration(ctx, a.cache, providers.FountainListsGenerationKey); err != nil {
		return err
	}
	if err := a.cache.Delete(ctx, FountainCacheKey(id, gen-1)); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("fountain_id", id).Msg("failed to delete stale fountain record")
	}
	if err := a.cache.DeletePattern(ctx, providers.HTTPCacheGroupPattern(providers.HTTPCacheFountainGroup(id))); err != nil {
		log.Ctx(ctx).Warn().Err(err).Int64("fountain_id", id).Msg("failed to delete stale fountain responses")
	}
	return nil
}

// Prime loads the fountains with the given ids into the cache and returns how many were written
func (a *CachedFountainAdapter) Prime(ctx context.Context, ids []int64) (int, error) {
	gens := make(map[int64]int64, len(ids))
	for _, id := range ids {
		gen, err := providers.Generation(ctx, a.cache, providers.FountainGenerationKey(id))
		if err != nil {
			return 0, fmt.Errorf("failed to read generation of fountain %d: %w", id, err)
		}
		gens[id] = gen
	}

	fountains, err := a.FountainRepository.GetByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}

	primed := 0
	for _, f := range fountains {
		data, err := json.Marshal(f)
		if err != nil {
			continue
		}
		if err := a.cache.Set(ctx, FountainCacheKey(f.ID, gens[f.ID]), data, a.ttlSeconds); err != nil {
			return primed, fmt.Errorf("failed to prime fountain %d: %w", f.ID, err)
		}
		primed++
	}
	return primed, nil
}
