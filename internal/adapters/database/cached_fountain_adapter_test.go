package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/internal/adapters/cache"
	"github.com/berez-app/berez/backend/internal/adapters/database"
	"github.com/berez-app/berez/backend/internal/adapters/database/dbtest"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	redisclient "github.com/berez-app/berez/backend/internal/infrastructure/clients/redis"
)

func newCachedStore(t *testing.T) (*database.Store, *database.CachedFountainAdapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := dbtest.NewStore(t)
	cached := store.WithFountainCache(cache.NewRedisAdapter(redisclient.Wrap(rdb)), 60).Synchronous()
	return store, cached, mr
}

func TestCachedFountainAdapter_ReadThrough(t *testing.T) {
	store, _, mr := newCachedStore(t)
	ctx := context.Background()
	require.NoError(t, store.Fountains().Create(ctx, newFountain(1, 34.78, 32.08)))

	_, err := store.Fountains().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, mr.Exists(database.FountainCacheKey(1, 0)))

	// a write that bypasses the decorator leaves the cached copy in place
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		address := "Changed"
		return tx.Fountains().ApplyChanges(ctx, 1, entities.FountainChanges{Address: &address}, time.Now().UTC())
	}))
	got, err := store.Fountains().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Rothschild Blvd", got.Address)

	_, err = store.Fountains().GetByID(ctx, 404)
	assert.Error(t, err)
	assert.False(t, mr.Exists(database.FountainCacheKey(404, 0)))
}

func TestCachedFountainAdapter_WritesInvalidate(t *testing.T) {
	store, cached, mr := newCachedStore(t)
	ctx := context.Background()
	require.NoError(t, store.Fountains().Create(ctx, newFountain(1, 34.78, 32.08)))

	_, err := store.Fountains().GetByID(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, mr.Set(providers.HTTPCachePrefix+providers.HTTPCacheFountainGroup(1)+":g0:abc", "{}"))
	require.NoError(t, store.Fountains().SetRating(ctx, 1, entities.RatingAggregate{Count: 1, Average: 4}, time.Now().UTC()))
	assert.False(t, mr.Exists(database.FountainCacheKey(1, 0)))
	assert.False(t, mr.Exists(providers.HTTPCachePrefix+providers.HTTPCacheFountainGroup(1)+":g0:abc"))

	got, err := store.Fountains().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.NumberOfRatings)
	assert.True(t, mr.Exists(database.FountainCacheKey(1, 1)))

	require.NoError(t, cached.Invalidate(ctx, 1))
	assert.False(t, mr.Exists(database.FountainCacheKey(1, 1)))
	assert.Equal(t, "2", mustGet(t, mr, providers.FountainGenerationKey(1)))
	assert.Equal(t, "2", mustGet(t, mr, providers.FountainListsGenerationKey))
}

// a fill that finishes after a write stores the old record under a generation no read uses
func TestCachedFountainAdapter_StaleFillIsUnreachable(t *testing.T) {
	store, cached, mr := newCachedStore(t)
	ctx := context.Background()
	require.NoError(t, store.Fountains().Create(ctx, newFountain(1, 34.78, 32.08)))

	stale, err := store.Fountains().GetByID(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		return tx.Fountains().SetRating(ctx, 1, entities.RatingAggregate{Count: 1, Average: 5}, time.Now().UTC())
	}))
	require.NoError(t, cached.Invalidate(ctx, 1))

	data, err := json.Marshal(stale)
	require.NoError(t, err)
	require.NoError(t, mr.Set(database.FountainCacheKey(1, 0), string(data)))

	got, err := store.Fountains().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.NumberOfRatings)
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}

func TestCachedFountainAdapter_Prime(t *testing.T) {
	store, cached, mr := newCachedStore(t)
	ctx := context.Background()
	require.NoError(t, store.Fountains().Create(ctx, newFountain(1, 34.78, 32.08)))
	require.NoError(t, store.Fountains().Create(ctx, newFountain(2, 34.79, 32.09)))
	require.NoError(t, cached.Invalidate(ctx, 2))

	n, err := cached.Prime(ctx, []int64{1, 2, 404})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, mr.Exists(database.FountainCacheKey(1, 0)))
	assert.True(t, mr.Exists(database.FountainCacheKey(2, 1)), "primed under the current generation")
	assert.Equal(t, 60*time.Second, mr.TTL(database.FountainCacheKey(2, 1)))
}
