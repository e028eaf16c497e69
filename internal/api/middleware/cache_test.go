package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/internal/adapters/cache"
	"github.com/berez-app/berez/backend/internal/domain/providers"
	redisclient "github.com/berez-app/berez/backend/internal/infrastructure/clients/redis"
)

func newCacheMiddleware(t *testing.T) (*CacheMiddleware, providers.CacheProvider) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	c := cache.NewRedisAdapter(redisclient.Wrap(rdb))
	return NewCacheMiddleware(c, nil), c
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestCacheMiddleware_ServesUntilGenerationBumps(t *testing.T) {
	m, c := newCacheMiddleware(t)
	ctx := context.Background()
	version := 0
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strconv.Itoa(version)))
	}))

	assert.Equal(t, "MISS", get(h, "/fountains/1").Header().Get("X-Cache"))
	w := get(h, "/fountains/1")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "0", w.Body.String())

	version = 1
	_, err := providers.BumpGeneration(ctx, c, providers.FountainGenerationKey(1))
	require.NoError(t, err)
	w = get(h, "/fountains/1")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "1", w.Body.String())

	// other fountains keep their responses
	assert.Equal(t, "MISS", get(h, "/fountains/2").Header().Get("X-Cache"))
	_, err = providers.BumpGeneration(ctx, c, providers.FountainGenerationKey(1))
	require.NoError(t, err)
	assert.Equal(t, "HIT", get(h, "/fountains/2").Header().Get("X-Cache"))

	assert.Equal(t, "MISS", get(h, "/fountains/nearest?longitude=1&latitude=1").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", get(h, "/fountains/nearest?longitude=1&latitude=1").Header().Get("X-Cache"))
	_, err = providers.BumpGeneration(ctx, c, providers.FountainListsGenerationKey)
	require.NoError(t, err)
	assert.Equal(t, "MISS", get(h, "/fountains/nearest?longitude=1&latitude=1").Header().Get("X-Cache"))
}

func TestCacheMiddleware_ResponseRenderedBeforeWriteIsNotServed(t *testing.T) {
	m, c := newCacheMiddleware(t)
	ctx := context.Background()
	version := 0
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strconv.Itoa(version)))
		if version == 0 {
			// a write commits while this response is still on its way to the cache
			version = 1
			_, err := providers.BumpGeneration(ctx, c, providers.FountainGenerationKey(1))
			require.NoError(t, err)
		}
	}))

	assert.Equal(t, "0", get(h, "/fountains/1/reviews").Body.String())
	w := get(h, "/fountains/1/reviews")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "1", w.Body.String())
}

func TestCacheMiddleware_SkipsUncachedRoutes(t *testing.T) {
	m, _ := newCacheMiddleware(t)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/photos/1", "/fountains/abc", "/fountains/1/events", "/health"} {
		assert.Empty(t, get(h, path).Header().Get("X-Cache"), path)
	}
}
