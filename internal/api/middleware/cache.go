package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"

	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
)

// CacheConfig holds cache configuration for one response group
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
}

// CacheMiddleware caches successful GET responses in groups that fountain events can invalidate
type CacheMiddleware struct {
	cache        providers.CacheProvider
	groupConfigs map[string]CacheConfig
	fountainTTL  int
	metrics      *observability.Metrics
}

// NewCacheMiddleware creates a new cache middleware
func NewCacheMiddleware(cache providers.CacheProvider, metrics *observability.Metrics) *CacheMiddleware {
	return &CacheMiddleware{
		cache: cache,
		groupConfigs: map[string]CacheConfig{
			providers.HTTPCacheGroupNearest: {TTLSeconds: 60, Enabled: true},
			providers.HTTPCacheGroupSearch:  {TTLSeconds: 120, Enabled: true},
		},
		fountainTTL: 300,
		metrics:     metrics,
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		group, fountainID, config := m.routeGroup(r.URL.Path)
		if !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		logger := observability.LoggerFromContext(r.Context())

		// responses live under the current generation of what they show; a committed write bumps
		// it, so a response rendered before the write is never served after it
		genKey := providers.FountainListsGenerationKey
		if fountainID > 0 {
			genKey = providers.FountainGenerationKey(fountainID)
		}
		gen, err := providers.Generation(r.Context(), m.cache, genKey)
		if err != nil {
			logger.Warn().Err(err).Str("generation", genKey).Msg("response cache unavailable")
			next.ServeHTTP(w, r)
			return
		}
		cacheKey := generateCacheKey(group+":g"+strconv.FormatInt(gen, 10), r)

		if cached, err := m.cache.Get(r.Context(), cacheKey); err == nil {
			observability.RecordCacheHit(r.Context(), m.metrics, "http")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}

		observability.RecordCacheMiss(r.Context(), m.metrics, "http")
		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), cacheKey, recorder.body.Bytes(), config.TTLSeconds); err != nil {
				logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache response")
			}
		}
	})
}

// routeGroup classifies a path into its invalidation group and, for one fountain's resources,
// the fountain id. Only fountain reads are cached.
func (m *CacheMiddleware) routeGroup(path string) (string, int64, CacheConfig) {
	switch path {
	case "/fountains/nearest":
		return providers.HTTPCacheGroupNearest, 0, m.groupConfigs[providers.HTTPCacheGroupNearest]
	case "/fountains/search":
		return providers.HTTPCacheGroupSearch, 0, m.groupConfigs[providers.HTTPCacheGroupSearch]
	}

	rest, ok := strings.CutPrefix(path, "/fountains/")
	if !ok {
		return "", 0, CacheConfig{}
	}
	idPart, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, CacheConfig{}
	}
	switch sub {
	case "", "reviews", "reports":
		return providers.HTTPCacheFountainGroup(id), id, CacheConfig{TTLSeconds: m.fountainTTL, Enabled: true}
	}
	return "", 0, CacheConfig{}
}

// generateCacheKey keys a response by group, path and raw query
func generateCacheKey(group string, r *http.Request) string {
	key := r.Method + ":" + r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	hash := sha256.Sum256([]byte(key))
	return providers.HTTPCachePrefix + group + ":" + hex.EncodeToString(hash[:])
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// WriteHeader captures the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

// Write captures the response body and writes to the client
func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
