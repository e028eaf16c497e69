package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// ErrCacheMiss is returned by Get when the key is absent
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value from cache; ErrCacheMiss if absent
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes values from cache
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// Increment bumps a counter, starting its expiration window on first use. A window of zero
	// or less keeps the counter without expiration.
	Increment(ctx context.Context, key string, windowSeconds int) (int64, error)
}

// HTTPCachePrefix namespaces cached HTTP responses
const HTTPCachePrefix = "http:cache:"

const (
	HTTPCacheGroupNearest = "nearest"
	HTTPCacheGroupSearch  = "search"
)

// HTTPCacheFountainGroup is the response cache group of one fountain's resources
func HTTPCacheFountainGroup(fountainID int64) string {
	return "fountain:" + entities.FountainKey(fountainID)
}

// HTTPCacheGroupPattern matches every cached response of group
func HTTPCacheGroupPattern(group string) string {
	return HTTPCachePrefix + group + ":*"
}

// FountainListsGenerationKey holds the number of committed writes to any fountain. Cached nearest
// and search responses are keyed by it.
const FountainListsGenerationKey = "fountain:gen:lists"

// FountainGenerationKey holds the number of committed writes to one fountain. Cached copies of the
// fountain record and its responses are keyed by the generation, so a bump hides all earlier copies.
func FountainGenerationKey(fountainID int64) string {
	return "fountain:gen:" + entities.FountainKey(fountainID)
}

// Generation reads a generation counter, zero when it was never bumped. Read it before loading
// the state to be cached.
func Generation(ctx context.Context, cache CacheProvider, key string) (int64, error) {
	raw, err := cache.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	gen, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid generation %s: %w", key, err)
	}
	return gen, nil
}

// BumpGeneration advances a generation counter after a committed write and returns the new value
func BumpGeneration(ctx context.Context, cache CacheProvider, key string) (int64, error) {
	gen, err := cache.Increment(ctx, key, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to bump generation %s: %w", key, err)
	}
	return gen, nil
}
