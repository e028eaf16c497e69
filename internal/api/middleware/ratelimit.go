package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
)

// RateLimiter counts requests per client in fixed windows held in the cache
type RateLimiter struct {
	cache         providers.CacheProvider
	requests      int
	windowSeconds int
}

// NewRateLimiter allows requests per windowSeconds for each client
func NewRateLimiter(cache providers.CacheProvider, requests, windowSeconds int) *RateLimiter {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &RateLimiter{cache: cache, requests: requests, windowSeconds: windowSeconds}
}

// Limit rejects a client's requests beyond the window budget with 429. When the cache is
// unreachable requests are let through.
func (l *RateLimiter) Limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if l == nil || l.cache == nil || l.requests <= 0 {
			next(w, r)
			return
		}

		key := "ratelimit:" + r.URL.Path + ":" + clientKey(r)
		n, err := l.cache.Increment(r.Context(), key, l.windowSeconds)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("rate limiter unavailable")
			next(w, r)
			return
		}
		if n > int64(l.requests) {
			w.Header().Set("Retry-After", strconv.Itoa(l.windowSeconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"RATE_LIMITED","detail":"too many requests"}` + "\n"))
			return
		}
		next(w, r)
	}
}

// clientKey identifies the caller by user id when authenticated, else by remote IP
func clientKey(r *http.Request) string {
	if u := UserFromContext(r.Context()); u != nil {
		return "user:" + strconv.FormatInt(u.ID, 10)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
