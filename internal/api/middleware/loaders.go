package middleware

import (
	"net/http"

	"github.com/berez-app/berez/backend/internal/application/loaders"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
)

// LoadersMiddleware gives each request its own batching loaders
func LoadersMiddleware(users repositories.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loaders.WithLoaders(r.Context(), loaders.NewLoaders(users))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
