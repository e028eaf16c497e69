package routes

import (
	"net/http"

	"github.com/berez-app/berez/backend/internal/api/handlers"
	"github.com/berez-app/berez/backend/internal/api/middleware"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	fountainHandler *handlers.FountainHandler
	reviewHandler   *handlers.ReviewHandler
	photoHandler    *handlers.PhotoHandler
	authHandler     *handlers.AuthHandler
	importHandler   *handlers.ImportHandler
	healthHandler   *handlers.HealthHandler
	sseHandler      *handlers.SSEHandler

	authenticator   middleware.Authenticator
	users           repositories.UserRepository
	cacheMiddleware *middleware.CacheMiddleware
	rateLimiter     *middleware.RateLimiter
	metrics         *observability.Metrics

	adminKey       string
	allowedOrigins []string
}

// NewRouter creates a new router. Optional collaborators may be nil.
func NewRouter(
	fountainHandler *handlers.FountainHandler,
	reviewHandler *handlers.ReviewHandler,
	photoHandler *handlers.PhotoHandler,
	authHandler *handlers.AuthHandler,
	importHandler *handlers.ImportHandler,
	healthHandler *handlers.HealthHandler,
	sseHandler *handlers.SSEHandler,

	authenticator middleware.Authenticator,
	users repositories.UserRepository,
	cacheMiddleware *middleware.CacheMiddleware,
	rateLimiter *middleware.RateLimiter,
	metrics *observability.Metrics,

	adminKey string,
	allowedOrigins []string,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		fountainHandler: fountainHandler,
		reviewHandler:   reviewHandler,
		photoHandler:    photoHandler,
		authHandler:     authHandler,
		importHandler:   importHandler,
		healthHandler:   healthHandler,
		sseHandler:      sseHandler,

		authenticator:   authenticator,
		users:           users,
		cacheMiddleware: cacheMiddleware,
		rateLimiter:     rateLimiter,
		metrics:         metrics,

		adminKey:       adminKey,
		allowedOrigins: allowedOrigins,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	admin := middleware.RequireAdminKey(r.adminKey)

	// Health check endpoint
	if r.healthHandler != nil {
		r.mux.HandleFunc("GET /health", r.healthHandler.Health)
	} else {
		r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
	}

	// Fountain endpoints
	r.mux.HandleFunc("GET /fountains/nearest", r.fountainHandler.FindNearest)
	r.mux.HandleFunc("GET /fountains/search", r.fountainHandler.SearchFountains)
	r.mux.HandleFunc("GET /fountains/{id}", r.fountainHandler.GetFountain)
	r.mux.HandleFunc("POST /fountains", admin(r.fountainHandler.CreateFountain))
	r.mux.HandleFunc("POST /fountains/submit", r.fountainHandler.SubmitFountain)
	r.mux.HandleFunc("PUT /fountains/{id}", admin(r.fountainHandler.UpdateFountain))

	// Review and report endpoints
	r.mux.HandleFunc("POST /review", r.rateLimiter.Limit(r.reviewHandler.SubmitReview))
	r.mux.HandleFunc("GET /fountains/{id}/reviews", r.reviewHandler.ListReviews)
	r.mux.HandleFunc("POST /fountains/report", r.rateLimiter.Limit(r.reviewHandler.SubmitReport))
	r.mux.HandleFunc("GET /fountains/{id}/reports", r.reviewHandler.ListReports)
	r.mux.HandleFunc("PUT /reports/{id}/status", admin(r.reviewHandler.ResolveReport))

	// Photo endpoints
	r.mux.HandleFunc("POST /photos/upload", r.photoHandler.UploadPhoto)
	r.mux.HandleFunc("GET /photos/{id}", r.photoHandler.GetPhoto)
	r.mux.HandleFunc("GET /uploads/{key}", r.photoHandler.ServeUpload)

	// Account endpoints
	if r.authHandler != nil {
		r.mux.HandleFunc("POST /auth/register", r.authHandler.Register)
		r.mux.HandleFunc("POST /auth/login", r.authHandler.Login)
		r.mux.HandleFunc("GET /auth/me", middleware.RequireUser(r.authHandler.Me))
	}

	// Feed import
	r.mux.HandleFunc("POST /admin/import", admin(r.importHandler.Import))

	// Event streams
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /events", r.sseHandler.StreamUpdates)
		r.mux.HandleFunc("GET /fountains/{id}/events", r.sseHandler.StreamFountainUpdates)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}
	handler = middleware.Compression(handler)
	if r.users != nil {
		handler = middleware.LoadersMiddleware(r.users)(handler)
	}
	if r.authenticator != nil {
		handler = middleware.OptionalAuth(r.authenticator)(handler)
	}
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.LoggingMiddleware(handler)

	// CORS wraps everything so headers are set even on cache HITs and errors
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)
	handler = middleware.Recovery(handler)

	return handler
}
