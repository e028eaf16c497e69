// Package app assembles the fountain service from configuration. Both the long-running server and
// the Lambda entrypoint serve the handler it builds.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/berez-app/berez/backend/internal/adapters/cache"
	"github.com/berez-app/berez/backend/internal/adapters/database"
	"github.com/berez-app/berez/backend/internal/adapters/events"
	"github.com/berez-app/berez/backend/internal/adapters/providers/geolocation"
	"github.com/berez-app/berez/backend/internal/adapters/search"
	"github.com/berez-app/berez/backend/internal/adapters/storage"
	"github.com/berez-app/berez/backend/internal/api/handlers"
	"github.com/berez-app/berez/backend/internal/api/middleware"
	"github.com/berez-app/berez/backend/internal/api/routes"
	"github.com/berez-app/berez/backend/internal/application/services"
	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/internal/infrastructure/auth"
	redisclient "github.com/berez-app/berez/backend/internal/infrastructure/clients/redis"
	"github.com/berez-app/berez/backend/internal/infrastructure/clients/sqldb"
	tsclient "github.com/berez-app/berez/backend/internal/infrastructure/clients/typesense"
	"github.com/berez-app/berez/backend/internal/infrastructure/migrations"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	"github.com/berez-app/berez/backend/pkg/config"
)

const cacheWarmInterval = 5 * time.Minute

// App is a fully wired fountain service
type App struct {
	Handler http.Handler
	Store   *database.Store
	Manager *services.FountainManager

	db          *sqldb.Client
	redis       *redisclient.Client
	eventBus    providers.EventBus
	invalidator *services.CacheInvalidationService
	stopWarming context.CancelFunc
}

// New connects every configured backend and builds the HTTP handler. Redis, Typesense and the
// Google geocoder are optional; the service runs without them.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	ready := false
	defer func() {
		if !ready {
			a.Close()
		}
	}()

	metrics, err := observability.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	a.db, err = sqldb.NewClient(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := migrations.Up(a.db.DB(), a.db.Driver()); err != nil {
			return nil, err
		}
	}
	a.Store = database.NewStore(a.db).WithMetrics(metrics)

	var cacheProvider providers.CacheProvider
	if cfg.Redis.Enabled {
		a.redis, err = redisclient.NewClient(&cfg.Redis)
		if err != nil {
			if cfg.Events.Driver == "redis" {
				return nil, err
			}
			log.Warn().Err(err).Msg("redis unavailable, running without cache")
		} else {
			cacheProvider = cache.NewRedisAdapter(a.redis)
		}
	}

	a.eventBus, err = newEventBus(cfg, a.redis)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewBlobStore(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	manager := services.NewFountainManager(a.Store, blobs).
		WithEvents(a.eventBus).
		WithMetrics(metrics).
		WithMaxPhotoSize(cfg.Storage.MaxUploadBytes).
		WithGeolocation(newGeolocation(cfg, cacheProvider))

	if cacheProvider != nil {
		fountainCache := a.Store.WithFountainCache(cacheProvider, cfg.Redis.CacheTTLSeconds)
		manager.WithFountainCache(fountainCache)

		var warmCtx context.Context
		warmCtx, a.stopWarming = context.WithCancel(context.Background())
		services.NewCacheWarmingService(a.Store.Fountains(), fountainCache, services.DefaultWarmCount).
			StartPeriodicWarming(warmCtx, cacheWarmInterval)

		a.invalidator = services.NewCacheInvalidationService(cacheProvider, a.eventBus)
		if err := a.invalidator.Start(); err != nil {
			log.Warn().Err(err).Msg("cache invalidation service not started")
			a.invalidator = nil
		}
	}

	if cfg.Typesense.Enabled {
		if index := newSearchIndex(ctx, cfg); index != nil {
			manager.WithSearch(index)
		}
	}
	a.Manager = manager

	authService := services.NewAuthService(
		a.Store.Users(),
		auth.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		auth.NewBcryptHasher(bcrypt.DefaultCost),
	)

	var localDir string
	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "local" {
		localDir = cfg.Storage.LocalDir
	}

	var cacheMiddleware *middleware.CacheMiddleware
	var rateLimiter *middleware.RateLimiter
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, metrics)
		rateLimiter = middleware.NewRateLimiter(cacheProvider, cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
	}

	router := routes.NewRouter(
		handlers.NewFountainHandler(manager),
		handlers.NewReviewHandler(manager),
		handlers.NewPhotoHandler(manager, cfg.Storage.MaxUploadBytes, localDir),
		handlers.NewAuthHandler(authService),
		handlers.NewImportHandler(manager),
		handlers.NewHealthHandler(a.Store),
		handlers.NewSSEHandler(a.eventBus),
		authService,
		a.Store.Users(),
		cacheMiddleware,
		rateLimiter,
		metrics,
		cfg.Server.AdminAPIKey,
		middleware.ParseOrigins(cfg.Server.CORSOrigins),
	)
	a.Handler = router.SetupRoutes()

	ready = true
	return a, nil
}

func newEventBus(cfg *config.Config, redis *redisclient.Client) (providers.EventBus, error) {
	switch cfg.Events.Driver {
	case "redis":
		if redis == nil {
			return nil, errors.New("redis event bus requires a redis connection")
		}
		log.Info().Msg("using redis event bus")
		return events.NewRedisEventBus(redis), nil
	case "kafka":
		log.Info().Strs("brokers", cfg.Events.KafkaBrokerList()).Str("topic", cfg.Events.KafkaTopic).Msg("using kafka event bus")
		return events.NewKafkaEventBus(cfg.Events.KafkaBrokerList(), cfg.Events.KafkaTopic), nil
	default:
		return events.NewMemoryEventBus(), nil
	}
}

func newGeolocation(cfg *config.Config, cacheProvider providers.CacheProvider) providers.GeolocationProvider {
	if cfg.Geolocation.Provider == "google" {
		if cfg.Geolocation.APIKey != "" {
			return geolocation.NewGoogleGeolocationProvider(cfg.Geolocation.APIKey, cfg.Geolocation.Language, cacheProvider)
		}
		log.Warn().Msg("GEOLOCATION_API_KEY is not set; using mock geolocation provider")
	}
	return geolocation.NewMockGeolocationProvider()
}

func newSearchIndex(ctx context.Context, cfg *config.Config) providers.SearchIndex {
	client, err := tsclient.NewClient(&cfg.Typesense)
	if err != nil {
		log.Warn().Err(err).Msg("typesense unavailable, search falls back to the database")
		return nil
	}
	index := search.NewTypesenseAdapter(client)
	if err := index.EnsureCollection(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to ensure typesense collection")
	}
	return index
}

// Close stops background work and releases connections
func (a *App) Close() {
	if a.stopWarming != nil {
		a.stopWarming()
	}
	if a.invalidator != nil {
		a.invalidator.Stop()
	}
	if a.eventBus != nil {
		if err := a.eventBus.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing event bus")
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
