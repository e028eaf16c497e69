package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/internal/adapters/cache"
	"github.com/berez-app/berez/backend/internal/adapters/database"
	"github.com/berez-app/berez/backend/internal/adapters/feed"
	"github.com/berez-app/berez/backend/internal/adapters/search"
	"github.com/berez-app/berez/backend/internal/adapters/storage"
	"github.com/berez-app/berez/backend/internal/application/services"
	redisclient "github.com/berez-app/berez/backend/internal/infrastructure/clients/redis"
	"github.com/berez-app/berez/backend/internal/infrastructure/clients/sqldb"
	"github.com/berez-app/berez/backend/internal/infrastructure/clients/typesense"
	"github.com/berez-app/berez/backend/internal/infrastructure/migrations"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	"github.com/berez-app/berez/backend/pkg/config"
)

func main() {
	var path, format string
	flag.StringVar(&path, "file", "", "feed file to import (CSV or JSON)")
	flag.StringVar(&format, "format", "", "feed format: csv or json (default: from the file extension)")
	flag.Parse()
	if path == "" {
		path = flag.Arg(0)
	}
	if path == "" {
		log.Fatal().Msg("usage: import -file <feed.csv|feed.json>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	observability.InitLogger("berez-import", cfg.Server.Environment)
	observability.ParseLevel(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("failed to open feed")
	}
	defer f.Close()

	feedFormat := feed.Format(format)
	if feedFormat == "" {
		feedFormat = feed.FormatFromName(path)
	}
	rows, err := feed.Read(f, feedFormat)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("failed to read feed")
	}

	db, err := sqldb.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if err := migrations.Up(db.DB(), db.Driver()); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	blobs, err := storage.NewBlobStore(ctx, &cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize blob store")
	}
	store := database.NewStore(db)
	manager := services.NewFountainManager(store, blobs)

	if cfg.Redis.Enabled {
		rdb, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, cached responses expire on their own")
		} else {
			defer rdb.Close()
			manager.WithFountainCache(store.WithFountainCache(cache.NewRedisAdapter(rdb), cfg.Redis.CacheTTLSeconds))
		}
	}

	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("typesense unavailable, skipping indexing")
		} else {
			index := search.NewTypesenseAdapter(tsClient)
			if err := index.EnsureCollection(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to ensure typesense collection")
			}
			manager.WithSearch(index)
		}
	}

	result, err := manager.ImportFromFeed(ctx, rows)
	if err != nil {
		log.Fatal().Err(err).Msg("import failed")
	}
	for _, rowErr := range result.Errors {
		log.Warn().Int("line", rowErr.Line).Str("oid", rowErr.ExternalID).Str("reason", rowErr.Reason).Msg("row skipped")
	}
	log.Info().
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("import finished")
}
