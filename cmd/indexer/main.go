package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/internal/adapters/database"
	"github.com/berez-app/berez/backend/internal/adapters/search"
	"github.com/berez-app/berez/backend/internal/infrastructure/clients/sqldb"
	"github.com/berez-app/berez/backend/internal/infrastructure/clients/typesense"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	"github.com/berez-app/berez/backend/pkg/config"
)

const pageSize = 500

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the existing Typesense collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	observability.InitLogger("berez-indexer", os.Getenv("ENVIRONMENT"))

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		var err error
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Err(err).Str("interval", intervalValue).Msg("invalid interval")
		}
		if interval <= 0 {
			log.Fatal().Msg("interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, reset); err != nil {
			log.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_in", interval).Msg("reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := sqldb.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	fountains := database.NewStore(db).Fountains()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", tsClient.Collection()).Msg("deleting collection before reindex")
		if _, err := tsClient.Client().Collection(tsClient.Collection()).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to delete collection")
		}
	}

	index := search.NewTypesenseAdapter(tsClient)
	if err := index.EnsureCollection(ctx); err != nil {
		return err
	}

	total := 0
	for offset := 0; ; offset += pageSize {
		page, err := fountains.List(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		n, err := index.IndexFountains(ctx, page)
		if err != nil {
			log.Warn().Err(err).Int("offset", offset).Msg("some fountains failed to index")
		}
		total += n
		if len(page) < pageSize {
			break
		}
	}

	log.Info().Int("indexed", total).Msg("indexing complete")
	return nil
}
