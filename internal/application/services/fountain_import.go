package services

import (
	"context"

	"github.com/berez-app/berez/backend/internal/adapters/feed"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// ImportFromFeed inserts feed rows as verified fountains in one transaction. Rows whose id is
// already stored are skipped; rows that do not parse are logged and counted as failed without
// aborting the batch. A store failure rolls the whole batch back.
func (m *FountainManager) ImportFromFeed(ctx context.Context, rows []entities.FeedRow) (*entities.ImportResult, error) {
	ctx, span := observability.StartSpan(ctx, "FountainManager.ImportFromFeed")
	defer span.End()

	logger := observability.LoggerFromContext(ctx)
	var (
		result   *entities.ImportResult
		inserted []*entities.Fountain
	)

	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		result = &entities.ImportResult{}
		inserted = nil
		now := m.now()

		for _, row := range rows {
			in, err := feed.ToFountainInput(row)
			if err == nil {
				err = in.Validate()
			}
			if err != nil {
				logger.Warn().Err(err).Int("line", row.Line).Str("oid", row.ExternalID).Msg("skipping unparseable feed row")
				result.Failed++
				result.Errors = append(result.Errors, entities.ImportRowError{Line: row.Line, ExternalID: row.ExternalID, Reason: err.Error()})
				continue
			}

			exists, err := tx.Fountains().Exists(ctx, *in.ID)
			if err != nil {
				return err
			}
			if exists {
				result.Skipped++
				continue
			}

			f := &entities.Fountain{
				ID:          *in.ID,
				Address:     in.Address,
				Latitude:    in.Latitude,
				Longitude:   in.Longitude,
				DogFriendly: in.DogFriendly,
				Type:        in.Type,
				Status:      entities.FountainStatusVerified,
				LastUpdated: now,
			}
			if err := tx.Fountains().Create(ctx, f); err != nil {
				return err
			}
			inserted = append(inserted, f)
			result.Inserted++
		}
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.AsStorage("failed to import feed", err)
	}

	for _, f := range inserted {
		m.invalidate(ctx, f.ID)
	}
	if m.search != nil && len(inserted) > 0 {
		if n, err := m.search.IndexFountains(ctx, inserted); err != nil {
			logger.Warn().Err(err).Int("indexed", n).Int("inserted", len(inserted)).Msg("failed to index imported fountains")
		}
	}
	logger.Info().
		Int("inserted", result.Inserted).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("feed import finished")
	return result, nil
}
