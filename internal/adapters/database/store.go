package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	"github.com/berez-app/berez/backend/internal/infrastructure/clients/sqldb"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// repoSet binds every adapter to one queryer
type repoSet struct {
	fountains repositories.FountainRepository
	reviews   repositories.ReviewRepository
	reports   repositories.ReportRepository
	photos    repositories.PhotoRepository
	users     repositories.UserRepository
}

func newRepoSet(q queryer) *repoSet {
	return &repoSet{
		fountains: NewFountainAdapter(q),
		reviews:   NewReviewAdapter(q),
		reports:   NewReportAdapter(q),
		photos:    NewPhotoAdapter(q),
		users:     NewUserAdapter(q),
	}
}

func (r *repoSet) Fountains() repositories.FountainRepository { return r.fountains }
func (r *repoSet) Reviews() repositories.ReviewRepository     { return r.reviews }
func (r *repoSet) Reports() repositories.ReportRepository     { return r.reports }
func (r *repoSet) Photos() repositories.PhotoRepository       { return r.photos }
func (r *repoSet) Users() repositories.UserRepository         { return r.users }

// Store implements repositories.Store over a goqu database
type Store struct {
	*repoSet
	client  *sqldb.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

var _ repositories.Store = (*Store)(nil)

// NewStore creates a store on the client's pool
func NewStore(client *sqldb.Client) *Store {
	return &Store{
		repoSet: newRepoSet(client.Goqu()),
		client:  client,
		db:      client.Goqu(),
	}
}

// WithMetrics records transaction durations
func (s *Store) WithMetrics(metrics *observability.Metrics) *Store {
	s.metrics = metrics
	return s
}

// WithFountainCache serves non-transactional fountain reads through cache
func (s *Store) WithFountainCache(cache providers.CacheProvider, ttlSeconds int) *CachedFountainAdapter {
	cached := NewCachedFountainAdapter(s.repoSet.fountains, cache, ttlSeconds).WithMetrics(s.metrics)
	s.repoSet.fountains = cached
	return cached
}

// Ping verifies the connection to the database
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// WithinTx runs fn with repositories bound to one transaction. The transaction commits when fn
// returns nil and rolls back on error or panic.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Repositories) error) (err error) {
	start := time.Now()
	defer func() { observability.RecordDBMetric(ctx, s.metrics, "tx", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Ctx(ctx).Warn().Err(rbErr).Msg("transaction rollback failed")
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = apperrors.NewStorageError("failed to commit transaction", cErr)
		}
	}()

	return fn(ctx, newRepoSet(tx))
}
