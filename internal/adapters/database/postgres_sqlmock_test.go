package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/internal/adapters/database"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	"github.com/berez-app/berez/backend/internal/infrastructure/clients/sqldb"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

func newMockStore(t *testing.T) (*database.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewStore(sqldb.Wrap(db, sqldb.DriverPostgres)), mock
}

func TestStore_Postgres_ReviewTransaction(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM "fountains" WHERE \("id" = 7\) LIMIT 1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "address", "latitude", "longitude", "type", "status", "number_of_ratings", "average_general_rating", "last_updated"}).
			AddRow(int64(7), "Herzl St", 32.1, 34.8, "leaf", "verified", int64(1), 4.0, now))
	mock.ExpectQuery(`INSERT INTO "reviews" .+ RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectQuery(`SELECT COALESCE\(AVG\("general_rating"\), 0\) AS "average", COUNT\(\*\) AS "count" FROM "reviews" WHERE \("fountain_id" = 7\)`).
		WillReturnRows(sqlmock.NewRows([]string{"average", "count"}).AddRow(3.0, int64(2)))
	mock.ExpectExec(`UPDATE "fountains" SET .+ WHERE \("id" = 7\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var review *entities.Review
	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		fountain, err := tx.Fountains().GetForUpdate(ctx, 7)
		if err != nil {
			return err
		}
		assert.Equal(t, entities.FountainTypeLeaf, fountain.Type)

		review = &entities.Review{FountainID: 7, CreationDate: now, GeneralRating: 2}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			return err
		}
		agg, err := tx.Reviews().Aggregate(ctx, 7)
		if err != nil {
			return err
		}
		return tx.Fountains().SetRating(ctx, 7, agg, now)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(11), review.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Postgres_MissingFountainRollsBack(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM "fountains" WHERE \("id" = 8\) LIMIT 1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		_, err := tx.Fountains().GetForUpdate(ctx, 8)
		return err
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Postgres_RollbackFailureKeepsCause(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	cause := errors.New("insert failed")
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		return cause
	})
	assert.ErrorIs(t, err, cause)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Postgres_CommitFailureIsStorageError(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		return nil
	})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFountainAdapter_Postgres_ExplicitIDSyncsSequence(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "fountains" .+`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT setval\(pg_get_serial_sequence\('fountains', 'id'\)`).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Fountains().Create(ctx, newFountain(100, 34.7, 32.0)))
	require.NoError(t, mock.ExpectationsWereMet())
}
