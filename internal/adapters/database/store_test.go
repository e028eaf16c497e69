package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/internal/adapters/database/dbtest"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

func newFountain(id int64, lon, lat float64) *entities.Fountain {
	return &entities.Fountain{
		ID:          id,
		Address:     "Rothschild Blvd",
		Latitude:    lat,
		Longitude:   lon,
		Type:        entities.FountainTypeLeaf,
		Status:      entities.FountainStatusVerified,
		LastUpdated: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestFountainAdapter_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	f := newFountain(0, 34.78, 32.08)
	desc := "next to the kiosk"
	f.Description = &desc
	require.NoError(t, store.Fountains().Create(ctx, f))
	assert.NotZero(t, f.ID)

	got, err := store.Fountains().GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Address, got.Address)
	assert.Equal(t, f.Latitude, got.Latitude)
	assert.Equal(t, f.Longitude, got.Longitude)
	assert.Equal(t, entities.FountainTypeLeaf, got.Type)
	assert.True(t, f.LastUpdated.Equal(got.LastUpdated))
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)

	_, err = store.Fountains().GetByID(ctx, 999)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestFountainAdapter_ExplicitIDConflict(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	require.NoError(t, store.Fountains().Create(ctx, newFountain(42, 0, 0)))
	err := store.Fountains().Create(ctx, newFountain(42, 1, 1))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))

	// generated ids continue past explicit ones
	next := newFountain(0, 2, 2)
	require.NoError(t, store.Fountains().Create(ctx, next))
	assert.Greater(t, next.ID, int64(42))
}

func TestFountainAdapter_FindNearest(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	require.NoError(t, store.Fountains().Create(ctx, newFountain(1, 0, 2)))
	require.NoError(t, store.Fountains().Create(ctx, newFountain(2, 1, 0)))
	require.NoError(t, store.Fountains().Create(ctx, newFountain(3, 0, 0)))
	require.NoError(t, store.Fountains().Create(ctx, newFountain(4, -1, 0)))

	got, err := store.Fountains().FindNearest(ctx, 0, 0, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].ID)
	// equal distance breaks ties by id
	assert.Equal(t, int64(2), got[1].ID)
	assert.Equal(t, int64(4), got[2].ID)

	total, err := store.Fountains().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestFountainAdapter_ApplyChanges(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	f := newFountain(0, 34.78, 32.08)
	require.NoError(t, store.Fountains().Create(ctx, f))

	input := entities.FountainInput{
		Address:     "Dizengoff Square",
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
		DogFriendly: true,
		Type:        entities.FountainTypeCooler,
	}
	changes := entities.DiffFountain(f, input)
	assert.Equal(t, []string{"address", "dog_friendly", "type"}, changes.Fields())

	at := time.Date(2024, 6, 1, 8, 30, 0, 123456000, time.UTC)
	require.NoError(t, store.Fountains().ApplyChanges(ctx, f.ID, changes, at))

	got, err := store.Fountains().GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dizengoff Square", got.Address)
	assert.True(t, got.DogFriendly)
	assert.Equal(t, entities.FountainTypeCooler, got.Type)
	assert.Equal(t, entities.FountainStatusVerified, got.Status)
	assert.True(t, at.Equal(got.LastUpdated))

	err = store.Fountains().ApplyChanges(ctx, 999, changes, at)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestFountainAdapter_SearchByAddressAndGetByIDs(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	a := newFountain(1, 0, 0)
	a.Address = "Herzl St 10"
	b := newFountain(2, 0, 0)
	b.Address = "Allenby St 3"
	require.NoError(t, store.Fountains().Create(ctx, a))
	require.NoError(t, store.Fountains().Create(ctx, b))

	got, err := store.Fountains().SearchByAddress(ctx, "herzl", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	ordered, err := store.Fountains().GetByIDs(ctx, []int64{2, 77, 1})
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, int64(2), ordered[0].ID)
	assert.Equal(t, int64(1), ordered[1].ID)
}

func TestReviewAdapter_AggregateAndOrder(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	require.NoError(t, store.Fountains().Create(ctx, newFountain(1, 0, 0)))

	agg, err := store.Reviews().Aggregate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.RatingAggregate{}, agg)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, rating := range []int{5, 3, 4} {
		r := &entities.Review{
			FountainID:    1,
			CreationDate:  base.Add(time.Duration(i) * time.Hour),
			GeneralRating: rating,
			Photos:        entities.PhotoIDs{int64(i + 1)},
		}
		require.NoError(t, store.Reviews().Create(ctx, r))
		assert.NotZero(t, r.ID)
	}

	agg, err = store.Reviews().Aggregate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.Count)
	assert.InDelta(t, 4.0, agg.Average, 1e-9)

	reviews, err := store.Reviews().ListByFountain(ctx, 1)
	require.NoError(t, err)
	require.Len(t, reviews, 3)
	assert.Equal(t, 4, reviews[0].GeneralRating)
	assert.Equal(t, entities.PhotoIDs{3}, reviews[0].Photos)
	assert.Equal(t, 5, reviews[2].GeneralRating)
}

func TestReportAdapter_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	require.NoError(t, store.Fountains().Create(ctx, newFountain(1, 0, 0)))

	report := &entities.FountainReport{
		FountainID: 1,
		ReportType: entities.ReportTypeBroken,
		Status:     entities.ReportStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Reports().Create(ctx, report))

	resolvedAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Reports().SetStatus(ctx, report.ID, entities.ReportStatusResolved, &resolvedAt))

	got, err := store.Reports().GetByID(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ReportStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, resolvedAt.Equal(*got.ResolvedAt))

	list, err := store.Reports().ListByFountain(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUserAdapter_UniqueAndLookup(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	u := &entities.User{Username: "noa", Name: "Noa", Email: "noa@example.com", PasswordHash: "x", IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Users().Create(ctx, u))

	dup := &entities.User{Username: "noa", Email: "other@example.com", PasswordHash: "x", CreatedAt: time.Now().UTC()}
	assert.True(t, apperrors.IsType(store.Users().Create(ctx, dup), apperrors.ErrorTypeConflict))

	byEmail, err := store.Users().GetByEmail(ctx, "noa@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	names, err := store.Users().UsernamesByIDs(ctx, []int64{u.ID, 404})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{u.ID: "noa"}, names)
}

func TestPhotoAdapter_CountExisting(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	p := &entities.Photo{Filename: "a.jpg", OriginalFilename: "me.jpg", ContentType: "image/jpeg", FileSize: 10, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Photos().Create(ctx, p))

	n, err := store.Photos().CountExisting(ctx, []int64{p.ID, p.ID + 100})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		require.NoError(t, tx.Fountains().Create(ctx, newFountain(5, 0, 0)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := store.Fountains().Exists(ctx, 5)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		if err := tx.Fountains().Create(ctx, newFountain(5, 0, 0)); err != nil {
			return err
		}
		_, err := tx.Fountains().GetForUpdate(ctx, 5)
		return err
	})
	require.NoError(t, err)

	exists, err := store.Fountains().Exists(ctx, 5)
	require.NoError(t, err)
	assert.True(t, exists)
}
