package services_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/internal/adapters/database"
	"github.com/berez-app/berez/backend/internal/application/services"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// MockBlobStore records blob store calls
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, key, body, size, contentType)
	return args.Error(0)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlobStore) URLFor(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func upload(name string, size int) (entities.PhotoUpload, io.Reader) {
	return entities.PhotoUpload{Filename: name, Size: int64(size)}, bytes.NewReader(bytes.Repeat([]byte{0xff}, size))
}

func TestUploadPhoto_StoresBlobAndRecord(t *testing.T) {
	fx := newManager(t)
	ctx := context.Background()
	f := createFountain(t, fx.manager, 1, 34.78, 32.08)
	user := registerUser(t, fx.store, "maya")

	u, body := upload("Fountain.JPG", 128)
	u.FountainID = &f.ID
	photo, err := fx.manager.UploadPhoto(ctx, u, body, user)
	require.NoError(t, err)

	assert.NotEqual(t, "Fountain.JPG", photo.Filename)
	assert.Regexp(t, `^[0-9a-f-]{36}\.jpg$`, photo.Filename)
	assert.Equal(t, "Fountain.JPG", photo.OriginalFilename)
	assert.Equal(t, "image/jpeg", photo.ContentType)
	assert.Equal(t, "/uploads/"+photo.Filename, photo.URL)
	require.NotNil(t, photo.UserID)
	assert.Equal(t, user.ID, *photo.UserID)

	info, err := os.Stat(fx.blobs.Dir() + "/" + photo.Filename)
	require.NoError(t, err)
	assert.Equal(t, int64(128), info.Size())

	got, err := fx.manager.GetPhoto(ctx, photo.ID)
	require.NoError(t, err)
	assert.Equal(t, photo.URL, got.URL)

	review, err := fx.manager.SubmitReview(ctx, f.ID, entities.ReviewInput{GeneralRating: 5, Photos: []int64{photo.ID, photo.ID}}, user)
	require.NoError(t, err)
	assert.Equal(t, entities.PhotoIDs{photo.ID, photo.ID}, review.Photos)

	_, err = fx.manager.GetPhoto(ctx, 999)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
}

func TestUploadPhoto_Validation(t *testing.T) {
	store := newManager(t).store
	blobs := new(MockBlobStore)
	m := services.NewFountainManager(store, blobs).WithMaxPhotoSize(64)
	ctx := context.Background()

	u, body := upload("x.exe", 10)
	_, err := m.UploadPhoto(ctx, u, body, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	u, body = upload("big.png", 65)
	_, err = m.UploadPhoto(ctx, u, body, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	u, body = upload("empty.png", 0)
	_, err = m.UploadPhoto(ctx, u, body, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	missing := int64(404)
	u, body = upload("ok.png", 10)
	u.FountainID = &missing
	_, err = m.UploadPhoto(ctx, u, body, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	u, body = upload("ok.png", 10)
	u.ReviewID = &missing
	_, err = m.UploadPhoto(ctx, u, body, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	blobs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	blobs.On("Put", mock.Anything, mock.AnythingOfType("string"), mock.Anything, int64(64), "image/png").Return(nil).Once()
	blobs.On("URLFor", mock.AnythingOfType("string")).Return("https://cdn.example.com/p.png").Once()
	u, body = upload("exact.png", 64)
	photo, err := m.UploadPhoto(ctx, u, body, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/p.png", photo.URL)
	blobs.AssertExpectations(t)
}

func TestUploadPhoto_BlobFailureStoresNothing(t *testing.T) {
	fx := newManager(t)
	blobs := new(MockBlobStore)
	blobs.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket unavailable"))
	m := services.NewFountainManager(fx.store, blobs)

	u, body := upload("a.webp", 10)
	_, err := m.UploadPhoto(context.Background(), u, body, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage), "got %v", err)

	n, err := fx.store.Photos().CountExisting(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Zero(t, n)
}

// failingPhotoStore refuses to record photo metadata
type failingPhotoStore struct {
	*database.Store
}

func (s failingPhotoStore) Photos() repositories.PhotoRepository {
	return failingPhotos{s.Store.Photos()}
}

type failingPhotos struct {
	repositories.PhotoRepository
}

func (failingPhotos) Create(ctx context.Context, photo *entities.Photo) error {
	return errors.New("disk I/O error")
}

func TestUploadPhoto_DeletesBlobWhenRecordFails(t *testing.T) {
	fx := newManager(t)
	m := services.NewFountainManager(failingPhotoStore{fx.store}, fx.blobs)

	u, body := upload("a.gif", 32)
	_, err := m.UploadPhoto(context.Background(), u, body, nil)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStorage), "got %v", err)

	entries, err := os.ReadDir(fx.blobs.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries, "orphaned blob must be removed")
}

func TestUploadPhoto_ReportsFailedCompensation(t *testing.T) {
	fx := newManager(t)
	blobs := new(MockBlobStore)
	blobs.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	blobs.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(errors.New("still down"))
	m := services.NewFountainManager(failingPhotoStore{fx.store}, blobs)

	u, body := upload("a.png", 32)
	_, err := m.UploadPhoto(context.Background(), u, body, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error", "the record failure is what surfaces")
	blobs.AssertCalled(t, "Delete", mock.Anything, mock.AnythingOfType("string"))
}
