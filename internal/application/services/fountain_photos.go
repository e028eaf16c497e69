package services

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// UploadPhoto validates and stores an image, then records its metadata. The blob is written
// under a fresh random key; if the record cannot be stored the blob is deleted again.
func (m *FountainManager) UploadPhoto(ctx context.Context, upload entities.PhotoUpload, body io.Reader, uploader *entities.User) (*entities.Photo, error) {
	ctx, span := observability.StartSpan(ctx, "FountainManager.UploadPhoto")
	defer span.End()

	ext, err := entities.ValidatePhotoUpload(upload, m.maxPhotoSize)
	if err != nil {
		return nil, err
	}
	if upload.FountainID != nil {
		if err := m.requireFountain(ctx, *upload.FountainID); err != nil {
			return nil, err
		}
	}
	if upload.ReviewID != nil {
		ok, err := m.store.Reviews().Exists(ctx, *upload.ReviewID)
		if err != nil {
			return nil, apperrors.AsStorage("failed to load review", err)
		}
		if !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("review with id %d not found", *upload.ReviewID))
		}
	}

	photo := &entities.Photo{
		Filename:         uuid.NewString() + ext,
		OriginalFilename: upload.Filename,
		ContentType:      entities.ContentTypeFor(upload.ContentType, ext),
		FileSize:         upload.Size,
		FountainID:       upload.FountainID,
		ReviewID:         upload.ReviewID,
		CreatedAt:        m.now(),
	}
	if uploader != nil {
		id := uploader.ID
		photo.UserID = &id
	}

	if err := m.blobs.Put(ctx, photo.Filename, body, photo.FileSize, photo.ContentType); err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.AsStorage("failed to store photo", err)
	}

	if err := m.store.Photos().Create(ctx, photo); err != nil {
		observability.RecordError(span, err)
		if delErr := m.blobs.Delete(ctx, photo.Filename); delErr != nil {
			observability.LoggerFromContext(ctx).Error().Err(delErr).Str("key", photo.Filename).Msg("failed to delete orphaned photo")
		}
		return nil, apperrors.AsStorage("failed to save photo", err)
	}

	photo.URL = m.blobs.URLFor(photo.Filename)
	return photo, nil
}

// GetPhoto returns photo metadata with its URL
func (m *FountainManager) GetPhoto(ctx context.Context, id int64) (*entities.Photo, error) {
	photo, err := m.store.Photos().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.AsStorage("failed to load photo", err)
	}
	photo.URL = m.blobs.URLFor(photo.Filename)
	return photo, nil
}
