package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// PhotoAdapter implements the PhotoRepository interface
type PhotoAdapter struct {
	db queryer
}

var _ repositories.PhotoRepository = (*PhotoAdapter)(nil)

// NewPhotoAdapter creates a new photo adapter
func NewPhotoAdapter(db queryer) *PhotoAdapter {
	return &PhotoAdapter{db: db}
}

// Create inserts photo metadata and writes back its ID
func (a *PhotoAdapter) Create(ctx context.Context, photo *entities.Photo) error {
	id, err := insertReturningID(ctx, a.db, tablePhotos, goqu.Record{
		"filename":          photo.Filename,
		"original_filename": photo.OriginalFilename,
		"content_type":      photo.ContentType,
		"file_size":         photo.FileSize,
		"user_id":           photo.UserID,
		"fountain_id":       photo.FountainID,
		"review_id":         photo.ReviewID,
		"created_at":        photo.CreatedAt,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(fmt.Sprintf("photo %s already exists", photo.Filename))
		}
		return fmt.Errorf("failed to create photo: %w", err)
	}
	photo.ID = id
	return nil
}

// GetByID retrieves photo metadata by ID
func (a *PhotoAdapter) GetByID(ctx context.Context, id int64) (*entities.Photo, error) {
	var photo entities.Photo
	found, err := a.db.From(tablePhotos).Where(goqu.Ex{"id": id}).ScanStructContext(ctx, &photo)
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}
	if !found {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("photo with id %d not found", id))
	}
	return &photo, nil
}

// CountExisting returns how many of ids are stored photos
func (a *PhotoAdapter) CountExisting(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := a.db.From(tablePhotos).Where(goqu.C("id").In(ids)).CountContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count photos: %w", err)
	}
	return int(n), nil
}
