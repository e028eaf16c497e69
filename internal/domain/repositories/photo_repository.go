package repositories

import (
	"context"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// PhotoRepository defines the interface for photo metadata operations
type PhotoRepository interface {
	Create(ctx context.Context, photo *entities.Photo) error
	GetByID(ctx context.Context, id int64) (*entities.Photo, error)

	// CountExisting returns how many of ids are stored photos
	CountExisting(ctx context.Context, ids []int64) (int, error)
}
