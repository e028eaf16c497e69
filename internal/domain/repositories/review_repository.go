package repositories

import (
	"context"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// ReviewRepository defines the interface for review operations
type ReviewRepository interface {
	// Create inserts a review and writes back its ID
	Create(ctx context.Context, review *entities.Review) error

	// Exists reports whether a review with id is stored
	Exists(ctx context.Context, id int64) (bool, error)

	// ListByFountain returns the fountain's reviews newest first
	ListByFountain(ctx context.Context, fountainID int64) ([]*entities.Review, error)

	// Aggregate computes mean general rating and count over all reviews of the fountain
	Aggregate(ctx context.Context, fountainID int64) (entities.RatingAggregate, error)
}
