package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
)

// ReviewAdapter implements the ReviewRepository interface
type ReviewAdapter struct {
	db queryer
}

var _ repositories.ReviewRepository = (*ReviewAdapter)(nil)

// NewReviewAdapter creates a new review adapter
func NewReviewAdapter(db queryer) *ReviewAdapter {
	return &ReviewAdapter{db: db}
}

// Create inserts a review and writes back its ID
func (a *ReviewAdapter) Create(ctx context.Context, review *entities.Review) error {
	id, err := insertReturningID(ctx, a.db, tableReviews, goqu.Record{
		"fountain_id":      review.FountainID,
		"user_id":          review.UserID,
		"creation_date":    review.CreationDate,
		"general_rating":   review.GeneralRating,
		"temp_rating":      review.TempRating,
		"stream_rating":    review.StreamRating,
		"quenching_rating": review.QuenchingRating,
		"description":      review.Description,
		"photos":           review.Photos.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to create review: %w", err)
	}
	review.ID = id
	return nil
}

// Exists reports whether a review with id is stored
func (a *ReviewAdapter) Exists(ctx context.Context, id int64) (bool, error) {
	var found int64
	ok, err := a.db.From(tableReviews).Select(goqu.C("id")).Where(goqu.Ex{"id": id}).ScanValContext(ctx, &found)
	if err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return ok, nil
}

// ListByFountain returns reviews newest first; equal timestamps fall back to newest id first
func (a *ReviewAdapter) ListByFountain(ctx context.Context, fountainID int64) ([]*entities.Review, error) {
	reviews := []*entities.Review{}
	err := a.db.From(tableReviews).
		Where(goqu.Ex{"fountain_id": fountainID}).
		Order(goqu.C("creation_date").Desc(), goqu.C("id").Desc()).
		ScanStructsContext(ctx, &reviews)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

type aggregateRow struct {
	Average float64 `db:"average"`
	Count   int64   `db:"count"`
}

// Aggregate computes the mean general rating and the review count from the stored reviews
func (a *ReviewAdapter) Aggregate(ctx context.Context, fountainID int64) (entities.RatingAggregate, error) {
	var row aggregateRow
	_, err := a.db.From(tableReviews).
		Select(
			goqu.COALESCE(goqu.AVG("general_rating"), 0).As("average"),
			goqu.COUNT("*").As("count"),
		).
		Where(goqu.Ex{"fountain_id": fountainID}).
		ScanStructContext(ctx, &row)
	if err != nil {
		return entities.RatingAggregate{}, fmt.Errorf("failed to aggregate reviews: %w", err)
	}
	return entities.RatingAggregate{Average: row.Average, Count: row.Count}, nil
}
