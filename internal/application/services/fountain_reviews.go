package services

import (
	"context"
	"fmt"

	"github.com/berez-app/berez/backend/internal/application/loaders"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// SubmitReview stores a review and recomputes the fountain's rating in the same transaction.
// The fountain row stays locked from the read until commit, so concurrent reviews of one
// fountain are applied one after another.
func (m *FountainManager) SubmitReview(ctx context.Context, fountainID int64, in entities.ReviewInput, author *entities.User) (*entities.ReviewWithAuthor, error) {
	ctx, span := observability.StartSpan(ctx, "FountainManager.SubmitReview")
	defer span.End()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	review := &entities.Review{
		FountainID:      fountainID,
		CreationDate:    m.now(),
		GeneralRating:   in.GeneralRating,
		TempRating:      in.TempRating,
		StreamRating:    in.StreamRating,
		QuenchingRating: in.QuenchingRating,
		Description:     in.Description,
		Photos:          entities.PhotoIDs(in.Photos),
	}
	if author != nil {
		id := author.ID
		review.UserID = &id
	}

	var fountain *entities.Fountain
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		f, err := tx.Fountains().GetForUpdate(ctx, fountainID)
		if err != nil {
			return err
		}
		if err := checkPhotos(ctx, tx.Photos(), in.Photos); err != nil {
			return err
		}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			return err
		}

		agg, err := tx.Reviews().Aggregate(ctx, fountainID)
		if err != nil {
			return err
		}
		if err := tx.Fountains().SetRating(ctx, fountainID, agg, review.CreationDate); err != nil {
			return err
		}
		f.AverageGeneralRating = agg.Average
		f.NumberOfRatings = agg.Count
		f.LastUpdated = review.CreationDate
		fountain = f
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.AsStorage("failed to submit review", err)
	}

	observability.RecordReviewSubmitted(ctx, m.metrics)
	m.afterWrite(ctx, fountain, entities.FountainEventRatingUpdated, map[string]interface{}{
		"average_general_rating": fountain.AverageGeneralRating,
		"number_of_ratings":      fountain.NumberOfRatings,
	})

	out := &entities.ReviewWithAuthor{Review: *review}
	if author != nil {
		name := author.Username
		out.Username = &name
	}
	return out, nil
}

// checkPhotos rejects photo ids that do not reference stored photos
func checkPhotos(ctx context.Context, photos repositories.PhotoRepository, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	n, err := photos.CountExisting(ctx, unique)
	if err != nil {
		return err
	}
	if n != len(unique) {
		return apperrors.NewValidationError("review references unknown photos")
	}
	return nil
}

// ListReviews returns the fountain's reviews newest first with their authors' usernames
func (m *FountainManager) ListReviews(ctx context.Context, fountainID int64) ([]*entities.ReviewWithAuthor, error) {
	if err := m.requireFountain(ctx, fountainID); err != nil {
		return nil, err
	}

	reviews, err := m.store.Reviews().ListByFountain(ctx, fountainID)
	if err != nil {
		return nil, apperrors.AsStorage("failed to list reviews", err)
	}

	ids := make([]int64, 0, len(reviews))
	for _, r := range reviews {
		if r.UserID != nil {
			ids = append(ids, *r.UserID)
		}
	}
	names := loaders.Usernames(ctx, m.store.Users(), ids)

	out := make([]*entities.ReviewWithAuthor, len(reviews))
	for i, r := range reviews {
		out[i] = &entities.ReviewWithAuthor{Review: *r, Username: usernameFor(names, r.UserID)}
	}
	return out, nil
}

func (m *FountainManager) requireFountain(ctx context.Context, id int64) error {
	ok, err := m.store.Fountains().Exists(ctx, id)
	if err != nil {
		return apperrors.AsStorage("failed to load fountain", err)
	}
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("fountain with id %d not found", id))
	}
	return nil
}

func usernameFor(names map[int64]string, userID *int64) *string {
	if userID == nil {
		return nil
	}
	name, ok := names[*userID]
	if !ok {
		return nil
	}
	return &name
}
