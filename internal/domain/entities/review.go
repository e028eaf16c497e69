package entities

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

const (
	MinRating            = 1
	MaxRating            = 5
	MaxReviewDescription = 1000
)

// PhotoIDs is the ordered list of photos attached to a review, stored as a JSON array
type PhotoIDs []int64

// Value implements driver.Valuer
func (p PhotoIDs) Value() (driver.Value, error) {
	return p.String(), nil
}

// String renders the JSON form stored in the database
func (p PhotoIDs) String() string {
	if len(p) == 0 {
		return "[]"
	}
	b, _ := json.Marshal([]int64(p))
	return string(b)
}

// Scan implements sql.Scanner
func (p *PhotoIDs) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported photos column type %T", src)
	}
	if len(raw) == 0 {
		*p = nil
		return nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return fmt.Errorf("failed to decode photos: %w", err)
	}
	*p = ids
	return nil
}

// Review is one rating of a fountain. Reviews are immutable once stored.
type Review struct {
	ID              int64     `json:"id" db:"id"`
	FountainID      int64     `json:"fountain_id" db:"fountain_id"`
	UserID          *int64    `json:"user_id,omitempty" db:"user_id"`
	CreationDate    time.Time `json:"creation_date" db:"creation_date"`
	GeneralRating   int       `json:"general_rating" db:"general_rating"`
	TempRating      *int      `json:"temp_rating,omitempty" db:"temp_rating"`
	StreamRating    *int      `json:"stream_rating,omitempty" db:"stream_rating"`
	QuenchingRating *int      `json:"quenching_rating,omitempty" db:"quenching_rating"`
	Description     *string   `json:"description,omitempty" db:"description"`
	Photos          PhotoIDs  `json:"photos" db:"photos"`
}

// ReviewInput is the rating payload of a review submission
type ReviewInput struct {
	GeneralRating   int     `json:"general_rating"`
	TempRating      *int    `json:"temp_rating,omitempty"`
	StreamRating    *int    `json:"stream_rating,omitempty"`
	QuenchingRating *int    `json:"quenching_rating,omitempty"`
	Description     *string `json:"description,omitempty"`
	Photos          []int64 `json:"photos,omitempty"`
}

// Validate checks rating bounds and description length
func (in *ReviewInput) Validate() error {
	if err := checkRating("general_rating", in.GeneralRating); err != nil {
		return err
	}
	optional := []struct {
		name  string
		value *int
	}{
		{"temp_rating", in.TempRating},
		{"stream_rating", in.StreamRating},
		{"quenching_rating", in.QuenchingRating},
	}
	for _, o := range optional {
		if o.value == nil {
			continue
		}
		if err := checkRating(o.name, *o.value); err != nil {
			return err
		}
	}
	if in.Description != nil && len([]rune(*in.Description)) > MaxReviewDescription {
		return apperrors.NewValidationError(fmt.Sprintf("description must be at most %d characters", MaxReviewDescription))
	}
	return nil
}

func checkRating(name string, v int) error {
	if v < MinRating || v > MaxRating {
		return apperrors.NewValidationError(fmt.Sprintf("%s must be between %d and %d", name, MinRating, MaxRating))
	}
	return nil
}

// ReviewWithAuthor is a review annotated with its author's username for display
type ReviewWithAuthor struct {
	Review
	Username *string `json:"username"`
}

// RatingAggregate is the derived rating state of a fountain
type RatingAggregate struct {
	Average float64 `json:"average_general_rating"`
	Count   int64   `json:"number_of_ratings"`
}

// Fold adds one rating to the aggregate
func (a RatingAggregate) Fold(rating int) RatingAggregate {
	count := a.Count + 1
	return RatingAggregate{
		Average: (a.Average*float64(a.Count) + float64(rating)) / float64(count),
		Count:   count,
	}
}
