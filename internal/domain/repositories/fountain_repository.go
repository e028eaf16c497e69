package repositories

import (
	"context"
	"time"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// FountainRepository defines the interface for fountain data operations
type FountainRepository interface {
	// Create inserts a fountain. A zero ID lets the store assign one and writes it back.
	Create(ctx context.Context, fountain *entities.Fountain) error

	// GetByID retrieves a fountain by ID; NotFound if absent
	GetByID(ctx context.Context, id int64) (*entities.Fountain, error)

	// GetByIDs retrieves fountains in the order of ids, skipping missing ones
	GetByIDs(ctx context.Context, ids []int64) ([]*entities.Fountain, error)

	// GetForUpdate retrieves a fountain and holds its row lock until the transaction ends
	GetForUpdate(ctx context.Context, id int64) (*entities.Fountain, error)

	// Exists reports whether a fountain with id is stored
	Exists(ctx context.Context, id int64) (bool, error)

	// ApplyChanges writes only the changed columns plus last_updated
	ApplyChanges(ctx context.Context, id int64, changes entities.FountainChanges, lastUpdated time.Time) error

	// SetRating writes the derived rating fields
	SetRating(ctx context.Context, id int64, aggregate entities.RatingAggregate, lastUpdated time.Time) error

	// FindNearest orders fountains by squared lon/lat distance to the point, ties by id
	FindNearest(ctx context.Context, longitude, latitude float64, limit int) ([]*entities.Fountain, error)

	// Count returns the number of stored fountains
	Count(ctx context.Context) (int64, error)

	// List pages through fountains ordered by id
	List(ctx context.Context, limit, offset int) ([]*entities.Fountain, error)

	// SearchByAddress matches a substring of the address
	SearchByAddress(ctx context.Context, query string, limit int) ([]*entities.Fountain, error)
}
