package repositories

import (
	"context"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create inserts a user; Conflict if username or email is taken
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// GetByUsername retrieves a user by username
	GetByUsername(ctx context.Context, username string) (*entities.User, error)

	// UsernamesByIDs resolves ids to usernames; unknown ids are absent from the map
	UsernamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error)

	// SetActive toggles the account's active flag
	SetActive(ctx context.Context, id int64, active bool) error
}
