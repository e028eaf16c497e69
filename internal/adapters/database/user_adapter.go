package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

// UserAdapter implements the UserRepository interface
type UserAdapter struct {
	db queryer
}

var _ repositories.UserRepository = (*UserAdapter)(nil)

// NewUserAdapter creates a new user adapter
func NewUserAdapter(db queryer) *UserAdapter {
	return &UserAdapter{db: db}
}

// Create inserts a user; a taken username or email is a Conflict
func (a *UserAdapter) Create(ctx context.Context, user *entities.User) error {
	id, err := insertReturningID(ctx, a.db, tableUsers, goqu.Record{
		"username":      user.Username,
		"name":          user.Name,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"created_at":    user.CreatedAt,
		"is_active":     user.IsActive,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError("username or email already registered")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = id
	return nil
}

func (a *UserAdapter) getBy(ctx context.Context, where goqu.Ex, what string) (*entities.User, error) {
	var user entities.User
	found, err := a.db.From(tableUsers).Where(where).ScanStructContext(ctx, &user)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user %s not found", what))
	}
	return &user, nil
}

// GetByID retrieves a user by ID
func (a *UserAdapter) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	return a.getBy(ctx, goqu.Ex{"id": id}, fmt.Sprintf("with id %d", id))
}

// GetByEmail retrieves a user by email
func (a *UserAdapter) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	return a.getBy(ctx, goqu.Ex{"email": email}, "with that email")
}

// GetByUsername retrieves a user by username
func (a *UserAdapter) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return a.getBy(ctx, goqu.Ex{"username": username}, "with that username")
}

type usernameRow struct {
	ID       int64  `db:"id"`
	Username string `db:"username"`
}

// UsernamesByIDs resolves ids to usernames in one query
func (a *UserAdapter) UsernamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []usernameRow
	err := a.db.From(tableUsers).
		Select("id", "username").
		Where(goqu.C("id").In(ids)).
		ScanStructsContext(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve usernames: %w", err)
	}
	for _, r := range rows {
		names[r.ID] = r.Username
	}
	return names, nil
}

// SetActive toggles the account's active flag
func (a *UserAdapter) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := a.db.Update(tableUsers).Set(goqu.Record{"is_active": active}).
		Where(goqu.Ex{"id": id}).Executor().ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return affectedOne(res, "user", id)
}
