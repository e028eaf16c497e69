package services

import (
	"context"
	"strings"
	"time"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/domain/providers"
	"github.com/berez-app/berez/backend/internal/domain/repositories"
	"github.com/berez-app/berez/backend/internal/infrastructure/observability"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

const invalidCredentials = "invalid username or password"

// AuthService registers accounts and exchanges credentials for access tokens
type AuthService struct {
	users  repositories.UserRepository
	tokens providers.TokenProvider
	hasher providers.PasswordHasher
}

// NewAuthService creates a new auth service
func NewAuthService(users repositories.UserRepository, tokens providers.TokenProvider, hasher providers.PasswordHasher) *AuthService {
	return &AuthService{users: users, tokens: tokens, hasher: hasher}
}

// Register creates an active account
func (s *AuthService) Register(ctx context.Context, in entities.RegisterInput) (*entities.User, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	user := &entities.User{
		Username:     in.Username,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.AsStorage("failed to register user", err)
	}

	observability.LoggerFromContext(ctx).Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Login checks a password for the account named by email or username and issues a token
func (s *AuthService) Login(ctx context.Context, in entities.LoginInput) (*entities.TokenResponse, error) {
	var (
		user *entities.User
		err  error
	)
	switch {
	case strings.TrimSpace(in.Email) != "":
		user, err = s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	case strings.TrimSpace(in.Username) != "":
		user, err = s.users.GetByUsername(ctx, strings.TrimSpace(in.Username))
	default:
		return nil, apperrors.NewValidationError("email or username is required")
	}
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewUnauthorizedError(invalidCredentials)
		}
		return nil, apperrors.AsStorage("failed to load user", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, in.Password); err != nil {
		return nil, apperrors.NewUnauthorizedError(invalidCredentials)
	}
	if !user.IsActive {
		return nil, apperrors.NewForbiddenError("account is disabled")
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to issue token", err)
	}
	return &entities.TokenResponse{AccessToken: token, TokenType: "bearer", ExpiresAt: expiresAt.Unix()}, nil
}

// Authenticate resolves a bearer token to its active account
func (s *AuthService) Authenticate(ctx context.Context, token string) (*entities.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, apperrors.NewUnauthorizedError("invalid token")
		}
		return nil, apperrors.AsStorage("failed to load user", err)
	}
	if !user.IsActive {
		return nil, apperrors.NewForbiddenError("account is disabled")
	}
	return user, nil
}

// Me returns the account of the given user id
func (s *AuthService) Me(ctx context.Context, userID int64) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperrors.AsStorage("failed to load user", err)
	}
	return user, nil
}
