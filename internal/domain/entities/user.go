package entities

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 50
	MinPasswordLength = 6
)

// User represents an account
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// RegisterInput is the payload of an account registration
type RegisterInput struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Normalize trims whitespace and lowercases the email
func (in *RegisterInput) Normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

// Validate checks username length, email shape and password length
func (in *RegisterInput) Validate() error {
	n := len([]rune(in.Username))
	if n < MinUsernameLength || n > MaxUsernameLength {
		return apperrors.NewValidationError(fmt.Sprintf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperrors.NewValidationError("invalid email address")
	}
	if len(in.Password) < MinPasswordLength {
		return apperrors.NewValidationError(fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	return nil
}

// LoginInput identifies an account by email or username
type LoginInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by a successful login
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}
