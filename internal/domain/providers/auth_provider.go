package providers

import (
	"time"

	"github.com/berez-app/berez/backend/internal/domain/entities"
)

// TokenClaims is what a verified access token asserts
type TokenClaims struct {
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

// TokenProvider issues and verifies access tokens
type TokenProvider interface {
	Issue(user *entities.User) (token string, expiresAt time.Time, err error)
	Parse(token string) (*TokenClaims, error)
}

// PasswordHasher hashes and checks passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
