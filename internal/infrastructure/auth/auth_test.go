package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/berez-app/berez/backend/internal/domain/entities"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

func TestJWTProvider_RoundTrip(t *testing.T) {
	p := NewJWTProvider("secret", "berez", time.Hour)

	token, exp, err := p.Issue(&entities.User{ID: 42, Username: "dana"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	c, err := p.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), c.UserID)
	assert.Equal(t, "dana", c.Username)
}

func TestJWTProvider_Rejects(t *testing.T) {
	p := NewJWTProvider("secret", "berez", time.Hour)
	token, _, err := p.Issue(&entities.User{ID: 1, Username: "dana"})
	require.NoError(t, err)

	_, err = NewJWTProvider("other", "berez", time.Hour).Parse(token)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	_, err = NewJWTProvider("secret", "someone-else", time.Hour).Parse(token)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	expired := NewJWTProvider("secret", "berez", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Parse(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "iss": "berez", "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = p.Parse(unsigned)
	assert.Error(t, err)

	_, err = p.Parse("garbage")
	assert.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.NoError(t, h.Compare(hash, "secret1"))
	assert.True(t, apperrors.IsType(h.Compare(hash, "wrong"), apperrors.ErrorTypeUnauthorized))
}
