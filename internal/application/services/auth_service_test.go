package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/berez-app/berez/backend/internal/adapters/database/dbtest"
	"github.com/berez-app/berez/backend/internal/application/services"
	"github.com/berez-app/berez/backend/internal/domain/entities"
	"github.com/berez-app/berez/backend/internal/infrastructure/auth"
	apperrors "github.com/berez-app/berez/backend/pkg/errors"
)

func newAuthService(t *testing.T) (*services.AuthService, *auth.JWTProvider) {
	t.Helper()
	store := dbtest.NewStore(t)
	tokens := auth.NewJWTProvider("test-secret", "berez", time.Hour)
	return services.NewAuthService(store.Users(), tokens, auth.NewBcryptHasher(bcrypt.MinCost)), tokens
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc, tokens := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, entities.RegisterInput{
		Username: " shira ",
		Email:    "Shira@Example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "shira", user.Username)
	assert.Equal(t, "shira@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	_, err = svc.Register(ctx, entities.RegisterInput{Username: "shira", Email: "other@example.com", Password: "secret1"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict), "got %v", err)

	byEmail, err := svc.Login(ctx, entities.LoginInput{Email: "SHIRA@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", byEmail.TokenType)

	claims, err := tokens.Parse(byEmail.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	byName, err := svc.Login(ctx, entities.LoginInput{Username: "shira", Password: "secret1"})
	require.NoError(t, err)

	me, err := svc.Authenticate(ctx, byName.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	got, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "shira", got.Username)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	cases := []entities.RegisterInput{
		{Username: "ab", Email: "a@example.com", Password: "secret1"},
		{Username: "valid", Email: "not-an-email", Password: "secret1"},
		{Username: "valid", Email: "a@example.com", Password: "123"},
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "input %+v: %v", in, err)
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, entities.RegisterInput{Username: "tomer", Email: "tomer@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, entities.LoginInput{Username: "tomer", Password: "wrong-pass"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	_, err = svc.Login(ctx, entities.LoginInput{Username: "nobody", Password: "secret1"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	_, err = svc.Login(ctx, entities.LoginInput{Password: "secret1"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.Authenticate(ctx, "garbage")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
}

func TestAuthService_InactiveUser(t *testing.T) {
	store := dbtest.NewStore(t)
	tokens := auth.NewJWTProvider("test-secret", "berez", time.Hour)
	svc := services.NewAuthService(store.Users(), tokens, auth.NewBcryptHasher(bcrypt.MinCost))
	ctx := context.Background()

	user, err := svc.Register(ctx, entities.RegisterInput{Username: "gal", Email: "gal@example.com", Password: "secret1"})
	require.NoError(t, err)
	login, err := svc.Login(ctx, entities.LoginInput{Username: "gal", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, store.Users().SetActive(ctx, user.ID, false))

	_, err = svc.Authenticate(ctx, login.AccessToken)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
	_, err = svc.Login(ctx, entities.LoginInput{Username: "gal", Password: "secret1"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
}
