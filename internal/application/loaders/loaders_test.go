package loaders_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/internal/adapters/database/dbtest"
	"github.com/berez-app/berez/backend/internal/application/loaders"
	"github.com/berez-app/berez/backend/internal/domain/entities"
)

func TestUsernames(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)

	u := &entities.User{Username: "yael", Email: "yael@example.com", PasswordHash: "x", IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Users().Create(ctx, u))

	got := loaders.Usernames(ctx, store.Users(), []int64{u.ID, 999, u.ID})
	assert.Equal(t, map[int64]string{u.ID: "yael"}, got)

	reqCtx := loaders.WithLoaders(ctx, loaders.NewLoaders(store.Users()))
	require.NotNil(t, loaders.For(reqCtx))
	assert.Equal(t, map[int64]string{u.ID: "yael"}, loaders.Usernames(reqCtx, store.Users(), []int64{u.ID}))

	assert.Empty(t, loaders.Usernames(ctx, store.Users(), nil))
	assert.Nil(t, loaders.For(ctx))
}
