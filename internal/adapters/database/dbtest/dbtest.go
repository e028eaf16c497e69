// Package dbtest opens throwaway migrated sqlite stores for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/internal/adapters/database"
	"github.com/berez-app/berez/backend/internal/infrastructure/clients/sqldb"
	"github.com/berez-app/berez/backend/internal/infrastructure/migrations"
	"github.com/berez-app/berez/backend/pkg/config"
)

// NewClient opens a migrated sqlite database in a temp dir
func NewClient(t testing.TB) *sqldb.Client {
	t.Helper()
	dsn := config.SQLiteDSN(filepath.Join(t.TempDir(), "berez.db"))
	client, err := sqldb.Open(sqldb.DriverSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, migrations.Up(client.DB(), sqldb.DriverSQLite))
	return client
}

// NewStore opens a migrated sqlite store
func NewStore(t testing.TB) *database.Store {
	t.Helper()
	return database.NewStore(NewClient(t))
}
