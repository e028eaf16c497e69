package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, "memory", cfg.Events.Driver)
	assert.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, "development-secret", cfg.Auth.JWTSecret)
}

func TestLoad_TypesenseConfig(t *testing.T) {
	t.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	t.Setenv("TYPESENSE_API_KEY", "test-key")
	t.Setenv("TYPESENSE_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Typesense.Enabled)
	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RequiresSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestLoad_RedisEventsNeedRedis(t *testing.T) {
	t.Setenv("EVENTS_DRIVER", "redis")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("REDIS_ENABLED", "true")
	_, err = Load()
	assert.NoError(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p@ss", Database: "berez", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/berez?sslmode=disable", pg.DSN())

	lite := DatabaseConfig{Driver: "sqlite3", SQLitePath: "/tmp/fountains.db"}
	assert.Equal(t, "file:/tmp/fountains.db?_foreign_keys=on&_busy_timeout=10000&_txlock=immediate", lite.DSN())
}

func TestServerConfig_AllowedOrigins(t *testing.T) {
	s := ServerConfig{CORSOrigins: "http://localhost:3000, https://berez.app ,"}
	assert.Equal(t, []string{"http://localhost:3000", "https://berez.app"}, s.AllowedOrigins())
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}
