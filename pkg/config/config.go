package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/berez-app/berez/backend/pkg/secrets"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Storage     StorageConfig
	Snapshot    SnapshotConfig
	Auth        AuthConfig
	Events      EventsConfig
	Geolocation GeolocationConfig
	RateLimit   RateLimitConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0"`
	Port            int           `env:"SERVER_PORT,default=8000"`
	Environment     string        `env:"ENVIRONMENT,default=development"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=0s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	CORSOrigins     string        `env:"CORS_ALLOWED_ORIGINS,default=*"`
	AdminAPIKey     string        `env:"ADMIN_API_KEY"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver       string        `env:"DB_DRIVER,default=postgres"`
	Host         string        `env:"DB_HOST,default=localhost"`
	Port         int           `env:"DB_PORT,default=5432"`
	User         string        `env:"DB_USER,default=postgres"`
	Password     string        `env:"DB_PASSWORD,default=postgres"`
	Database     string        `env:"DB_NAME,default=berez"`
	SSLMode      string        `env:"DB_SSLMODE,default=disable"`
	SQLitePath   string        `env:"DB_SQLITE_PATH,default=fountains.db"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLife  time.Duration `env:"DB_CONN_MAX_LIFETIME,default=5m"`
	AutoMigrate  bool          `env:"DB_AUTO_MIGRATE,default=true"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled         bool   `env:"REDIS_ENABLED,default=false"`
	Host            string `env:"REDIS_HOST,default=localhost"`
	Port            int    `env:"REDIS_PORT,default=6379"`
	Password        string `env:"REDIS_PASSWORD"`
	DB              int    `env:"REDIS_DB,default=0"`
	CacheTTLSeconds int    `env:"REDIS_CACHE_TTL_SECONDS,default=300"`
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled    bool   `env:"TYPESENSE_ENABLED,default=false"`
	URL        string `env:"TYPESENSE_URL,default=http://localhost:8108"`
	APIKey     string `env:"TYPESENSE_API_KEY,default=xyz"`
	Collection string `env:"TYPESENSE_COLLECTION,default=fountains"`
}

// StorageConfig selects and configures the photo blob store
type StorageConfig struct {
	Driver         string        `env:"STORAGE_DRIVER,default=local"`
	LocalDir       string        `env:"STORAGE_LOCAL_DIR,default=uploads"`
	PublicBaseURL  string        `env:"STORAGE_PUBLIC_BASE_URL,default=/uploads"`
	S3Bucket       string        `env:"STORAGE_S3_BUCKET"`
	S3Region       string        `env:"STORAGE_S3_REGION,default=us-east-1"`
	S3Endpoint     string        `env:"STORAGE_S3_ENDPOINT"`
	S3AccessKey    string        `env:"STORAGE_S3_ACCESS_KEY"`
	S3SecretKey    string        `env:"STORAGE_S3_SECRET_KEY"`
	S3PresignTTL   time.Duration `env:"STORAGE_S3_PRESIGN_TTL,default=1h"`
	CloudinaryURL  string        `env:"CLOUDINARY_URL"`
	CloudinaryPath string        `env:"CLOUDINARY_FOLDER,default=fountains"`
	MaxUploadBytes int64         `env:"STORAGE_MAX_UPLOAD_BYTES,default=10485760"`
}

// SnapshotConfig locates the sqlite database file in S3 for serverless deployments
type SnapshotConfig struct {
	Bucket string `env:"DB_SNAPSHOT_BUCKET"`
	Key    string `env:"DB_SNAPSHOT_KEY,default=fountains.db"`
	Region string `env:"DB_SNAPSHOT_REGION,default=us-east-1"`
}

// AuthConfig holds token settings
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"JWT_TOKEN_TTL,default=720h"`
	Issuer    string        `env:"JWT_ISSUER,default=berez"`
}

// EventsConfig selects the fountain event bus
type EventsConfig struct {
	Driver       string `env:"EVENTS_DRIVER,default=memory"`
	KafkaBrokers string `env:"KAFKA_BROKERS,default=localhost:9092"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=fountain-events"`
}

// GeolocationConfig holds geolocation provider configuration
type GeolocationConfig struct {
	Provider string `env:"GEOLOCATION_PROVIDER,default=mock"`
	APIKey   string `env:"GEOLOCATION_API_KEY"`
	Language string `env:"GEOLOCATION_LANGUAGE,default=he"`
}

// RateLimitConfig bounds anonymous write traffic per client
type RateLimitConfig struct {
	Requests      int `env:"RATE_LIMIT_REQUESTS,default=20"`
	WindowSeconds int `env:"RATE_LIMIT_WINDOW_SECONDS,default=60"`
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string `env:"OTEL_SERVICE_NAME,default=berez-api"`
	ServiceVersion string `env:"OTEL_SERVICE_VERSION,default=dev"`
	Endpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT,default=localhost:4317"`
	Enabled        bool   `env:"OTEL_ENABLED,default=false"`
}

// Load loads configuration from an optional .env file, a Vault secret when VAULT_ENABLED is set,
// and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	vault, err := secrets.LoadVaultConfig()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), vault.Timeout+time.Second)
	defer cancel()
	if _, err := secrets.ApplyVaultSecrets(ctx, vault); err != nil {
		return nil, fmt.Errorf("failed to load vault secrets: %w", err)
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the process cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "local", "s3", "cloudinary":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch c.Events.Driver {
	case "memory", "redis", "kafka":
	default:
		return fmt.Errorf("unsupported EVENTS_DRIVER %q", c.Events.Driver)
	}
	if c.Events.Driver == "redis" && !c.Redis.Enabled {
		return errors.New("EVENTS_DRIVER=redis requires REDIS_ENABLED=true")
	}
	if c.Storage.Driver == "s3" && c.Storage.S3Bucket == "" {
		return errors.New("STORAGE_S3_BUCKET is required for the s3 storage driver")
	}
	if c.Storage.Driver == "cloudinary" && c.Storage.CloudinaryURL == "" {
		return errors.New("CLOUDINARY_URL is required for the cloudinary storage driver")
	}
	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			return errors.New("JWT_SECRET is required outside development")
		}
		c.Auth.JWTSecret = "development-secret"
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// DSN returns the driver-specific connection string
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite3" {
		return SQLiteDSN(c.SQLitePath)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// SQLiteDSN builds a go-sqlite3 DSN for path with write transactions taking the lock up front.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=10000&_txlock=immediate", path)
}

// Addr returns the host:port of the Redis server
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AllowedOrigins splits the comma separated CORS origin list
func (c *ServerConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// KafkaBrokerList splits the comma separated broker list
func (c *EventsConfig) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
