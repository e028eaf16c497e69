package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	goqusqlite "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/berez-app/berez/backend/pkg/config"
	"github.com/berez-app/berez/backend/pkg/retry"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// sqliteTimeFormat is fixed width so stored timestamps sort lexically in time order
const sqliteTimeFormat = "2006-01-02 15:04:05.000000"

func init() {
	opts := goqusqlite.DialectOptions()
	opts.TimeFormat = sqliteTimeFormat
	goqu.RegisterDialect(DriverSQLite, opts)
}

// Client wraps the SQL connection pool and the goqu database bound to its dialect
type Client struct {
	db     *sql.DB
	goqu   *goqu.Database
	driver string
}

// NewClient opens the configured database and waits for it with exponential backoff
func NewClient(cfg *config.DatabaseConfig) (*Client, error) {
	return Open(cfg.Driver, cfg.DSN(), cfg)
}

// Open opens dsn with driver. Pool settings come from cfg when it is not nil.
func Open(driver, dsn string, cfg *config.DatabaseConfig) (*Client, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if driver == DriverSQLite {
		// one writer at a time; callers inside a transaction must use the transaction
		db.SetMaxOpenConns(1)
	} else if cfg != nil {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLife)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	err = retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		driver,
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Str("driver", driver).Msg("database connection attempt failed")
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s after retries: %w", driver, err)
	}

	log.Info().Str("driver", driver).Msg("connected to database")
	return Wrap(db, driver), nil
}

// Wrap builds a client around an already opened pool
func Wrap(db *sql.DB, driver string) *Client {
	return &Client{db: db, goqu: goqu.New(driver, db), driver: driver}
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Goqu returns the query builder bound to the pool
func (c *Client) Goqu() *goqu.Database {
	return c.goqu
}

// Driver returns the database/sql driver name, which is also the goqu dialect name
func (c *Client) Driver() string {
	return c.driver
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
