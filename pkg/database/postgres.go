package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	_ "github.com/lib/pq"

	"frameworks/cartographer/pkg/config"
	dbsql "frameworks/cartographer/pkg/database/sql"
	"frameworks/cartographer/pkg/logging"
)

// PostgresConn represents a PostgreSQL database connection
type PostgresConn = *sql.DB

// ErrNoRows is returned when a query returns no rows
var ErrNoRows = sql.ErrNoRows

// Config holds database configuration
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// ConnectRetries is how many extra ping attempts are made before giving up.
	ConnectRetries int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DefaultConfig returns default database configuration
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectRetries:  5,
		RetryBaseDelay:  500 * time.Millisecond,
		RetryMaxDelay:   10 * time.Second,
	}
}

// ConfigFromEnv applies DATABASE_* overrides on top of DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.URL = config.GetEnv("DATABASE_URL", "")
	cfg.MaxOpenConns = config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", cfg.MaxOpenConns)
	cfg.MaxIdleConns = config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", cfg.MaxIdleConns)
	cfg.ConnMaxLifetime = config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", cfg.ConnMaxLifetime)
	cfg.ConnectRetries = config.GetEnvInt("DATABASE_CONNECT_RETRIES", cfg.ConnectRetries)
	return cfg
}

// Connect opens a PostgreSQL pool and waits for it to answer a ping,
// retrying with backoff while the server comes up.
func Connect(ctx context.Context, cfg Config, logger logging.Logger) (PostgresConn, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := PingWithRetry(ctx, db, cfg, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.WithFields(logging.Fields{
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime,
	}).Info("Database connected")

	return db, nil
}

// MustConnect is like Connect but exits the process on error
func MustConnect(ctx context.Context, cfg Config, logger logging.Logger) PostgresConn {
	db, err := Connect(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	return db
}

// PingWithRetry pings db until it answers or cfg.ConnectRetries is exhausted.
func PingWithRetry(ctx context.Context, db *sql.DB, cfg Config, logger logging.Logger) error {
	base, maxDelay := cfg.RetryBaseDelay, cfg.RetryMaxDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if maxDelay < base {
		maxDelay = base
	}

	retry := retrypolicy.NewBuilder[any]().
		WithBackoff(base, maxDelay).
		WithMaxRetries(cfg.ConnectRetries).
		WithJitterFactor(0.1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[any]) {
			logger.WithFields(logging.Fields{
				"attempt": e.Attempts(),
				"error":   e.LastError(),
			}).Warn("Database not ready, retrying")
		}).
		Build()

	return failsafe.With[any](retry).WithContext(ctx).Run(func() error {
		return db.PingContext(ctx)
	})
}

// ApplySchema executes the embedded schema files, then the static seed files,
// each set in lexical order. Statements are idempotent.
func ApplySchema(ctx context.Context, db *sql.DB, logger logging.Logger) error {
	for _, dir := range []string{"schema", "seeds/static"} {
		files, err := fs.Glob(dbsql.Content, dir+"/*.sql")
		if err != nil {
			return fmt.Errorf("list %s: %w", dir, err)
		}
		sort.Strings(files)
		for _, name := range files {
			body, err := fs.ReadFile(dbsql.Content, name)
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			if _, err := db.ExecContext(ctx, string(body)); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			logger.WithField("file", name).Debug("Applied SQL file")
		}
	}
	return nil
}
